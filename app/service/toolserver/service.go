package toolserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"wellcheck/app/config"
	"wellcheck/app/service/checkinlog"
	"wellcheck/app/service/engine"

	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/do"
)

const (
	serverName      = "wellcheck"
	serverVersion   = "1.0.0"
	shutdownTimeout = 5 * time.Second
)

var _ do.Shutdownable = (*Service)(nil)

// Service exposes save_checkin to external MCP clients over streamable HTTP.
type Service struct {
	listen string
	mcp    *server.MCPServer
	http   *server.StreamableHTTPServer
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(
		cfg.MCP.Listen,
		do.MustInvoke[*engine.Service](di),
		do.MustInvoke[*checkinlog.Store](di),
	), nil
}

func NewService(listen string, saver Saver, latest Latest) *Service {
	s := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	save := &saveTool{saver: saver}
	s.AddTool(save.Definition(), save.Handle)

	last := &latestTool{latest: latest}
	s.AddTool(last.Definition(), last.Handle)

	return &Service{
		listen: listen,
		mcp:    s,
		http:   server.NewStreamableHTTPServer(s),
	}
}

func (s *Service) MCPServer() *server.MCPServer {
	return s.mcp
}

// Run serves MCP until Shutdown.
func (s *Service) Run() {
	slog.Info("MCP tool server listening", "addr", s.listen)

	if err := s.http.Start(s.listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("MCP tool server stopped", "error", err)
	}
}

func (s *Service) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.http.Shutdown(ctx)
}
