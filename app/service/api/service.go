package api

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"wellcheck/app/config"
	"wellcheck/app/service/checkinlog"
	"wellcheck/app/service/engine"
	"wellcheck/app/service/queue"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/do"
)

const shutdownTimeout = 5 * time.Second

var _ do.Shutdownable = (*Service)(nil)

type Engine interface {
	Start(ctx context.Context) (engine.Turn, error)
	HandleUtterance(ctx context.Context, text string) (engine.Turn, error)
	Status() engine.Status
}

type History interface {
	List() []checkinlog.Record
	LoadMostRecent() (checkinlog.Record, bool)
}

type Enqueuer interface {
	Add(source, text string) bool
}

// Service exposes the active session and the check-in history over HTTP.
type Service struct {
	appCtx  context.Context
	listen  string
	engine  Engine
	history History
	queue   Enqueuer
	app     *fiber.App
}

type turnRequest struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(
		do.MustInvoke[context.Context](di),
		cfg.Server.Listen,
		do.MustInvoke[*engine.Service](di),
		do.MustInvoke[*checkinlog.Store](di),
		do.MustInvoke[*queue.Service](di),
	), nil
}

func NewService(appCtx context.Context, listen string, eng Engine, history History, q Enqueuer) *Service {
	s := &Service{
		appCtx:  appCtx,
		listen:  listen,
		engine:  eng,
		history: history,
		queue:   q,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "wellcheck",
		DisableStartupMessage: true,
		ErrorHandler:          handleError,
	})

	api := s.app.Group("/api")
	api.Get("/session", s.getSession)
	api.Post("/session", s.startSession)
	api.Post("/turn", s.postTurn)
	api.Post("/utterance", s.postUtterance)
	api.Get("/checkins", s.listCheckIns)
	api.Get("/checkins/latest", s.latestCheckIn)

	return s
}

func (s *Service) App() *fiber.App {
	return s.app
}

// Run serves HTTP until the listener is closed by Shutdown.
func (s *Service) Run() {
	slog.Info("HTTP API listening", "addr", s.listen)

	if err := s.app.Listen(s.listen); err != nil {
		slog.Error("HTTP API stopped", "error", err)
	}
}

func (s *Service) Shutdown() error {
	return s.app.ShutdownWithTimeout(shutdownTimeout)
}

func (s *Service) getSession(c *fiber.Ctx) error {
	return c.JSON(s.engine.Status())
}

func (s *Service) startSession(c *fiber.Ctx) error {
	turn, err := s.engine.Start(s.requestContext(c))
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(turn)
}

func (s *Service) postTurn(c *fiber.Ctx) error {
	text, err := parseText(c)
	if err != nil {
		return err
	}

	turn, err := s.engine.HandleUtterance(s.requestContext(c), text)
	if err != nil {
		if errors.Is(err, engine.ErrEmptyUtterance) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}

	return c.JSON(turn)
}

// postUtterance hands the text to the same queue the microphone feeds.
func (s *Service) postUtterance(c *fiber.Ctx) error {
	text, err := parseText(c)
	if err != nil {
		return err
	}

	if !s.queue.Add(queue.SourceHTTP, text) {
		return fiber.NewError(fiber.StatusServiceUnavailable, "utterance queue is full")
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (s *Service) listCheckIns(c *fiber.Ctx) error {
	records := s.history.List()
	if records == nil {
		records = []checkinlog.Record{}
	}

	return c.JSON(checkinlog.Log{CheckIns: records})
}

func (s *Service) latestCheckIn(c *fiber.Ctx) error {
	record, ok := s.history.LoadMostRecent()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no check-ins yet")
	}

	return c.JSON(record)
}

// requestContext ends with the application, not with the fasthttp request.
func (s *Service) requestContext(c *fiber.Ctx) context.Context {
	if s.appCtx != nil {
		return s.appCtx
	}

	return c.Context()
}

func parseText(c *fiber.Ctx) (string, error) {
	var req turnRequest
	if err := c.BodyParser(&req); err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "text is required")
	}

	return text, nil
}

func handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	if code >= fiber.StatusInternalServerError {
		slog.Error("Request failed", "path", c.Path(), "error", err)
	}

	return c.Status(code).JSON(errorResponse{Error: err.Error()})
}
