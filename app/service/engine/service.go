package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"wellcheck/app/config"
	"wellcheck/app/service/agent"
	"wellcheck/app/service/checkin"
	"wellcheck/app/service/checkinlog"
	"wellcheck/app/service/queue"
	"wellcheck/app/service/speak"

	"github.com/samber/do"
)

var (
	ErrEmptyUtterance = errors.New("empty utterance")
	ErrNoSession      = errors.New("no active session")
)

type Speaker interface {
	Say(ctx context.Context, text string) error
}

// Turn is the outcome of one exchange.
type Turn struct {
	SessionID string        `json:"session_id"`
	Stage     checkin.Stage `json:"stage"`
	Reply     string        `json:"reply"`
}

type Status struct {
	Active    bool          `json:"active"`
	SessionID string        `json:"session_id,omitempty"`
	Stage     checkin.Stage `json:"stage,omitempty"`
}

// Service owns the single active session.
type Service struct {
	store    *checkinlog.Store
	agentSvc *agent.Service
	queueSvc *queue.Service
	speaker  Speaker
	loc      *time.Location

	// mu serializes turns; current is readable while a turn is in flight
	mu      sync.Mutex
	session *agent.Session
	current atomic.Pointer[agent.Session]
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	loc, err := cfg.Session.Location()
	if err != nil {
		return nil, fmt.Errorf("session location: %w", err)
	}

	return NewService(
		do.MustInvoke[*checkinlog.Store](di),
		do.MustInvoke[*agent.Service](di),
		do.MustInvoke[*queue.Service](di),
		do.MustInvoke[*speak.Service](di),
		loc,
	), nil
}

func NewService(
	store *checkinlog.Store,
	agentSvc *agent.Service,
	queueSvc *queue.Service,
	speaker Speaker,
	loc *time.Location,
) *Service {
	return &Service{
		store:    store,
		agentSvc: agentSvc,
		queueSvc: queueSvc,
		speaker:  speaker,
		loc:      loc,
	}
}

// Start begins a new session with the most recent check-in as context and greets the user.
func (s *Service) Start(ctx context.Context) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.startLocked(ctx)
}

// HandleUtterance answers one user utterance, starting a session first if none is active.
func (s *Service) HandleUtterance(ctx context.Context, text string) (Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Turn{}, ErrEmptyUtterance
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		if _, err := s.startLocked(ctx); err != nil {
			return Turn{}, err
		}
	}

	reply, err := s.session.Reply(ctx, text)
	if err != nil {
		return Turn{}, fmt.Errorf("session.Reply: %w", err)
	}

	s.say(ctx, reply)

	return s.turnLocked(reply), nil
}

func (s *Service) Status() Status {
	session := s.current.Load()
	if session == nil {
		return Status{}
	}

	return Status{
		Active:    true,
		SessionID: session.ID.String(),
		Stage:     session.Controller().Stage(),
	}
}

// SaveCheckIn runs save_checkin against the active session on behalf of an external tool client.
func (s *Service) SaveCheckIn(input checkin.SaveInput) (string, error) {
	session := s.current.Load()
	if session == nil {
		return "", ErrNoSession
	}

	return session.Controller().Save(input)
}

// Run starts a session and answers queued utterances until ctx is done.
func (s *Service) Run(ctx context.Context) {
	defer s.closeSession()

	if _, err := s.Start(ctx); err != nil {
		slog.Error("Failed to start session", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.queueSvc.Channel():
			if !ok {
				return
			}

			start := time.Now()
			turn, err := s.HandleUtterance(ctx, msg.Text)
			if err != nil {
				slog.Warn("HandleUtterance error", "source", msg.Source, "error", err)
				continue
			}

			slog.Info("Processed utterance",
				"source", msg.Source,
				"text", msg.Text,
				"stage", turn.Stage,
				"duration", time.Since(start))
		}
	}
}

func (s *Service) startLocked(ctx context.Context) (Turn, error) {
	s.logUsageLocked("replaced")

	previous, ok := s.store.LoadMostRecent()

	ctrl := checkin.NewController(s.store, previous, ok, s.loc)
	s.session = s.agentSvc.NewSession(ctrl)
	s.current.Store(s.session)

	slog.Info("Session started",
		"session_id", s.session.ID,
		"has_previous", ok,
		"previous_date", previous.Date,
	)

	greeting, err := s.session.Greet(ctx)
	if err != nil {
		return Turn{}, fmt.Errorf("session.Greet: %w", err)
	}

	s.say(ctx, greeting)

	return s.turnLocked(greeting), nil
}

func (s *Service) closeSession() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logUsageLocked("shutdown")
	s.session = nil
	s.current.Store(nil)
}

func (s *Service) logUsageLocked(reason string) {
	if s.session == nil {
		return
	}

	slog.Info("Session usage",
		"session_id", s.session.ID,
		"reason", reason,
		"stage", s.session.Controller().Stage(),
		"usage", s.session.Usage(),
	)
}

func (s *Service) turnLocked(reply string) Turn {
	return Turn{
		SessionID: s.session.ID.String(),
		Stage:     s.session.Controller().Stage(),
		Reply:     reply,
	}
}

func (s *Service) say(ctx context.Context, text string) {
	if err := s.speaker.Say(ctx, text); err != nil {
		slog.Warn("Failed to speak reply", "error", err)
	}
}
