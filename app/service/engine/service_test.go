package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"wellcheck/app/service/agent"
	"wellcheck/app/service/checkin"
	"wellcheck/app/service/checkinlog"
	"wellcheck/app/service/queue"

	"github.com/tmc/langchaingo/llms"
)

type echoModel struct {
	mu      sync.Mutex
	prompts []string
	err     error
}

func (m *echoModel) GenerateContent(
	_ context.Context,
	messages []llms.MessageContent,
	_ ...llms.CallOption,
) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	system := messages[0].Parts[0].(llms.TextContent).Text
	m.prompts = append(m.prompts, system)

	last := messages[len(messages)-1].Parts[0].(llms.TextContent).Text

	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "echo: " + last}}}, nil
}

func (m *echoModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

type recordingSpeaker struct {
	mu   sync.Mutex
	said []string
	err  error
}

func (r *recordingSpeaker) Say(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.said = append(r.said, text)
	return r.err
}

func (r *recordingSpeaker) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.said)
}

func newTestEngine(t *testing.T, model llms.Model) (*Service, *checkinlog.Store, *queue.Service, *recordingSpeaker) {
	t.Helper()

	store := checkinlog.NewStore(filepath.Join(t.TempDir(), "wellness_log.json"))
	q, _ := queue.New(nil)
	speaker := &recordingSpeaker{}

	svc := NewService(store, agent.NewService(model, 0.7, nil), q, speaker, time.UTC)

	return svc, store, q, speaker
}

func TestStartLoadsPreviousCheckIn(t *testing.T) {
	model := &echoModel{}
	svc, store, _, speaker := newTestEngine(t, model)

	err := store.Append(checkinlog.Record{
		Date:       "2025-11-20",
		Time:       "08:00:00",
		Mood:       "drained",
		Energy:     "2 out of 10",
		Objectives: []string{"sleep early"},
		Summary:    "User felt drained.",
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	turn, err := svc.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if turn.Stage != checkin.StageGreeting || turn.SessionID == "" {
		t.Fatalf("turn = %+v", turn)
	}
	if len(speaker.said) != 1 || speaker.said[0] != turn.Reply {
		t.Fatalf("speaker = %v", speaker.said)
	}

	if got := model.prompts[0]; !strings.Contains(got, "- Mood: drained") || !strings.Contains(got, "2025-11-20") {
		t.Fatalf("system prompt lacks previous check-in:\n%s", got)
	}
}

func TestHandleUtteranceStartsSessionAndAdvances(t *testing.T) {
	svc, _, _, speaker := newTestEngine(t, &echoModel{})

	if status := svc.Status(); status.Active {
		t.Fatalf("status before start = %+v", status)
	}

	turn, err := svc.HandleUtterance(context.Background(), "  I'm fine  ")
	if err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	if turn.Reply != "echo: I'm fine" {
		t.Fatalf("reply = %q", turn.Reply)
	}
	if turn.Stage != checkin.StageMoodEnergy {
		t.Fatalf("stage = %s", turn.Stage)
	}
	if len(speaker.said) != 2 {
		t.Fatalf("expected greeting and reply to be spoken, got %v", speaker.said)
	}

	status := svc.Status()
	if !status.Active || status.SessionID != turn.SessionID {
		t.Fatalf("status = %+v", status)
	}
}

func TestHandleUtteranceRejectsBlank(t *testing.T) {
	svc, _, _, _ := newTestEngine(t, &echoModel{})

	if _, err := svc.HandleUtterance(context.Background(), "   "); !errors.Is(err, ErrEmptyUtterance) {
		t.Fatalf("err = %v", err)
	}
}

func TestStartResetsSession(t *testing.T) {
	svc, _, _, _ := newTestEngine(t, &echoModel{})
	ctx := context.Background()

	first, err := svc.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err = svc.HandleUtterance(ctx, "hello"); err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}

	second, err := svc.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if first.SessionID == second.SessionID {
		t.Fatalf("expected a new session id")
	}
	if second.Stage != checkin.StageGreeting {
		t.Fatalf("stage = %s", second.Stage)
	}
}

func TestSpeakerFailureDoesNotFailTurn(t *testing.T) {
	svc, _, _, speaker := newTestEngine(t, &echoModel{})
	speaker.err = errors.New("no audio device")

	if _, err := svc.HandleUtterance(context.Background(), "hello"); err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}
}

func TestModelFailureSurfaces(t *testing.T) {
	svc, _, _, _ := newTestEngine(t, &echoModel{err: errors.New("unavailable")})

	if _, err := svc.HandleUtterance(context.Background(), "hello"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRunConsumesQueue(t *testing.T) {
	svc, _, q, speaker := newTestEngine(t, &echoModel{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	q.Add(queue.SourceVoice, "first")
	q.Add(queue.SourceVoice, "second")

	deadline := time.After(5 * time.Second)
	for speaker.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("timed out, spoken = %d", speaker.count())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done

	if status := svc.Status(); status.Active {
		t.Fatalf("session should be closed after Run, got %+v", status)
	}

	speaker.mu.Lock()
	defer speaker.mu.Unlock()
	if speaker.said[1] != "echo: first" || speaker.said[2] != "echo: second" {
		t.Fatalf("spoken = %v", speaker.said)
	}
}

func TestSaveCheckInNeedsSession(t *testing.T) {
	svc, _, _, _ := newTestEngine(t, &echoModel{})

	_, err := svc.SaveCheckIn(checkin.SaveInput{Mood: "ok", Energy: "5", Objectives: []string{"rest"}})
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("err = %v", err)
	}
}

func TestSaveCheckInFollowsSessionRules(t *testing.T) {
	svc, store, _, _ := newTestEngine(t, &echoModel{})
	ctx := context.Background()

	if _, err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	input := checkin.SaveInput{Mood: "calm", Energy: "6 out of 10", Objectives: []string{"read"}}

	_, err := svc.SaveCheckIn(input)
	var verr *checkin.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want validation error before recap", err)
	}
	if len(store.List()) != 0 {
		t.Fatalf("nothing should be stored")
	}
}

func TestSessionUsageLoggedOnReplace(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	svc, _, _, _ := newTestEngine(t, &echoModel{})
	ctx := context.Background()

	first, err := svc.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err = svc.HandleUtterance(ctx, "hello"); err != nil {
		t.Fatalf("HandleUtterance: %v", err)
	}
	if _, err = svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var found bool
	for _, line := range bytes.Split(buf.Bytes(), []byte("\n")) {
		var entry struct {
			Msg       string         `json:"msg"`
			SessionID string         `json:"session_id"`
			Reason    string         `json:"reason"`
			Usage     map[string]int `json:"usage"`
		}
		if json.Unmarshal(line, &entry) != nil || entry.Msg != "Session usage" {
			continue
		}

		found = true
		if entry.SessionID != first.SessionID || entry.Reason != "replaced" || entry.Usage["requests"] != 2 {
			t.Fatalf("usage entry = %+v", entry)
		}
	}
	if !found {
		t.Fatalf("no usage entry logged:\n%s", buf.String())
	}
}
