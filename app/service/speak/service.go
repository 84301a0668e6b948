package speak

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"

	"wellcheck/app/client/speechkit"
	"wellcheck/app/config"

	"github.com/samber/do"
)

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Service voices agent replies. Without a synthesizer replies are only logged.
type Service struct {
	synth  Synthesizer
	player []string

	mu       sync.Mutex
	speaking atomic.Bool
	play     func(ctx context.Context, audio []byte) error
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	var synth Synthesizer
	if cfg.Session.Voice {
		synth = do.MustInvoke[*speechkit.YandexSpeechKit](di)
	}

	return NewService(synth, cfg.Audio.Player), nil
}

func NewService(synth Synthesizer, player []string) *Service {
	s := &Service{
		synth:  synth,
		player: player,
	}
	s.play = s.runPlayer

	return s
}

func (s *Service) Speaking() bool {
	return s.speaking.Load()
}

// Say speaks text and returns once playback has finished.
func (s *Service) Say(ctx context.Context, text string) error {
	slog.Info("Agent says", "text", text)

	if s.synth == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.speaking.Store(true)
	defer s.speaking.Store(false)

	audio, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to synthesize: %w", err)
	}

	if err = s.play(ctx, audio); err != nil {
		return fmt.Errorf("failed to play audio: %w", err)
	}

	return nil
}

func (s *Service) runPlayer(ctx context.Context, audio []byte) error {
	if len(s.player) == 0 {
		return errors.New("no player configured")
	}

	cmd := exec.CommandContext(ctx, s.player[0], s.player[1:]...)
	cmd.Stdin = bytes.NewReader(audio)

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", s.player[0], err, bytes.TrimSpace(out))
	}

	return nil
}
