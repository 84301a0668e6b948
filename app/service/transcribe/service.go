package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"wellcheck/app/client/speechkit"
	"wellcheck/app/config"
	"wellcheck/app/service/queue"
	"wellcheck/app/service/speak"

	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

const (
	bufferSize = 4096
	retryDelay = 10 * time.Second
)

// Muter reports whether the agent is talking, so its own voice is not transcribed.
type Muter interface {
	Speaking() bool
}

type Service struct {
	cfg          *config.Config
	speechClient *speechkit.YandexSpeechKit
	queue        *queue.Service
	muter        Muter
}

func New(di *do.Injector) (*Service, error) {
	return &Service{
		cfg:          do.MustInvoke[*config.Config](di),
		speechClient: do.MustInvoke[*speechkit.YandexSpeechKit](di),
		queue:        do.MustInvoke[*queue.Service](di),
		muter:        do.MustInvoke[*speak.Service](di),
	}, nil
}

// Run captures and transcribes the microphone until ctx is done, restarting after failures.
func (s *Service) Run(ctx context.Context) {
	for {
		transcribeCtx, cancel := s.Start(ctx)
		<-transcribeCtx.Done()
		cancel(nil)

		select {
		case <-ctx.Done():
			return
		case <-time.After(retryDelay):
			slog.Info("Restarting transcription")
		}
	}
}

func (s *Service) Start(ctx context.Context) (context.Context, context.CancelCauseFunc) {
	ctx, cancel := context.WithCancelCause(ctx)

	go s.runTranscription(ctx, cancel)

	return ctx, cancel
}

func (s *Service) runTranscription(ctx context.Context, cancel context.CancelCauseFunc) {
	defer cancel(nil)

	ffmpeg, err := NewFFmpegStream(ctx, s.cfg.Audio.InputFormat, s.cfg.Audio.InputDevice)
	if err != nil {
		cancel(fmt.Errorf("failed to create ffmpeg stream: %w", err))
		return
	}

	if err = ffmpeg.Start(); err != nil {
		cancel(fmt.Errorf("failed to start ffmpeg: %w", err))
		return
	}
	defer ffmpeg.Stop()

	audioStream := ffmpeg.GetAudioStream()

	go func() {
		cancel(s.runTranscriptionWithRetry(ctx, audioStream))
	}()

	go func() {
		err := ffmpeg.Wait()
		if err == nil {
			err = fmt.Errorf("ffmpeg process finished")
		}
		cancel(err)
	}()

	<-ctx.Done()

	if err = context.Cause(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Transcription failed", "error", err)
	}
}

func (s *Service) runTranscriptionWithRetry(ctx context.Context, audioSrc io.Reader) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			err := s.runSingleTranscription(ctx, audioSrc)
			if err == nil {
				return nil
			}

			if errors.Is(err, io.EOF) {
				slog.Info("received EOF from speechkit, restarting speechClient")
				continue
			}

			return fmt.Errorf("transcription error: %w", err)
		}
	}
}

func (s *Service) runSingleTranscription(ctx context.Context, audioSrc io.Reader) error {
	handle, err := s.speechClient.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transcription: %w", err)
	}
	defer handle.Close()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.streamAudio(ctx, audioSrc, handle)
	})

	g.Go(func() error {
		return s.receivePhrases(ctx, handle)
	})

	return g.Wait()
}

func (s *Service) streamAudio(ctx context.Context, audioSrc io.Reader, handle *speechkit.Handle) error {
	if err := handle.SendConfig(); err != nil {
		return fmt.Errorf("failed to send audio config: %w", err)
	}

	buffer := make([]byte, bufferSize)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			n, err := audioSrc.Read(buffer)
			if err != nil {
				return fmt.Errorf("failed to read audio: %w", err)
			}

			if n == 0 {
				continue
			}

			if err = handle.Send(buffer[:n]); err != nil {
				return fmt.Errorf("failed to send audio: %w", err)
			}
		}
	}
}

func (s *Service) receivePhrases(ctx context.Context, handle *speechkit.Handle) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		text, err := handle.Recv()
		if err != nil {
			return fmt.Errorf("Recv: %w", err)
		}

		s.handlePhrase(text)
	}
}

func (s *Service) handlePhrase(text string) {
	if text == "" {
		return
	}

	if s.muter != nil && s.muter.Speaking() {
		slog.Debug("Dropped phrase while speaking", "text", text)
		return
	}

	slog.Debug("Recognized phrase", "text", text)
	s.queue.Add(queue.SourceVoice, text)
}
