package queue

import (
	"log/slog"

	"github.com/samber/do"
)

const bufferSize = 64

const (
	SourceVoice = "voice"
	SourceHTTP  = "http"
)

var _ do.Shutdownable = (*Service)(nil)

type Service struct {
	queue chan Message
}

type Message struct {
	Source string
	Text   string
}

func New(_ *do.Injector) (*Service, error) {
	return &Service{
		queue: make(chan Message, bufferSize),
	}, nil
}

// Add enqueues an utterance without blocking. It reports false when the message was dropped.
func (s *Service) Add(source, text string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("message queue is closed", "source", source)
			ok = false
		}
	}()

	select {
	case s.queue <- Message{source, text}:
		return true
	default:
		slog.Warn("message queue is full", "source", source)
		return false
	}
}

func (s *Service) Channel() <-chan Message {
	return s.queue
}

func (s *Service) Shutdown() error {
	close(s.queue)

	return nil
}
