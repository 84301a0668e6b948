package speechkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/yandex-cloud/go-genproto/yandex/cloud/ai/stt/v3"
)

const (
	SampleRateHertz = 16000
	maxPauseHintMs  = 800
)

type Handle struct {
	client   stt.Recognizer_RecognizeStreamingClient
	cancel   context.CancelFunc
	language string
}

func (h *Handle) Send(content []byte) error {
	var req stt.StreamingRequest
	req.SetChunk(&stt.AudioChunk{
		Data: content,
	})

	return h.client.Send(&req)
}

func (h *Handle) SendConfig() error {
	var audioFormatOpts stt.AudioFormatOptions
	audioFormatOpts.SetRawAudio(&stt.RawAudio{
		AudioEncoding:     stt.RawAudio_LINEAR16_PCM,
		SampleRateHertz:   SampleRateHertz,
		AudioChannelCount: 1,
	})

	var eouClassifier stt.EouClassifierOptions
	eouClassifier.SetDefaultClassifier(&stt.DefaultEouClassifier{
		Type:                       stt.DefaultEouClassifier_DEFAULT,
		MaxPauseBetweenWordsHintMs: maxPauseHintMs,
	})

	var req stt.StreamingRequest
	req.SetSessionOptions(&stt.StreamingOptions{
		RecognitionModel: &stt.RecognitionModelOptions{
			Model:       "general",
			AudioFormat: &audioFormatOpts,
			LanguageRestriction: &stt.LanguageRestrictionOptions{
				RestrictionType: stt.LanguageRestrictionOptions_WHITELIST,
				LanguageCode:    []string{h.language},
			},
		},
		EouClassifier: &eouClassifier,
	})

	return h.client.Send(&req)
}

// Recv blocks until the next recognition event. Only final results yield text:
// the best non-empty alternative, or "" for everything else.
func (h *Handle) Recv() (string, error) {
	res, err := h.client.Recv()
	if err != nil {
		return "", fmt.Errorf("failed to receive stt: %w", err)
	}

	finalEvent := res.GetFinal()
	if finalEvent == nil {
		return "", nil
	}

	for _, alt := range finalEvent.GetAlternatives() {
		if text := strings.TrimSpace(alt.GetText()); text != "" {
			return text, nil
		}
	}

	return "", nil
}

func (h *Handle) Close() error {
	h.cancel()
	return nil
}
