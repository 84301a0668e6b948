package speechkit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/yandex-cloud/go-genproto/yandex/cloud/ai/tts/v3"
)

// Synthesize renders text to a WAV container with the configured voice.
func (y *YandexSpeechKit) Synthesize(ctx context.Context, text string) ([]byte, error) {
	skCfg := y.cfg.Yandex.SpeechKit

	var voice, role, speed tts.Hints
	voice.SetVoice(skCfg.Voice)
	speed.SetSpeed(skCfg.Speed)

	hints := []*tts.Hints{&voice, &speed}
	if skCfg.Role != "" {
		role.SetRole(skCfg.Role)
		hints = append(hints, &role)
	}

	var container tts.ContainerAudio
	container.SetContainerAudioType(tts.ContainerAudio_WAV)

	var audioSpec tts.AudioFormatOptions
	audioSpec.SetContainerAudio(&container)

	var req tts.UtteranceSynthesisRequest
	req.SetText(text)
	req.SetHints(hints)
	req.SetOutputAudioSpec(&audioSpec)
	req.SetLoudnessNormalizationType(tts.UtteranceSynthesisRequest_LUFS)

	stream, err := y.synthesizer.UtteranceSynthesis(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("failed to start synthesis: %w", err)
	}

	var buf bytes.Buffer
	for {
		res, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to receive tts: %w", err)
		}

		buf.Write(res.GetAudioChunk().GetData())
	}

	if buf.Len() == 0 {
		return nil, errors.New("synthesis returned no audio")
	}

	return buf.Bytes(), nil
}
