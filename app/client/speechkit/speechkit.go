package speechkit

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"wellcheck/app/config"

	"github.com/samber/do"
	"github.com/yandex-cloud/go-genproto/yandex/cloud/ai/tts/v3"
	ycsdk "github.com/yandex-cloud/go-sdk"
	"github.com/yandex-cloud/go-sdk/iamkey"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

const ttsEndpoint = "tts.api.cloud.yandex.net:443"

type YandexSpeechKit struct {
	cfg *config.Config
	sdk *ycsdk.SDK

	ttsConn     *grpc.ClientConn
	synthesizer tts.SynthesizerClient
}

func NewClient(di *do.Injector) (*YandexSpeechKit, error) {
	ctx := do.MustInvoke[context.Context](di)
	cfg := do.MustInvoke[*config.Config](di)

	keyBytes, err := os.ReadFile(cfg.Yandex.SpeechKit.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("could not read service account key: %w", err)
	}

	var key iamkey.Key
	if err = json.Unmarshal(keyBytes, &key); err != nil {
		return nil, fmt.Errorf("could not parse service account key: %w", err)
	}

	creds, err := ycsdk.ServiceAccountKey(&key)
	if err != nil {
		return nil, fmt.Errorf("could not create service account key: %w", err)
	}

	sdk, err := ycsdk.Build(ctx, ycsdk.Config{
		Credentials: creds,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Yandex SDK: %w", err)
	}

	// the SDK has no TTS v3 accessor, so synthesis gets its own connection
	ttsConn, err := grpc.NewClient(ttsEndpoint,
		grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})),
		grpc.WithPerRPCCredentials(newSDKCredentials(sdk)),
	)
	if err != nil {
		_ = sdk.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create TTS connection: %w", err)
	}

	return &YandexSpeechKit{
		cfg:         cfg,
		sdk:         sdk,
		ttsConn:     ttsConn,
		synthesizer: tts.NewSynthesizerClient(ttsConn),
	}, nil
}

// Start opens a streaming recognition session.
func (y *YandexSpeechKit) Start(ctx context.Context) (*Handle, error) {
	ctx, cancel := context.WithCancel(ctx)

	client, err := y.sdk.AI().STTV3().Recognizer().RecognizeStreaming(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Handle{
		client:   client,
		cancel:   cancel,
		language: y.cfg.Yandex.SpeechKit.Language,
	}, nil
}

func (y *YandexSpeechKit) Shutdown() error {
	return errors.Join(
		y.ttsConn.Close(),
		y.sdk.Shutdown(context.Background()),
	)
}
