package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"wellcheck/app/client/speechkit"
	"wellcheck/app/config"
	"wellcheck/app/service/agent"
	"wellcheck/app/service/api"
	"wellcheck/app/service/checkinlog"
	"wellcheck/app/service/engine"
	"wellcheck/app/service/queue"
	"wellcheck/app/service/speak"
	"wellcheck/app/service/toolserver"
	"wellcheck/app/service/transcribe"
	"wellcheck/app/util/mylog"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	do.Provide(di, speechkit.NewClient)
	do.Provide(di, checkinlog.New)
	do.Provide(di, agent.New)
	do.Provide(di, queue.New)
	do.Provide(di, speak.New)
	do.Provide(di, transcribe.New)
	do.Provide(di, engine.New)
	do.Provide(di, api.New)
	do.Provide(di, toolserver.New)

	slog.Info("Service started",
		"store", cfg.Store.Path,
		"voice", cfg.Session.Voice,
		"model", cfg.OpenAI.Model,
	)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		log.Info("Shutting down...")

		cancel()
	}()

	if cfg.Session.Voice {
		go do.MustInvoke[*transcribe.Service](di).Run(appCtx)
	}

	if cfg.Server.Listen != "" {
		go do.MustInvoke[*api.Service](di).Run()
	}

	if cfg.MCP.Listen != "" {
		go do.MustInvoke[*toolserver.Service](di).Run()
	}

	go do.MustInvoke[*engine.Service](di).Run(appCtx)

	<-appCtx.Done()
}
