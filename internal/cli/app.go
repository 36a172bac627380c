package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/zhouzirui/ochat/internal/config"
	"github.com/zhouzirui/ochat/internal/service/ai"
	"github.com/zhouzirui/ochat/internal/service/dispatch"
	"github.com/zhouzirui/ochat/internal/service/interpreter"
	"github.com/zhouzirui/ochat/internal/store/history"
	"github.com/zhouzirui/ochat/internal/store/jsonlog"
	"github.com/zhouzirui/ochat/internal/system"
)

var log = system.Component("cli")

// app holds the services shared by the chat and serve commands.
type app struct {
	cfg        *config.Config
	chat       *ai.Service
	runner     *interpreter.Runner
	logs       *jsonlog.Store
	mirror     *history.Store
	dispatcher *dispatch.Dispatcher
}

func newApp(ctx context.Context, cfg *config.Config, onStep func(interpreter.Step)) (*app, error) {
	chatSvc, err := ai.NewService(ctx, cfg.AI.NewChatModel, ai.Options{
		Model:        cfg.AI.ActiveModel(),
		Stream:       cfg.AI.Stream,
		HistoryLimit: cfg.AI.HistoryLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("init chat model: %w", err)
	}

	runner := interpreter.NewRunner(cfg.Exec.Workdir, time.Duration(cfg.Exec.Timeout)*time.Second)
	interp, err := interpreter.NewService(chatSvc, runner,
		interpreter.WithMaxSteps(cfg.Exec.MaxSteps),
		interpreter.WithStepHook(onStep),
	)
	if err != nil {
		return nil, err
	}

	logs, err := jsonlog.New(cfg.Log.Dir)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, chat: chatSvc, runner: runner, logs: logs}
	dcfg := dispatch.Config{
		Chat:      chatSvc,
		Executor:  interp,
		Recorder:  logs,
		AutoRoute: cfg.AutoRoute,
	}
	if cfg.Log.HistoryDB != "" {
		mirror, err := history.Open(cfg.Log.HistoryDB)
		if err != nil {
			return nil, err
		}
		a.mirror = mirror
		dcfg.Mirror = mirror
	}

	a.dispatcher, err = dispatch.New(dcfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	log.Debug("services ready",
		"provider", cfg.AI.Provider,
		"model", chatSvc.Model(),
		"endpoint", cfg.AI.Endpoint(),
		"log_dir", logs.Dir(),
		"session", a.dispatcher.SessionID(),
	)
	return a, nil
}

// Close releases the history database if one is open.
func (a *app) Close() {
	if a.mirror == nil {
		return
	}
	if err := a.mirror.Close(); err != nil {
		log.Warn("close history db", "err", err)
	}
}
