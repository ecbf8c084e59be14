package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/ParcelDesk/config"
)

type relayApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    *config.Config
	opts   relayHTTPOpts
	f      relayFactories
}

func mustBootstrapRelay() *relayApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("failed to parse config, %v", err))
	}

	switch cfg.Realtime.Transport {
	case "":
		cfg.Realtime.Transport = transportSocketIO
	case transportSocketIO, transportKafka:
	default:
		panic(fmt.Sprintf("unknown realtime transport %q", cfg.Realtime.Transport))
	}
	if cfg.Realtime.Transport == transportKafka && !cfg.Kafka.Enabled() {
		panic("kafka transport needs a kafka section")
	}

	refreshLimit := int64(cfg.ParcelDesk.RefreshLimitPerMinute)
	if refreshLimit <= 0 {
		refreshLimit = 6
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &relayApp{
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
		opts: relayHTTPOpts{
			httpAddr:              cfg.ParcelDesk.RelayHTTPAddr,
			swaggerPath:           os.Getenv("swaggerPath"),
			refreshLimitPerMinute: refreshLimit,
		},
		f: defaultRelayFactories(),
	}
}

func (a *relayApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *relayApp) Run() error {
	return RunRelay(a.ctx, a.cfg, a.opts, a.f)
}
