package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/DataDog/workflow-call/pkg/appauth"
	"github.com/DataDog/workflow-call/pkg/config"
	"github.com/DataDog/workflow-call/pkg/logging"
)

// CI runners stop jobs with SIGTERM.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)

	log := logging.New("github-auth")
	err := run(ctx, log)
	stop()
	if err != nil {
		log.Errorf("❌ %s", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log logrus.FieldLogger) error {
	cfg, err := config.LoadMinter(os.Getenv)
	if err != nil {
		return err
	}
	return appauth.NewMinter(cfg, log).Run(ctx)
}
