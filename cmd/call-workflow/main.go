package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DataDog/workflow-call/pkg/config"
	"github.com/DataDog/workflow-call/pkg/logging"
	"github.com/DataDog/workflow-call/pkg/runner"
)

var callTypeArg string
var maxWaitArg time.Duration

func init() {
	flag.StringVar(&callTypeArg, "call-type", "", "how far to follow the run (Trigger,TriggerAndWait,TriggerAndWaitResult), overrides CALL_TYPE")
	flag.DurationVar(&maxWaitArg, "max-wait", 0, "overall deadline for the run to complete, overrides MAX_WAIT_TIME")
}

// CI runners stop jobs with SIGTERM.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func main() {
	flag.Parse()
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)

	log := logging.New("call-workflow")
	code := runner.Report(log, run(ctx, log))
	stop()
	os.Exit(code)
}

func run(ctx context.Context, log logrus.FieldLogger) error {
	cfg, err := config.LoadRunner(os.Getenv)
	if err != nil {
		return err
	}
	if callTypeArg != "" {
		if cfg.CallType, err = config.ParseCallType(callTypeArg); err != nil {
			return err
		}
	}
	if maxWaitArg > 0 {
		cfg.MaxWait = maxWaitArg
	}
	return runner.New(cfg, log).Run(ctx)
}
