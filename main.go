package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/mrognor/ThreadGate/pkg/gate"
	"github.com/mrognor/ThreadGate/pkg/metrics"
)

type DemoCmd struct {
	MetricsAddr string        `arg:"--metrics-addr,env:METRICS_ADDR" help:"Optional address to serve metrics on."`
	WaitTimeout time.Duration `arg:"--wait-timeout,env:WAIT_TIMEOUT" default:"100ms" help:"Timeout used by the bounded wait demonstrations."`
}

type Arguments struct {
	Demo     *DemoCmd   `arg:"subcommand:demo"`
	LogLevel slog.Level `arg:"--log-level,env:LOG_LEVEL" default:"INFO" help:"Minimum log level to output. Value should be DEBUG, INFO, WARN, or ERROR."`
}

func main() {
	os.Exit(runMain())
}

func runMain() int {
	args := &Arguments{}
	arg.MustParse(args)

	opts := slog.HandlerOptions{
		AddSource: true,
		Level:     args.LogLevel,
	}
	handler := slog.NewJSONHandler(os.Stderr, &opts)
	log := logr.FromSlogHandler(handler)
	ctx := logr.NewContext(context.Background(), log)

	err := run(ctx, args)
	if err != nil {
		log.Error(err, "run exit with error")
		return 1
	}
	log.Info("gracefully shutdown")
	return 0
}

func run(ctx context.Context, args *Arguments) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGTERM)
	defer cancel()
	switch {
	case args.Demo != nil:
		return demoCommand(ctx, args.Demo)
	default:
		return errors.New("unknown subcommand")
	}
}

func demoCommand(ctx context.Context, args *DemoCmd) error {
	metrics.Register()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if args.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{
			Addr:    args.MetricsAddr,
			Handler: mux,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancel()
		return runScenarios(ctx, args.WaitTimeout)
	})
	return g.Wait()
}

func runScenarios(ctx context.Context, waitTimeout time.Duration) error {
	log := logr.FromContextOrDiscard(ctx)

	// Open before close: the permit is queued and the close never blocks.
	single := gate.NewGate()
	single.Open()
	var g errgroup.Group
	g.Go(func() error {
		single.Close()
		log.Info("close returned without blocking", "scenario", "open-first")
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	// Park a close, then open. The open returns only once the parked close
	// has received the permit.
	g.Go(func() error {
		single.Close()
		log.Info("parked close released", "scenario", "park-then-open")
		return nil
	})
	time.Sleep(10 * time.Millisecond)
	single.Open()
	log.Info("open confirmed the hand-off", "scenario", "park-then-open")
	if err := g.Wait(); err != nil {
		return err
	}

	// Two opens satisfy two closes on a counting gate.
	recursive := gate.NewRecursiveGate()
	recursive.Open()
	recursive.Open()
	g.Go(func() error {
		recursive.Close()
		recursive.Close()
		log.Info("both closes returned", "scenario", "recursive")
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	// Bounded waits expire without consuming a permit.
	expiring := gate.NewRecursiveGate()
	if ok := expiring.CloseFor(waitTimeout); !ok {
		log.Info("bounded wait expired", "scenario", "close-for", "pending", expiring.Pending())
	}
	if ok := expiring.CloseUntil(time.Now().Add(waitTimeout)); !ok {
		log.Info("deadline wait expired", "scenario", "close-until", "pending", expiring.Pending())
	}
	return nil
}
