// Command bridge runs the OpenD execution bridge.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/coachpo/futubridge/config"
	"github.com/coachpo/futubridge/internal/futu"
	"github.com/coachpo/futubridge/internal/journal"
	"github.com/coachpo/futubridge/internal/observability"
	"github.com/coachpo/futubridge/internal/opend"
	"github.com/coachpo/futubridge/internal/opend/sim"
	"github.com/coachpo/futubridge/internal/schema"
	"github.com/coachpo/futubridge/internal/telemetry"
)

const (
	defaultConfigPath        = "config/bridge.yaml"
	bridgeLoggerPrefix       = "bridge "
	shutdownTimeout          = 30 * time.Second
	clientShutdownTimeout    = 10 * time.Second
	telemetryShutdownTimeout = 5 * time.Second
)

func main() {
	flags := parseFlags()
	ctx, cancel := newSignalContext()
	defer cancel()

	logger := newBridgeLogger()

	cfg, err := config.Load(resolveConfigPath(flags.configPath))
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	logger.Printf("configuration initialised: endpoint=%s:%d, env=%d, market=%d",
		cfg.Gateway.Host, cfg.Gateway.Port, cfg.Trading.Env, cfg.Trading.Market)

	zapLogger, err := observability.NewZapLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		logger.Fatalf("initialise logger: %v", err)
	}
	observability.SetLogger(zapLogger)

	telemetryProvider, err := initTelemetry(ctx, logger)
	if err != nil {
		logger.Fatalf("initialise telemetry: %v", err)
	}

	registry := opend.NewRegistry(transportFactory(flags.transport, logger))

	sink, journalStore, err := buildEventSink(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("initialise journal: %v", err)
	}

	execClient := futu.NewExecClient(registry, cfg, sink)
	if err := execClient.Connect(ctx); err != nil {
		logger.Fatalf("connect execution client: %v", err)
	}
	session := execClient.Session()
	logger.Printf("execution client connected: acc=%d, env=%d", session.Account.AccID, int32(session.Env))

	var lifecycle conc.WaitGroup
	startDataClient(ctx, &lifecycle, execClient, logger, flags.marketData)

	logger.Print("bridge started; awaiting shutdown signal")
	<-ctx.Done()
	logger.Print("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	shutdownStart := time.Now()
	performGracefulShutdown(shutdownCtx, logger, gracefulShutdownConfig{
		execClient: execClient,
		lifecycle:  &lifecycle,
		journal:    journalStore,
		telemetry:  telemetryProvider,
	})
	logger.Printf("shutdown completed in %v", time.Since(shutdownStart))
}

type bridgeFlags struct {
	configPath string
	transport  string
	marketData bool
}

func parseFlags() bridgeFlags {
	var flags bridgeFlags
	flag.StringVar(&flags.configPath, "config", "", fmt.Sprintf("Path to configuration file (default: %s)", defaultConfigPath))
	flag.StringVar(&flags.transport, "transport", "opend", "Transport backend: opend or sim")
	flag.BoolVar(&flags.marketData, "market-data", false, "Consume market-data pushes on the shared session")
	flag.Parse()
	return flags
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newBridgeLogger() *log.Logger {
	return log.New(os.Stdout, bridgeLoggerPrefix, log.LstdFlags|log.Lmicroseconds)
}

func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return filepath.Clean(defaultConfigPath)
}

func initTelemetry(ctx context.Context, logger *log.Logger) (*telemetry.Provider, error) {
	cfg := telemetry.DefaultConfig()
	provider, err := telemetry.NewProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialise telemetry provider: %w", err)
	}
	if cfg.Enabled {
		logger.Printf("telemetry initialised: endpoint=%s, service=%s", cfg.OTLPEndpoint, cfg.ServiceName)
	} else {
		logger.Print("telemetry disabled")
	}
	return provider, nil
}

// transportFactory selects the transport backend. The sim backend runs the
// bridge against the in-process venue, primarily for paper sessions and
// local development without an OpenD installation.
func transportFactory(name string, logger *log.Logger) opend.Factory {
	if name != "sim" {
		logger.Printf("transport %q has no protocol driver linked in this build; using sim", name)
	}
	return func(string, int) opend.Client {
		venue := sim.NewVenue()
		venue.AddAccount(opend.AccountRecord{AccID: 1, TrdEnv: 0, TrdMarketAuths: []int32{1}})
		return venue
	}
}

// buildEventSink chains the optional journal in front of the log sink.
func buildEventSink(ctx context.Context, cfg config.Settings, logger *log.Logger) (schema.ExecEventSink, *journal.Store, error) {
	logSink := schema.ExecEventFunc(func(evt schema.ExecEvent) {
		observability.Log().Info("execution event",
			observability.F("type", string(evt.Type)),
			observability.F("client_order_id", evt.ClientOrderID),
			observability.F("venue_order_id", evt.VenueOrderID),
			observability.F("status", string(evt.Status)))
	})
	if cfg.Journal.DSN == "" {
		return logSink, nil, nil
	}
	store, err := journal.Open(ctx, cfg.Journal.DSN)
	if err != nil {
		return nil, nil, err
	}
	logger.Print("execution journal enabled")
	return store.Sink(logSink), store, nil
}

func startDataClient(ctx context.Context, lifecycle *conc.WaitGroup, execClient *futu.ExecClient, logger *log.Logger, enabled bool) {
	if !enabled {
		return
	}
	data := futu.NewDataClient(execClient.Dispatcher(), futu.DataHandlers{
		OnQuote: func(q schema.Quote) {
			observability.Log().Debug("quote",
				observability.F("instrument", q.Instrument.String()),
				observability.F("last", q.Last.String()))
		},
		OnTick: func(t schema.Tick) {
			observability.Log().Debug("tick",
				observability.F("instrument", t.Instrument.String()),
				observability.F("price", t.Price.String()))
		},
	})
	lifecycle.Go(func() {
		if err := data.Start(ctx); err != nil {
			logger.Printf("market data client: %v", err)
		}
	})
}

type gracefulShutdownConfig struct {
	execClient *futu.ExecClient
	lifecycle  *conc.WaitGroup
	journal    *journal.Store
	telemetry  *telemetry.Provider
}

func performGracefulShutdown(ctx context.Context, logger *log.Logger, cfg gracefulShutdownConfig) {
	shutdownStep := func(name string, timeout time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		logger.Printf("shutdown: %s...", name)
		if err := fn(stepCtx); err != nil {
			logger.Printf("shutdown: %s failed: %v", name, err)
		} else {
			logger.Printf("shutdown: %s completed", name)
		}
	}

	if cfg.execClient != nil {
		shutdownStep("closing execution client", clientShutdownTimeout, func(stepCtx context.Context) error {
			return cfg.execClient.Close(stepCtx)
		})
	}

	if cfg.lifecycle != nil {
		shutdownStep("waiting for lifecycle goroutines", clientShutdownTimeout, func(stepCtx context.Context) error {
			done := make(chan struct{})
			go func() {
				cfg.lifecycle.Wait()
				close(done)
			}()
			select {
			case <-done:
				return nil
			case <-stepCtx.Done():
				return fmt.Errorf("timeout waiting for goroutines: %w", stepCtx.Err())
			}
		})
	}

	if cfg.journal != nil {
		shutdownStep("closing journal", clientShutdownTimeout, func(context.Context) error {
			cfg.journal.Close()
			return nil
		})
	}

	if cfg.telemetry != nil {
		shutdownStep("shutting down telemetry", telemetryShutdownTimeout, func(stepCtx context.Context) error {
			return cfg.telemetry.Shutdown(stepCtx)
		})
	}
}
