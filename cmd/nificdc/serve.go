package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nineking424/nificdc-sub002/pkg/api"
	"github.com/nineking424/nificdc-sub002/pkg/audit"
	"github.com/nineking424/nificdc-sub002/pkg/config"
	"github.com/nineking424/nificdc-sub002/pkg/connector"
	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
	"github.com/nineking424/nificdc-sub002/pkg/events"
	"github.com/nineking424/nificdc-sub002/pkg/log"
	"github.com/nineking424/nificdc-sub002/pkg/mapping"
	"github.com/nineking424/nificdc-sub002/pkg/metrics"
	"github.com/nineking424/nificdc-sub002/pkg/ratelimit"
	"github.com/nineking424/nificdc-sub002/pkg/runner"
	"github.com/nineking424/nificdc-sub002/pkg/sandbox"
	"github.com/nineking424/nificdc-sub002/pkg/schedule"
	"github.com/nineking424/nificdc-sub002/pkg/scheduler"
	"github.com/nineking424/nificdc-sub002/pkg/security"
	"github.com/nineking424/nificdc-sub002/pkg/storage"
	"github.com/nineking424/nificdc-sub002/pkg/telemetry"
	"github.com/nineking424/nificdc-sub002/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the execution core",
	Long: `Start every component: persistence, scheduler, execution
runner, audit manager, telemetry hub, and the HTTP/WebSocket API.
Configuration comes from defaults, then the optional config file, then
NIFICDC_* environment variables, then flags.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "path to YAML config file")
	serveCmd.Flags().String("listen-addr", "", "HTTP listen address")
	serveCmd.Flags().String("data-dir", "", "data directory")
	serveCmd.Flags().String("log-level", "", "log level (debug|info|warn|error)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if v, _ := cmd.Flags().GetString("listen-addr"); v != "" {
		cfg.API.ListenAddr = v
	}
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Init(log.Config{Level: log.Level(cfg.Log.Level), JSONOutput: cfg.Log.JSON})
	logger := log.WithComponent("serve")

	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	var cipher *security.Cipher
	if cfg.EncryptionKey != "" {
		cipher, err = security.NewCipherFromPassword(cfg.EncryptionKey)
		if err != nil {
			return fmt.Errorf("failed to build cipher: %w", err)
		}
	} else {
		logger.Warn().Msg("no encryption key configured, connection info is stored in the clear")
	}

	evaluator := sandbox.New(sandbox.Limits{
		MaxDuration:   cfg.Sandbox.MaxDuration.Std(),
		MaxMemory:     cfg.Sandbox.MaxMemory,
		MaxComplexity: cfg.Sandbox.MaxComplexity,
	})
	engine := mapping.NewEngine(evaluator)
	validator := mapping.NewValidator(evaluator)

	// Derived-field hooks close the package cycle between storage and
	// the mapping/schedule logic.
	store.SetHooks(storage.Hooks{
		ValidateMapping: func(m *types.Mapping) error {
			source, err := store.GetSchema(m.SourceSchemaID)
			if err != nil {
				return err
			}
			target, err := store.GetSchema(m.TargetSchemaID)
			if err != nil {
				return err
			}
			report := validator.Validate(m, source, target)
			if !report.Valid {
				return errdefs.Validation("mapping validation failed: %s", report.Errors[0].Message)
			}
			return nil
		},
		NextExecutionAt: func(job *types.Job, now time.Time) (*time.Time, error) {
			if !job.Active {
				return nil, nil
			}
			if err := schedule.Validate(job.Schedule); err != nil {
				return nil, err
			}
			return schedule.Next(job.Schedule, now)
		},
	})

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	auditMgr := audit.NewManager(store, broker, audit.Config{
		BufferSize:    cfg.Audit.BufferSize,
		FlushInterval: cfg.Audit.FlushInterval.Std(),
		HistorySize:   cfg.Audit.HistorySize,
		Cooldown:      cfg.Audit.Cooldown.Std(),
	})
	auditMgr.Start()
	defer auditMgr.Stop()

	hub := telemetry.NewHub(broker, auditMgr, telemetry.Config{
		BufferSize:    cfg.Telemetry.BufferSize,
		FlushInterval: cfg.Telemetry.FlushInterval.Std(),
		RawRetention:  cfg.Telemetry.RawRetention.Std(),
	})
	hub.Start()
	defer hub.Stop()

	limiter := ratelimit.New(ratelimit.Config{
		BaseMax:       cfg.RateLimit.BaseMax,
		WindowMS:      cfg.RateLimit.WindowMS,
		TrustedCIDRs:  cfg.RateLimit.TrustedCIDRs,
		InternalCIDRs: cfg.RateLimit.InternalCIDRs,
		OnSuspicious: func(req ratelimit.Request, score int) {
			auditMgr.Submit(&types.AuditEvent{
				EventType: "SuspiciousActivityDetected",
				Actor:     types.Actor{UserID: req.UserID, Role: string(req.Role)},
				Result:    types.ResultAlert,
				Severity:  types.SeverityHigh,
				IP:        req.IP,
				UserAgent: req.UserAgent,
				Metadata:  map[string]any{"anomaly_score": score, "path": req.Path},
			})
		},
	})

	registry := connector.NewRegistry()
	registry.Register(types.SystemType("memory"), func(sys *types.System, _ map[string]any) (connector.Connector, error) {
		return connector.NewMemory(), nil
	})

	collector := metrics.NewCollector(store)
	collector.Start()
	defer collector.Stop()

	run := runner.New(store, broker, registry, cipher, engine, runner.Config{
		PoolSize:    cfg.Runner.PoolSize,
		GracePeriod: cfg.Runner.GracePeriod.Std(),
	})
	run.Start()

	sched := scheduler.New(store, run, scheduler.Config{Tick: cfg.Scheduler.Tick.Std()})
	sched.Start()

	apiServer := api.NewServer(store, engine, limiter, broker)
	apiErr := make(chan error, 1)
	go func() {
		if err := apiServer.Start(cfg.API.ListenAddr); err != nil {
			apiErr <- err
		}
	}()

	logger.Info().
		Str("listen_addr", cfg.API.ListenAddr).
		Str("data_dir", cfg.DataDir).
		Msg("execution core started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-apiErr:
		logger.Error().Err(err).Msg("api server failed")
	}

	// Drain order: stop accepting work, stop dispatching, then let
	// running executions finish before the buffers flush.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("api shutdown incomplete")
	}
	sched.Stop()
	run.Stop()

	logger.Info().Msg("execution core stopped")
	return nil
}
