package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fleetgrid/warden/pkg/audit"
	"fleetgrid/warden/pkg/audit/retention"
	auditstorage "fleetgrid/warden/pkg/audit/storage"
	"fleetgrid/warden/pkg/compiler"
	"fleetgrid/warden/pkg/config"
	"fleetgrid/warden/pkg/enforce"
	"fleetgrid/warden/pkg/policy"
	"fleetgrid/warden/pkg/telemetry/logging"
	"fleetgrid/warden/pkg/telemetry/metrics"
	"fleetgrid/warden/pkg/workflow"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the enforcement engine as a long-lived process",
	Long: `Run loads the configuration, builds the enforcement engine with its
policy source, audit trail and approval store, serves Prometheus metrics,
and keeps the rule index in sync with policy changes until interrupted.

Embedding warden as a library is the primary integration; run exists for
deployments that watch a policy directory and expose the engine to local
tooling.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.Setup(&cfg.Telemetry.Logging)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Policy source
	var store policy.Store
	switch cfg.Policies.Source {
	case "file":
		store, err = policy.NewFileStore(&policy.FileStoreConfig{
			Path:  cfg.Policies.Path,
			Watch: cfg.Policies.Watch,
		}, logger)
		if err != nil {
			return fmt.Errorf("open policy directory: %w", err)
		}
	default:
		store = policy.NewMemoryStore()
	}
	defer store.Close()

	// Audit trail
	var auditStore audit.Storage
	if cfg.Audit.Backend == "sqlite" {
		auditStore, err = auditstorage.NewSQLiteStorage(cfg.Audit.Path)
		if err != nil {
			return err
		}
	} else {
		auditStore = auditstorage.NewMemoryStorage()
	}
	auditLog, err := audit.NewLog(auditStore, nil, logger)
	if err != nil {
		return err
	}
	defer auditLog.Close()

	pruner := retention.NewPruner(auditStore, &retention.Config{
		RetentionDays:       cfg.Audit.RetentionDays,
		PruneSchedule:       cfg.Audit.PruneSchedule,
		ArchiveBeforeDelete: cfg.Audit.ArchiveBeforeDelete,
		ArchivePath:         cfg.Audit.ArchivePath,
	})
	if err := pruner.Start(ctx); err != nil {
		return err
	}
	defer pruner.Stop()

	// Approval store
	var approvals workflow.ApprovalStore
	if cfg.Approvals.Backend == "sqlite" {
		approvals, err = workflow.NewSQLiteApprovalStore(cfg.Approvals.Path)
		if err != nil {
			return err
		}
	} else {
		approvals = workflow.NewMemoryApprovalStore()
	}
	defer approvals.Close()

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	engine, err := enforce.NewEngine(enforce.Options{
		Store:     store,
		Compiler:  compiler.New(&compiler.Options{MaxConditionDepth: cfg.Compiler.MaxConditionDepth}),
		AuditLog:  auditLog,
		Approvals: approvals,
		Metrics:   collector,
		Config: &enforce.Config{
			LookupTimeout: cfg.Engine.LookupTimeout,
			AuditTimeout:  cfg.Engine.AuditTimeout,
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Start(ctx); err != nil {
		return err
	}

	if cfg.Telemetry.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		srv := &http.Server{Addr: cfg.Telemetry.Metrics.ListenAddress, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info("metrics server listening", "address", cfg.Telemetry.Metrics.ListenAddress)
	}

	logger.Info("warden running",
		"policy_source", cfg.Policies.Source,
		"audit_backend", cfg.Audit.Backend,
		"rules", engine.Snapshot().RuleCount(),
	)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// loadConfig reads the --config file, falling back to defaults when the
// default path does not exist.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		if cfgFile != "config.yaml" {
			return nil, fmt.Errorf("config file %s does not exist", cfgFile)
		}
		return config.Default(), nil
	}
	return config.Load(cfgFile)
}
