package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ochairo/vulnscan/internal/config"
	"github.com/ochairo/vulnscan/internal/domain-adapters/gateways"
	"github.com/ochairo/vulnscan/internal/domain/entities"
	"github.com/ochairo/vulnscan/internal/domain/interfaces"
	"github.com/ochairo/vulnscan/internal/metrics"
)

func newScanCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Scan a build output directory or a single library",
		Long: `Scan every library below path (default: scan.output_dir) against the
vulnerability database.

Exit status is 0 when no fatal finding was reported, 1 when at least one
finding is fatal under the policy, and 2 when the run was aborted.`,
		Example: `  vulnscan scan target/
  vulnscan scan --fingerprint fatal --metadata warning build/libs
  vulnscan scan --updates offline --format json lib/spring-2.5.6.jar`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validFormat(format); err != nil {
				return &exitError{code: exitAborted, err: err}
			}
			if len(args) == 1 {
				a.v.Set("scan.output_dir", args[0])
			}
			return runScan(cmd.Context(), a, format)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&format, "format", "f", formatText, "Report format (text, json, yaml)")
	flags.String("fingerprint", "", "Severity of the fingerprint check (fatal, warning, disabled)")
	flags.String("metadata", "", "Severity of the metadata check (fatal, warning, disabled)")
	flags.String("updates", "", "Database update schedule (auto, daily, offline)")
	flags.String("pattern", "", "File name pattern of the libraries to scan")
	flags.Int("workers", 0, "Number of concurrent scan units (0 = number of CPUs)")
	flags.Bool("print-checked-files", false, "Log every file checked and every cache hit")
	flags.String("metrics-textfile", "", "Write Prometheus metrics to this file after the run")
	flags.String("algorithm", "", "Digest used for artifact ids (md5, sha1, sha256, sha512)")

	bindFlag(a.v, "policy.fingerprint", flags.Lookup("fingerprint"))
	bindFlag(a.v, "policy.metadata", flags.Lookup("metadata"))
	bindFlag(a.v, "policy.updates", flags.Lookup("updates"))
	bindFlag(a.v, "scan.pattern", flags.Lookup("pattern"))
	bindFlag(a.v, "scan.workers", flags.Lookup("workers"))
	bindFlag(a.v, "scan.print_checked_files", flags.Lookup("print-checked-files"))
	bindFlag(a.v, "metrics.textfile", flags.Lookup("metrics-textfile"))
	bindFlag(a.v, "identity.algorithm", flags.Lookup("algorithm"))

	return cmd
}

func runScan(ctx context.Context, a *app, format string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return &exitError{code: exitAborted, err: err}
	}

	logger, err := a.newLogger(cfg)
	if err != nil {
		return &exitError{code: exitAborted, err: err}
	}
	//nolint:errcheck // Defer close on log file
	defer logger.Close()

	outcome := scan(ctx, cfg, logger)

	if cfg.Metrics.Textfile != "" {
		m := metrics.NewMetrics()
		m.ObserveOutcome(outcome)
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("Unable to write metrics", interfaces.F("path", cfg.Metrics.Textfile), interfaces.F("error", err))
		}
	}

	if err := renderReport(a.out, format, outcome, cfg.Policy); err != nil {
		return &exitError{code: exitAborted, err: err}
	}

	switch outcome.Verdict {
	case entities.VerdictPassed:
		return nil
	case entities.VerdictFailed:
		return &exitError{code: exitFailed}
	default:
		return &exitError{code: exitAborted}
	}
}

// scan discovers the artifacts and runs the orchestrator. Discovery and
// setup failures produce an aborted outcome like any other run failure.
func scan(ctx context.Context, cfg *config.Config, logger interfaces.Logger) *entities.ScanOutcome {
	paths, err := gateways.NewArtifactFinder().Find(cfg.Scan.OutputDir, cfg.Scan.Pattern)
	if err != nil {
		return abortedOutcome(logger, err)
	}

	s, err := buildStack(cfg, logger)
	if err != nil {
		return abortedOutcome(logger, err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warn("Unable to close stores", interfaces.F("error", err))
		}
	}()

	return s.orchestrator.Run(ctx, cfg.Policy, paths)
}

func abortedOutcome(logger interfaces.Logger, err error) *entities.ScanOutcome {
	runID := uuid.NewString()
	logger.Error("Scan aborted",
		interfaces.F("run_id", runID),
		interfaces.F("state", string(entities.StateInitializing)),
		interfaces.F("error", err),
	)
	return &entities.ScanOutcome{
		RunID:     runID,
		Verdict:   entities.VerdictAborted,
		AbortedIn: entities.StateInitializing,
		Err:       err,
	}
}
