package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ochairo/vulnscan/internal/config"
	"github.com/ochairo/vulnscan/internal/telemetry"
)

// Exit codes
const (
	exitPassed  = 0
	exitFailed  = 1
	exitAborted = 2
)

// exitError carries a process exit code out of a command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// app is shared by every command of one invocation
type app struct {
	v       *viper.Viper
	cfgFile string
	out     io.Writer
	errOut  io.Writer
}

// loadConfig reads the config file and returns the typed configuration
func (a *app) loadConfig() (*config.Config, error) {
	if err := config.ReadFile(a.v, a.cfgFile); err != nil {
		return nil, err
	}
	return config.Load(a.v)
}

// newLogger builds the run logger from configuration
func (a *app) newLogger(cfg *config.Config) (*telemetry.Logger, error) {
	return telemetry.NewLogger(telemetry.Options{
		Debug:  cfg.Log.Verbose,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
		Output: a.errOut,
	})
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{v: config.New(), out: out, errOut: errOut}

	rootCmd := &cobra.Command{
		Use:   "vulnscan",
		Short: "Scan Java build outputs for known vulnerable libraries",
		Long: `vulnscan checks the libraries produced by a build against a database of
known vulnerable artifacts, by content fingerprint and by declared
name and version, and fails the build according to a severity policy.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./vulnscan.yaml or $HOME/.config/vulnscan/vulnscan.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text, json)")
	rootCmd.PersistentFlags().String("log-file", "", "Append a JSON copy of the log to this file")
	rootCmd.PersistentFlags().String("db-driver", "", "Vulnerability database driver (sqlite, postgres)")
	rootCmd.PersistentFlags().String("db-dsn", "", "Vulnerability database path or connection string")

	bindFlag(a.v, "log.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	bindFlag(a.v, "log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	bindFlag(a.v, "log.file", rootCmd.PersistentFlags().Lookup("log-file"))
	bindFlag(a.v, "database.driver", rootCmd.PersistentFlags().Lookup("db-driver"))
	bindFlag(a.v, "database.dsn", rootCmd.PersistentFlags().Lookup("db-dsn"))

	rootCmd.AddCommand(
		newScanCmd(a),
		newSyncCmd(a),
		newCacheCmd(a),
		newConfigCmd(a),
	)
	return rootCmd
}

// Execute runs the root command and returns the process exit code
func Execute(args []string, out, errOut io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd(out, errOut)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return exitPassed
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		if exitErr.err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", exitErr.err)
		}
		return exitErr.code
	}

	fmt.Fprintf(errOut, "Error: %v\n", err)
	return exitAborted
}
