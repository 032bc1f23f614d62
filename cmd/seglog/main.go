package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	clientcmd "github.com/rzbill/seglog/internal/cmd/client"
	serverrun "github.com/rzbill/seglog/internal/cmd/server"
	logpkg "github.com/rzbill/seglog/pkg/log"
)

func main() {
	// CLI output logs at warn unless SEGLOG_LOG_LEVEL says otherwise.
	level := logpkg.WarnLevel
	if v := os.Getenv("SEGLOG_LOG_LEVEL"); v != "" {
		if parsed, err := logpkg.ParseLevel(v); err == nil {
			level = parsed
		}
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(level),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
	logpkg.RedirectStdLog(logger)

	rootCmd, flags := clientcmd.NewRoot(logger)
	rootCmd.Long = "seglog is an append-only segmented log and key-value store on Pebble. " +
		"Commands work on a local data directory or, with --grpc, on a running server."
	rootCmd.AddCommand(newServerCommand(flags))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		cancel()
		os.Exit(1)
	}
}

func newServerCommand(flags *clientcmd.GlobalFlags) *cobra.Command {
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	startCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the HTTP and gRPC servers",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.Config(cmd.Flags())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("http") {
				cfg.Server.HTTPAddr, _ = cmd.Flags().GetString("http")
			}
			if cmd.Flags().Changed("grpc-listen") {
				cfg.Server.GRPCAddr, _ = cmd.Flags().GetString("grpc-listen")
			}
			if cmd.Flags().Changed("fsync") {
				cfg.Fsync, _ = cmd.Flags().GetString("fsync")
			}
			if cmd.Flags().Changed("fsync-interval-ms") {
				cfg.FsyncIntervalMs, _ = cmd.Flags().GetInt("fsync-interval-ms")
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
			}
			if cmd.Flags().Changed("log-format") {
				cfg.Log.Format, _ = cmd.Flags().GetString("log-format")
			}
			every, _ := cmd.Flags().GetDuration("catch-up-interval")
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := serverrun.Run(cmd.Context(), serverrun.Options{Config: cfg, CatchUpInterval: every}); err != nil {
				return errors.Wrap(err, "server error")
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	startCmd.Flags().String("http", ":7070", "HTTP listen address (empty disables)")
	startCmd.Flags().String("grpc-listen", ":7071", "gRPC listen address (empty disables)")
	startCmd.Flags().String("fsync", "interval", "Fsync mode: always|interval|never")
	startCmd.Flags().Int("fsync-interval-ms", 5, "When --fsync=interval, group-commit window in ms")
	startCmd.Flags().String("log-level", "", "Log level: debug|info|warn|error")
	startCmd.Flags().String("log-format", "", "Log format: text|json")
	startCmd.Flags().Duration("catch-up-interval", 0, "Secondary mode: resync with the primary on this period")
	serverCmd.AddCommand(startCmd)
	return serverCmd
}
