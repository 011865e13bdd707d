package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	debugFlag  bool
	prettyFlag bool
	jsonOutput bool

	rootCmd = &cobra.Command{
		Use:   "cdt",
		Short: "Manage layered encrypted cloud-drive mounts",
		Long: `cdt keeps an encrypted cloud drive available as a writable local
directory: an rclone FUSE mount exposes the remote ciphertext, encfs
decrypts it, and unionfs-fuse merges a local cache branch on top. cdt
also evicts stale cache entries and syncs local changes back up.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "vars.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&prettyFlag, "pretty", false, "human-readable log output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print reports as JSON")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// outputJSON prints v to stdout as indented JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	terminationSignal := make(chan os.Signal, 1)
	signal.Notify(terminationSignal, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-terminationSignal
		log.Info().Msg("termination signal received, shutting down")
		cancel()
	}()

	return ctx
}
