package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/Duo/internal/config"
)

var (
	cfg         *config.ClientConfig
	flagServer  string
	flagAPI     string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "duo",
	Short: "Two-person video calls over WebRTC",
	Long: `duo joins a named room on a Duo relay and runs a one-to-one call with
whoever else joins it. The relay only forwards signaling; media flows
directly between the two peers.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadClient()
		if err != nil {
			return err
		}
		if flagServer != "" {
			c.ServerURL = flagServer
		}
		if flagAPI != "" {
			c.APIURL = flagAPI
		}
		if flagVerbose {
			c.LogLevel = "debug"
		}
		setupLogging(c.LogLevel)
		cfg = c
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "relay websocket URL (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagAPI, "api", "", "relay API base URL (default from config)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(newCallCmd(), newRoomsCmd(), newRoomCmd())
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
