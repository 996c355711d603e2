// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/dofuswire/internal/config"
	"firestige.xyz/dofuswire/internal/log"
)

var (
	// Global flags
	configFile   string
	registryPath string
	logLevel     string

	// closed once the running command returns
	logCloser io.Closer
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dofuswire",
	Short: "dofuswire - passive decoder for the game client/server protocol",
	Long: `dofuswire observes the TCP traffic between a game client and its servers
and turns it into decoded protocol messages.

Bytes are framed with the message header, decoded through a protocol
description loaded at startup and delivered to the configured sinks
(console, rotating JSON files, Kafka).

Sources:
  - capture: live traffic from a network interface (pcap or AF_PACKET)
  - replay:  a pcap or pcapng capture file
  - decode:  hex chunks given on the command line`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
			logCloser = nil
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults and DOFUSWIRE_* environment only when empty)")
	rootCmd.PersistentFlags().StringVarP(&registryPath, "registry", "r", "",
		"protocol description file (overrides dofuswire.registry.path)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level: debug, info, warn or error")

	// Add subcommands
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(registryCmd)
}

// loadRuntime loads the global configuration, applies the command line
// overrides and installs the default logger.
func loadRuntime() (*config.GlobalConfig, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if registryPath != "" {
		cfg.Registry.Path = registryPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	closer, err := log.Init(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	logCloser = closer
	return cfg, nil
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
