package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/dofuswire/internal/capture"
	"firestige.xyz/dofuswire/internal/config"
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Decode live traffic from a network interface",
	Long: `Capture the game traffic on a network interface and decode it until
interrupted (SIGINT or SIGTERM).

Flags override the dofuswire.capture section of the config file.

Examples:
  dofuswire capture -r protocol.json -i eth0
  dofuswire capture -c /etc/dofuswire/config.yml --engine afpacket`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRuntime()
		if err != nil {
			return err
		}
		applyCaptureFlags(cmd, &cfg.Capture)

		src, err := capture.OpenLive(liveConfig(cfg.Capture))
		if err != nil {
			return fmt.Errorf("open %s: %w", cfg.Capture.Interface, err)
		}
		return runSource(cfg, src, cfg.Capture.Interface)
	},
}

var (
	captureInterface string
	captureEngine    string
	captureFilter    string
)

func init() {
	captureCmd.Flags().StringVarP(&captureInterface, "interface", "i", "",
		"network interface to capture on")
	captureCmd.Flags().StringVar(&captureEngine, "engine", "",
		"capture engine: pcap or afpacket")
	captureCmd.Flags().StringVar(&captureFilter, "filter", "",
		"BPF filter expression")
}

func applyCaptureFlags(cmd *cobra.Command, cc *config.CaptureConfig) {
	if cmd.Flags().Changed("interface") {
		cc.Interface = captureInterface
	}
	if cmd.Flags().Changed("engine") {
		cc.Engine = captureEngine
	}
	if cmd.Flags().Changed("filter") {
		cc.BPFFilter = captureFilter
	}
}

func liveConfig(cc config.CaptureConfig) capture.Config {
	return capture.Config{
		Engine:       cc.Engine,
		Interface:    cc.Interface,
		SnapLen:      cc.SnapLen,
		Promiscuous:  cc.Promiscuous,
		BPFFilter:    cc.BPFFilter,
		Timeout:      cc.Timeout,
		BufferSizeMB: cc.BufferSizeMB,
		FanoutID:     cc.FanoutID,
	}
}
