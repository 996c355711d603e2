package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"firestige.xyz/dofuswire/internal/capture"
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Decode a pcap or pcapng capture file",
	Long: `Replay a capture file through the decoder. Stream idle timeouts follow
the packet timestamps, so a replay behaves like the live capture it came from.

Examples:
  dofuswire replay -r protocol.json session.pcapng
  dofuswire replay -r protocol.json --filter "tcp port 5556" session.pcap`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRuntime()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("filter") {
			cfg.Capture.BPFFilter = replayFilter
		}

		src, err := capture.OpenFile(args[0], cfg.Capture.BPFFilter)
		if err != nil {
			return fmt.Errorf("open %s: %w", args[0], err)
		}
		return runSource(cfg, src, filepath.Base(args[0]))
	},
}

var replayFilter string

func init() {
	replayCmd.Flags().StringVar(&replayFilter, "filter", "",
		"BPF filter expression (overrides dofuswire.capture.bpf_filter)")
}
