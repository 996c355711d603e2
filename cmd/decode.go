package cmd

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/dofuswire/internal/core"
	"firestige.xyz/dofuswire/internal/queue"
	"firestige.xyz/dofuswire/internal/reassembly"
	"firestige.xyz/dofuswire/internal/registry"
	"firestige.xyz/dofuswire/internal/sink"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>...",
	Short: "Decode hex chunks of one stream",
	Long: `Feed each argument to the decoder as one chunk of a single stream, in
order, and print the messages it produced. Spaces, colons and a 0x prefix
are ignored inside a chunk.

Examples:
  dofuswire decode -r protocol.json 0005060004322e3633
  dofuswire decode -r protocol.json --port 61234 --latest 0005 0000000106 0004322e3633`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRuntime()
		if err != nil {
			return err
		}
		reg, err := loadRegistry(cfg)
		if err != nil {
			return err
		}
		opts := decodeOpts
		if !cmd.Flags().Changed("port") {
			opts.port = cfg.Decoder.ServerPort
		}
		return runDecode(cmd.OutOrStdout(), reg, engineConfig(cfg.Decoder), opts, args)
	},
}

type decodeOptions struct {
	port       uint16
	latest     bool
	format     string
	includeRaw bool
}

var decodeOpts decodeOptions

func init() {
	decodeCmd.Flags().Uint16VarP(&decodeOpts.port, "port", "p", 0,
		"source port of the chunks (default: dofuswire.decoder.server_port)")
	decodeCmd.Flags().BoolVar(&decodeOpts.latest, "latest", false,
		"print only the newest message")
	decodeCmd.Flags().StringVarP(&decodeOpts.format, "format", "o", sink.FormatText,
		"output format: text or json")
	decodeCmd.Flags().BoolVar(&decodeOpts.includeRaw, "raw", false,
		"include the hex body in json output")
}

func runDecode(w io.Writer, reg registry.Registry, ec reassembly.Config, opts decodeOptions, chunks []string) error {
	out, err := sink.NewConsoleSink(w, opts.format, false, opts.includeRaw)
	if err != nil {
		return err
	}

	data := make([][]byte, 0, len(chunks))
	for i, c := range chunks {
		b, err := parseHex(c)
		if err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
		data = append(data, b)
	}

	q := queue.New(0)
	engine := reassembly.New(reg, q, ec)
	for i, b := range data {
		if err := engine.SubmitChunk(b, opts.port); err != nil {
			slog.Warn("chunk decoded with errors", "chunk", i, "error", err)
		}
	}

	var msgs []core.DecodedMessage
	if opts.latest {
		if m, ok := q.PopLatest(); ok {
			msgs = append(msgs, m)
		}
	} else {
		msgs = q.DrainAll()
	}
	return out.Write(context.Background(), msgs)
}

func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(" ", "", ":", "", "\n", "", "\t", "").Replace(s)
	return hex.DecodeString(s)
}
