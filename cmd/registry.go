package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"firestige.xyz/dofuswire/internal/registry"
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect a protocol description",
}

var registryValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a protocol description file",
	Long: `Validate a protocol description (JSON, YAML or TOML) without decoding
anything. The file defaults to --registry or dofuswire.registry.path.

Examples:
  dofuswire registry validate protocol.json`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path, err := registryArg(args)
		if err != nil {
			exitWithError("no protocol description", err)
		}
		if err := runRegistryValidate(cmd.OutOrStdout(), path); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
			os.Exit(1)
		}
	},
}

var registryShowCmd = &cobra.Command{
	Use:   "show [id]...",
	Short: "List the messages of a protocol description",
	Long: `List message ids and names, all of them or only the given ids.

Examples:
  dofuswire registry show -r protocol.json
  dofuswire registry show -r protocol.json 1 4417`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := registryArg(nil)
		if err != nil {
			return err
		}
		return runRegistryShow(cmd.OutOrStdout(), path, args)
	},
}

func init() {
	registryCmd.AddCommand(registryValidateCmd)
	registryCmd.AddCommand(registryShowCmd)
}

func registryArg(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	cfg, err := loadRuntime()
	if err != nil {
		return "", err
	}
	if cfg.Registry.Path == "" {
		return "", errNoRegistry
	}
	return cfg.Registry.Path, nil
}

func runRegistryValidate(w io.Writer, path string) error {
	d, err := registry.LoadDescription(path)
	if err != nil {
		return err
	}
	s, err := registry.Compile(d)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "VALID: version %q, %d message(s), %d type(s)\n", s.Version(), s.Len(), s.TypeCount())
	return nil
}

func runRegistryShow(w io.Writer, path string, ids []string) error {
	d, err := registry.LoadDescription(path)
	if err != nil {
		return err
	}
	s, err := registry.Compile(d)
	if err != nil {
		return err
	}

	want := s.IDs()
	if len(ids) > 0 {
		want = want[:0:0]
		for _, arg := range ids {
			id, err := cast.ToUint16E(arg)
			if err != nil {
				return fmt.Errorf("invalid message id %q: %w", arg, err)
			}
			want = append(want, id)
		}
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, id := range want {
		e, ok := s.Lookup(id)
		if !ok {
			return fmt.Errorf("message id %d is not registered", id)
		}
		fmt.Fprintf(tw, "%d\t%s\n", id, e.Name)
	}
	return tw.Flush()
}
