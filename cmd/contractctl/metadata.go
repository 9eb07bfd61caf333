package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/govm-net/contractkit/abi"
)

// writeOutput writes data to path, or to w when path is empty.
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the built-in contracts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range builtinNames() {
				d := builtins[name].desc
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", name, d.Docs)
			}
			return nil
		},
	}
}

func newMetadataCmd() *cobra.Command {
	var name, output string
	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Print the JSON metadata of a contract",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := lookupBuiltin(name)
			if err != nil {
				return err
			}
			data, err := abi.FromDescriptor(b.desc).JSON()
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, append(data, '\n'))
		},
	}
	cmd.Flags().StringVarP(&name, "contract", "c", "", "built-in contract name (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, stdout when empty")
	cmd.MarkFlagRequired("contract")
	return cmd
}

func newSelectorsCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "selectors",
		Short: "Print the selector table of a contract",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := lookupBuiltin(name)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SELECTOR\tKIND\tLABEL\tFLAGS")
			for _, e := range b.desc.Entries {
				flags := ""
				if e.Mutates {
					flags += "mut "
				}
				if e.Payable {
					flags += "payable "
				}
				if e.Default {
					flags += "default"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Selector, e.Kind, e.QualifiedLabel(), flags)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&name, "contract", "c", "", "built-in contract name (required)")
	cmd.MarkFlagRequired("contract")
	return cmd
}

func newBindingsCmd() *cobra.Command {
	var name, metadataFile, pkg, output string
	var imports map[string]string
	cmd := &cobra.Command{
		Use:   "bindings",
		Short: "Generate Go bindings for calling a contract",
		Long: `Generate Go bindings for calling a contract: selectors, input builders and a
<Contract>Ref type for cross-contract calls. The contract is either built in
(--contract) or described by a metadata file (--metadata).`,
		Example: `  contractctl bindings -c erc20 --package token -o erc20_ref.go
  contractctl bindings -m example.json --import storagedemo=github.com/govm-net/contractkit/examples/storagedemo`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := abi.BindingOptions{Package: pkg, Imports: map[string]string{}}
			var m *abi.Metadata
			switch {
			case name != "" && metadataFile != "":
				return fmt.Errorf("--contract and --metadata are exclusive")
			case name != "":
				b, err := lookupBuiltin(name)
				if err != nil {
					return err
				}
				m = abi.FromDescriptor(b.desc)
				for q, path := range b.imports {
					opts.Imports[q] = path
				}
			case metadataFile != "":
				data, err := os.ReadFile(metadataFile)
				if err != nil {
					return fmt.Errorf("failed to read metadata: %w", err)
				}
				if m, err = abi.Parse(data); err != nil {
					return err
				}
			default:
				return fmt.Errorf("one of --contract or --metadata is required")
			}
			for q, path := range imports {
				opts.Imports[q] = path
			}

			code, err := abi.GenerateBindings(m, opts)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, code)
		},
	}
	cmd.Flags().StringVarP(&name, "contract", "c", "", "built-in contract name")
	cmd.Flags().StringVarP(&metadataFile, "metadata", "m", "", "metadata JSON file")
	cmd.Flags().StringVar(&pkg, "package", "", "package name of the generated file")
	cmd.Flags().StringToStringVar(&imports, "import", nil, "qualifier=import/path for types in the metadata")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, stdout when empty")
	return cmd
}
