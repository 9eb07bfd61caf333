package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/govm-net/contractkit/config"
	"github.com/govm-net/contractkit/contract"
	"github.com/govm-net/contractkit/examples/erc20"
	"github.com/govm-net/contractkit/examples/flipper"
	"github.com/govm-net/contractkit/examples/storagedemo"
)

// builtin describes a contract compiled into the tool.
type builtin struct {
	desc *contract.Descriptor
	// imports resolves package qualifiers in its metadata types.
	imports map[string]string
}

var builtins = map[string]builtin{
	"flipper": {desc: flipper.Contract},
	"erc20":   {desc: erc20.Contract},
	"storagedemo": {
		desc:    storagedemo.Contract,
		imports: map[string]string{"storagedemo": "github.com/govm-net/contractkit/examples/storagedemo"},
	},
}

func lookupBuiltin(name string) (builtin, error) {
	b, ok := builtins[name]
	if !ok {
		return builtin{}, fmt.Errorf("unknown contract %q, see 'contractctl list'", name)
	}
	return b, nil
}

func builtinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "contractctl",
		Short: "Contract runtime tool",
		Long: `Contract runtime tool: inspects contract descriptors, generates Go bindings,
uploads wasm code and runs contracts on a configured host.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "configuration file (yaml, json or toml)")
	root.PersistentFlags().AddFlagSet(config.Flags())

	loadConfig := func(cmd *cobra.Command) (*config.Config, error) {
		return config.Load(configFile, cmd.Flags())
	}

	root.AddCommand(
		newListCmd(),
		newMetadataCmd(),
		newSelectorsCmd(),
		newBindingsCmd(),
		newWasmCmd(loadConfig),
		newDemoCmd(loadConfig),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
