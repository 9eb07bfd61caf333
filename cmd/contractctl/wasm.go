package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/govm-net/contractkit/config"
	"github.com/govm-net/contractkit/core"
	"github.com/govm-net/contractkit/host"
	"github.com/govm-net/contractkit/wasm"
)

type configLoader func(cmd *cobra.Command) (*config.Config, error)

func newWasmCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wasm",
		Short: "Work with wasm contract code",
	}

	inspect := &cobra.Command{
		Use:   "inspect <file.wasm>",
		Short: "Check that a wasm module implements the contract interface",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			code, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read wasm file: %w", err)
			}

			ctx := cmd.Context()
			engine, err := wasm.NewEngine(ctx, wasm.WithCacheSize(cfg.Wasm.CacheSize))
			if err != nil {
				return err
			}
			defer engine.Close(ctx)

			if _, err := engine.Load(ctx, code); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok %s (%d bytes)\n", core.HashBytes(code), len(code))
			return nil
		},
	}

	upload := &cobra.Command{
		Use:   "upload <file.wasm>",
		Short: "Store wasm code in the configured code directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			if cfg.Wasm.CodeDir == "" {
				return fmt.Errorf("wasm.code_dir is not configured")
			}
			code, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read wasm file: %w", err)
			}

			h, err := host.NewFromConfig(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer h.Close()

			hash, err := h.UploadWasm(cmd.Context(), code)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.AddCommand(inspect, upload)
	return cmd
}
