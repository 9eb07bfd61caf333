package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/govm-net/contractkit/core"
	"github.com/govm-net/contractkit/examples/erc20"
	"github.com/govm-net/contractkit/host"
)

func newDemoCmd(load configLoader) *cobra.Command {
	var supply uint64
	var salt string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Deploy the erc20 token on the configured host and move some tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			h, err := host.NewFromConfig(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer h.Close()

			if salt == "" {
				salt = strconv.FormatInt(time.Now().UnixNano(), 10)
			}
			return runDemo(cmd.Context(), h, cmd.OutOrStdout(), core.NewBalance(supply), []byte(salt))
		},
	}
	cmd.Flags().Uint64Var(&supply, "supply", 1000, "initial token supply")
	cmd.Flags().StringVar(&salt, "salt", "", "instantiation salt, derived from the clock when empty")
	return cmd
}

type demo struct {
	ctx   context.Context
	h     *host.Host
	out   io.Writer
	token core.AccountId
}

func (d *demo) call(caller core.AccountId, label string, args any) (*host.Result, error) {
	input, err := erc20.Contract.Input(label, args)
	if err != nil {
		return nil, err
	}
	res, err := d.h.Call(d.ctx, host.CallRequest{Caller: caller, Target: d.token, Input: input})
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(d.out, "%-14s %-8s gas=%d events=%d\n", label, res.Status, res.GasUsed, len(res.Events))
	return res, nil
}

func (d *demo) balanceOf(owner core.AccountId) (core.Balance, error) {
	input, err := erc20.Contract.Input("balance_of", erc20.BalanceOfArgs{Owner: owner})
	if err != nil {
		return core.Balance{}, err
	}
	res, err := d.h.Query(d.ctx, host.CallRequest{Caller: owner, Target: d.token, Input: input})
	if err != nil {
		return core.Balance{}, err
	}
	var b core.Balance
	return b, res.Decode(&b)
}

func runDemo(ctx context.Context, h *host.Host, out io.Writer, supply core.Balance, salt []byte) error {
	alice := core.AccountIdFromSeed("alice")
	bob := core.AccountIdFromSeed("bob")
	charlie := core.AccountIdFromSeed("charlie")

	code, err := h.RegisterNative(erc20.Contract.Name, erc20.Contract)
	if err != nil {
		return err
	}
	input, err := erc20.Contract.Input("new", erc20.NewArgs{TotalSupply: supply})
	if err != nil {
		return err
	}
	if _, err := h.AdvanceBlock(6000); err != nil {
		return err
	}
	res, err := h.Instantiate(ctx, host.InstantiateRequest{Caller: alice, CodeHash: code, Input: input, Salt: salt})
	if err != nil {
		return err
	}
	if !res.Succeeded() {
		return fmt.Errorf("deploy: %w", res.Error())
	}
	fmt.Fprintf(out, "token %s gas=%d\n", res.Address, res.GasUsed)

	d := &demo{ctx: ctx, h: h, out: out, token: res.Address}
	n, _ := supply.Uint64()
	steps := []struct {
		caller core.AccountId
		label  string
		args   any
	}{
		{alice, "transfer", erc20.TransferArgs{To: bob, Value: core.NewBalance(n / 2)}},
		{alice, "approve", erc20.ApproveArgs{Spender: charlie, Value: core.NewBalance(n / 4)}},
		{charlie, "transfer_from", erc20.TransferFromArgs{From: alice, To: bob, Value: core.NewBalance(n / 4)}},
		{charlie, "transfer_from", erc20.TransferFromArgs{From: alice, To: bob, Value: core.NewBalance(1)}},
	}
	for _, s := range steps {
		res, err := d.call(s.caller, s.label, s.args)
		if err != nil {
			return err
		}
		if res.Status == host.StatusReverted {
			if code, err := erc20.ErrorFromRevert(res.Output); err == nil {
				fmt.Fprintf(out, "%14s %v\n", "", code)
			}
		}
	}

	for _, acct := range []struct {
		name string
		id   core.AccountId
	}{{"alice", alice}, {"bob", bob}, {"charlie", charlie}} {
		b, err := d.balanceOf(acct.id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%-8s %s\n", acct.name, b)
	}

	fp, err := h.StateFingerprint(d.token)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "state %s\n", fp)
	return nil
}
