package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tcfw/ledgercert/internal/api"
	"github.com/tcfw/ledgercert/internal/config"
)

const (
	queryTimeout = 10 * time.Second
)

var (
	ledgerCmd = &cobra.Command{
		Use:   "ledger",
		Short: "Query the ledger of a running daemon",
	}

	ledger_latestCmd = &cobra.Command{
		Use:   "latest",
		Short: "latest committed ledger info",
		Args:  cobra.NoArgs,
		RunE: query(func(ctx context.Context, c *api.Client, _ []uint64) (interface{}, error) {
			return c.LatestLedgerInfo(ctx)
		}),
	}

	ledger_epochCmd = &cobra.Command{
		Use:   "epoch <epoch>",
		Short: "ledger info that ended an epoch",
		Args:  cobra.ExactArgs(1),
		RunE: query(func(ctx context.Context, c *api.Client, a []uint64) (interface{}, error) {
			return c.LedgerInfoByEpoch(ctx, a[0])
		}),
	}

	ledger_blockCmd = &cobra.Command{
		Use:   "block <epoch> <round>",
		Short: "committed block",
		Args:  cobra.ExactArgs(2),
		RunE: query(func(ctx context.Context, c *api.Client, a []uint64) (interface{}, error) {
			b, err := c.Block(ctx, a[0], a[1])
			if err != nil {
				return nil, err
			}
			return api.NewBlockResponse(b), nil
		}),
	}

	ledger_qcCmd = &cobra.Command{
		Use:   "qc <epoch> <round>",
		Short: "quorum certificate of a round",
		Args:  cobra.ExactArgs(2),
		RunE: query(func(ctx context.Context, c *api.Client, a []uint64) (interface{}, error) {
			qc, err := c.QC(ctx, a[0], a[1])
			if err != nil {
				return nil, err
			}
			return api.NewQCResponse(qc), nil
		}),
	}

	ledger_validatorsCmd = &cobra.Command{
		Use:   "validators <epoch>",
		Short: "validator count of an epoch",
		Args:  cobra.ExactArgs(1),
		RunE: query(func(ctx context.Context, c *api.Client, a []uint64) (interface{}, error) {
			n, err := c.ValidatorCount(ctx, a[0])
			if err != nil {
				return nil, err
			}
			return &api.ValidatorCountResponse{Epoch: a[0], ValidatorCount: n}, nil
		}),
	}

	ledger_randomnessCmd = &cobra.Command{
		Use:   "randomness <block_number>",
		Short: "randomness seed of a block",
		Args:  cobra.ExactArgs(1),
		RunE: query(func(ctx context.Context, c *api.Client, a []uint64) (interface{}, error) {
			r, err := c.Randomness(ctx, a[0])
			if err != nil {
				return nil, err
			}
			return &api.RandomnessResponse{BlockNumber: a[0], Randomness: []byte(r)}, nil
		}),
	}

	ledger_dkgStatusCmd = &cobra.Command{
		Use:   "dkg-status",
		Short: "current epoch and newest certified round",
		Args:  cobra.NoArgs,
		RunE: query(func(ctx context.Context, c *api.Client, _ []uint64) (interface{}, error) {
			return c.DKGStatus(ctx)
		}),
	}
)

type queryFn func(ctx context.Context, c *api.Client, args []uint64) (interface{}, error)

// query parses positional uint arguments, runs fn against the daemon
// and prints the result as JSON
func query(fn queryFn) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		nums := make([]uint64, 0, len(args))
		for _, a := range args {
			n, err := strconv.ParseUint(a, 10, 64)
			if err != nil {
				return errors.Wrapf(err, "parsing argument %q", a)
			}
			nums = append(nums, n)
		}

		c, err := newClient()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmdContext(cmd), queryTimeout)
		defer cancel()

		res, err := fn(ctx, c, nums)
		if err != nil {
			return err
		}

		return printJSON(cmd, res)
	}
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newClient() (*api.Client, error) {
	cfg, err := config.GetConfig()
	if err != nil {
		return nil, errors.Wrap(err, "loading config")
	}

	return api.NewClient(cfg.API().ListenAddr), nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	s, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding result")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", s)
	return nil
}
