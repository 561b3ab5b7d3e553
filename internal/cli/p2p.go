package cli

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	p2pCmd = &cobra.Command{
		Use:   "p2p",
		Short: "P2P commands",
	}

	p2p_peersCmd = &cobra.Command{
		Use:   "peers",
		Short: "list peers",
		RunE:  runP2PPeers,
	}
)

func runP2PPeers(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmdContext(cmd), queryTimeout)
	defer cancel()

	c, err := newClient()
	if err != nil {
		return err
	}

	res, err := c.Peers(ctx)
	if err != nil {
		return err
	}

	return printJSON(cmd, res)
}
