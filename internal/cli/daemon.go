package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tcfw/ledgercert/internal/config"
	"github.com/tcfw/ledgercert/internal/node"
	"github.com/tcfw/ledgercert/internal/utils/logging"
)

var (
	daemonCmd = &cobra.Command{
		Use:   "daemon",
		RunE:  runDaemon,
		Short: "run the daemon",
	}
)

func init() {
	daemonCmd.Flags().String("api-listen", "127.0.0.1:8080", "query api listen address")
	viper.BindPFlag(config.Cfg_api_listenAddr, daemonCmd.Flags().Lookup("api-listen"))

	daemonCmd.Flags().String("genesis", "", "genesis validator set file")
	viper.BindPFlag(config.Cfg_chain_genesisFile, daemonCmd.Flags().Lookup("genesis"))

	daemonCmd.Flags().String("key", "", "BLS signing key file")
	viper.BindPFlag(config.Cfg_chain_signingKeyFile, daemonCmd.Flags().Lookup("key"))

	daemonCmd.Flags().Bool("in-memory", false, "keep the ledger in memory only")
	viper.BindPFlag(config.Cfg_storage_inMemory, daemonCmd.Flags().Lookup("in-memory"))
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n, err := node.NewNode(ctx)
	if err != nil {
		return errors.Wrap(err, "initing node")
	}
	defer n.Stop()

	go func() {
		select {
		case <-waitExit():
			logging.Entry().Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	return n.ListenAndServe(ctx)
}

func waitExit() <-chan os.Signal {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	return sigs
}
