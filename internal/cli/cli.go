package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tcfw/ledgercert/internal/config"
)

var (
	rootCmd = &cobra.Command{
		Use:          "ledgercert",
		Short:        "commit certification daemon",
		RunE:         runDaemon,
		SilenceUsage: true,
	}
)

func Execute() error {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "increase verbosity")
	viper.BindPFlag(config.Cfg_verbose, rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.PersistentFlags().String("log-format", "text", "log output format (text or json)")
	viper.BindPFlag(config.Cfg_logFormat, rootCmd.PersistentFlags().Lookup("log-format"))

	regCommands()

	return rootCmd.Execute()
}
