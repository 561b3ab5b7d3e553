package cli

func regCommands() {
	//Ledger
	ledgerCmd.AddCommand(ledger_latestCmd)
	ledgerCmd.AddCommand(ledger_epochCmd)
	ledgerCmd.AddCommand(ledger_blockCmd)
	ledgerCmd.AddCommand(ledger_qcCmd)
	ledgerCmd.AddCommand(ledger_validatorsCmd)
	ledgerCmd.AddCommand(ledger_randomnessCmd)
	ledgerCmd.AddCommand(ledger_dkgStatusCmd)

	//P2P
	p2pCmd.AddCommand(p2p_peersCmd)

	//Root
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(p2pCmd)
}
