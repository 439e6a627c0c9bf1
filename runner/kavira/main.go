package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/KaviraWallet/kavira/cmd"
)

var mainCmd = &cobra.Command{Use: "kavira"}

func main() {
	mainCmd.AddCommand(cmd.WalletCmd())

	if mainCmd.Execute() != nil {
		os.Exit(1)
	}

}
