package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	tpnode "github.com/KaviraWallet/kavira/node"
	"github.com/KaviraWallet/kavira/store"
)

const (
	walletFuncName = "wallet"
	walletCmdDes   = "Operate a wallet session: start."
)

var rootPath string
var backendType string

var walletStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Starts the wallet session.",
	Long:  `Starts a wallet session that coordinates state, transactions and auto-lock.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 {
			return fmt.Errorf("trailing args detected")
		}
		// Parsing of the command line is done so silence cmd usage
		cmd.SilenceUsage = true

		bt := store.ParseBackendType(backendType)
		if bt == store.BackendType_Unknown {
			return fmt.Errorf("unknown backend type %q", backendType)
		}

		n := tpnode.NewNode(rootPath, bt)
		n.Start()
		return nil
	},
}

func startCmd() *cobra.Command {
	flags := walletStartCmd.PersistentFlags()
	flags.StringVarP(&rootPath, "root", "", "", "the wallet data root path (default ~/kavira)")
	flags.StringVarP(&backendType, "backend", "", store.BackendType_Leveldb.String(), "the record store backend: leveldb, badger or memdb")
	return walletStartCmd
}

var walletCmd = &cobra.Command{
	Use:   walletFuncName,
	Short: fmt.Sprint(walletCmdDes),
	Long:  fmt.Sprint(walletCmdDes),
}

func WalletCmd() *cobra.Command {
	walletCmd.AddCommand(startCmd())

	return walletCmd
}
