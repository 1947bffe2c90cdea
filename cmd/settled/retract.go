package main

import (
	"github.com/spf13/cobra"

	"github.com/halcyonchain/settled/tx"
)

type retractArguments struct {
	Url    string
	Index  uint64
	Nonce  uint64
	Skey   string
	Amount uint64
	NoSend bool
}

var retractArgs retractArguments

var retractCmd = &cobra.Command{
	Use:   "retract",
	Short: "Retract the full stake of a validator account",
	Long:  ``,
	Run:   retractRun,
}

func init() {
	urlFlag(retractCmd, &retractArgs.Url)
	retractCmd.Flags().Uint64VarP(&retractArgs.Index, "index", "i", 0, "account index")
	retractCmd.Flags().Uint64VarP(&retractArgs.Nonce, "nonce", "n", 0, "account nonce")
	retractCmd.Flags().StringVarP(&retractArgs.Skey, "skeyPath", "s", "./config/priv_validator_key.json", "private key path")
	retractCmd.Flags().Uint64VarP(&retractArgs.Amount, "amount", "a", 0, "stake amount, must equal the full stake")
	retractCmd.Flags().BoolVarP(&retractArgs.NoSend, "nosend", "", false, "not send transaction but print signature")
}

func retractRun(cmd *cobra.Command, args []string) {
	btx := &tx.LedgerTx{
		Version:   tx.LedgerTxVersion1,
		Type:      tx.LedgerTxTypeRetract,
		Validator: retractArgs.Index,
		Tx: &tx.RetractTx{
			Amount: retractArgs.Amount,
		},
	}
	signAndBroadcast(retractArgs.Url, btx, retractArgs.Nonce, retractArgs.Skey, retractArgs.NoSend)
}
