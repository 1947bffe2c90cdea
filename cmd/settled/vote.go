package main

import (
	"github.com/spf13/cobra"

	"github.com/halcyonchain/settled/tx"
)

type voteArguments struct {
	Url      string
	Index    uint64
	Nonce    uint64
	Skey     string
	Proposal uint64
	Nay      bool
	NoSend   bool
}

var voteArgs voteArguments

var voteCmd = &cobra.Command{
	Use:   "vote",
	Short: "Vote on an open governance proposal",
	Long:  ``,
	Run:   voteRun,
}

func init() {
	urlFlag(voteCmd, &voteArgs.Url)
	voteCmd.Flags().Uint64VarP(&voteArgs.Index, "index", "i", 0, "account index")
	voteCmd.Flags().Uint64VarP(&voteArgs.Nonce, "nonce", "n", 0, "account nonce")
	voteCmd.Flags().StringVarP(&voteArgs.Skey, "skeyPath", "s", "./config/priv_validator_key.json", "private key path")
	voteCmd.Flags().Uint64VarP(&voteArgs.Proposal, "proposal", "p", 0, "proposal id")
	voteCmd.Flags().BoolVarP(&voteArgs.Nay, "nay", "", false, "vote nay instead of yay")
	voteCmd.Flags().BoolVarP(&voteArgs.NoSend, "nosend", "", false, "not send transaction but print signature")
}

func voteRun(cmd *cobra.Command, args []string) {
	btx := &tx.LedgerTx{
		Version:   tx.LedgerTxVersion1,
		Type:      tx.LedgerTxTypeVote,
		Validator: voteArgs.Index,
		Tx: &tx.VoteTx{
			Proposal: voteArgs.Proposal,
			Yay:      !voteArgs.Nay,
		},
	}
	signAndBroadcast(voteArgs.Url, btx, voteArgs.Nonce, voteArgs.Skey, voteArgs.NoSend)
}
