package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/cometbft/cometbft/rpc/client/http"
	"github.com/spf13/cobra"

	"github.com/halcyonchain/settled/crypto"
	"github.com/halcyonchain/settled/tx"
)

type newProposalArguments struct {
	Url        string
	Index      uint64
	Nonce      uint64
	Skey       string
	Funds      uint64
	StartEpoch uint64
	GraceEpoch uint64
	Code       string
	NoSend     bool
}

var newProposalArgs newProposalArguments

var newProposalCmd = &cobra.Command{
	Use:   "newproposal",
	Short: "Submit a governance proposal",
	Long:  ``,
	Run:   newProposalRun,
}

func init() {
	urlFlag(newProposalCmd, &newProposalArgs.Url)
	newProposalCmd.Flags().Uint64VarP(&newProposalArgs.Index, "index", "i", 0, "account index")
	newProposalCmd.Flags().Uint64VarP(&newProposalArgs.Nonce, "nonce", "n", 0, "account nonce")
	newProposalCmd.Flags().StringVarP(&newProposalArgs.Skey, "skeyPath", "s", "./config/priv_validator_key.json", "private key path")
	newProposalCmd.Flags().Uint64VarP(&newProposalArgs.Funds, "funds", "f", 0, "escrowed funds")
	newProposalCmd.Flags().Uint64VarP(&newProposalArgs.StartEpoch, "start", "", 0, "voting start epoch")
	newProposalCmd.Flags().Uint64VarP(&newProposalArgs.GraceEpoch, "grace", "", 0, "grace epoch, voting ends before it")
	newProposalCmd.Flags().StringVarP(&newProposalArgs.Code, "code", "c", "", "hex-encoded proposal code")
	newProposalCmd.Flags().BoolVarP(&newProposalArgs.NoSend, "nosend", "", false, "not send transaction but print signature")
}

func newProposalRun(cmd *cobra.Command, args []string) {
	var code []byte
	if newProposalArgs.Code != "" {
		var err error
		code, err = hex.DecodeString(newProposalArgs.Code)
		if err != nil {
			fmt.Printf("invalid code hex:%v\n", err)
			return
		}
	}
	btx := &tx.LedgerTx{
		Version:   tx.LedgerTxVersion1,
		Type:      tx.LedgerTxTypeProposal,
		Validator: newProposalArgs.Index,
		Tx: &tx.ProposalTx{
			Funds:      newProposalArgs.Funds,
			StartEpoch: newProposalArgs.StartEpoch,
			GraceEpoch: newProposalArgs.GraceEpoch,
			Code:       code,
		},
	}
	signAndBroadcast(newProposalArgs.Url, btx, newProposalArgs.Nonce, newProposalArgs.Skey, newProposalArgs.NoSend)
}

// signAndBroadcast fills the nonce, signs the envelope with the
// consensus key, and submits it unless nosend is set.
func signAndBroadcast(url string, btx *tx.LedgerTx, nonce uint64, skey string, noSend bool) {
	cli, err := http.New(url, "/websocket")
	if err != nil {
		fmt.Printf("new client err:%v\n", err)
		return
	}
	ctx := context.Background()
	gres, err := cli.Genesis(ctx)
	if err != nil {
		fmt.Printf("get chain genesis err:%v\n", err)
		return
	}
	chainId := gres.Genesis.ChainID
	if nonce == 0 {
		act, err := queryAccount(url, btx.Validator, "")
		if err != nil {
			return
		}
		nonce = act.Nonce
	}
	btx.Nonce = nonce

	dat, err := btx.SigData([]byte(chainId))
	if err != nil {
		fmt.Printf("tx sign data err:%v\n", err)
		return
	}
	pv := crypto.LoadFilePV(skey)
	sig, err := pv.Sign(dat)
	if err != nil {
		fmt.Printf("sign tx err:%v\n", err)
		return
	}
	sigs := [][]byte{sig}
	if noSend {
		fmt.Println("transaction signatures:")
		for _, sig := range sigs {
			fmt.Println(hex.EncodeToString(sig))
		}
		return
	}
	btx.Sig = sigs
	dat, err = tx.MarshalLedgerTx(btx)
	if err != nil {
		fmt.Printf("encode tx err:%v\n", err)
		return
	}
	res, err := cli.BroadcastTxSync(ctx, dat)
	if err != nil {
		fmt.Printf("broadcast tx err:%v\n", err)
		return
	}
	dat, _ = json.Marshal(res)
	fmt.Printf("%v\n", string(dat))
}

type proposalArguments struct {
	Url string
	Id  uint64
}

var proposalArgs proposalArguments

var proposalCmd = &cobra.Command{
	Use:   "proposal",
	Short: "Query a proposal and its votes",
	Long:  ``,
	Run:   proposalRun,
}

func init() {
	urlFlag(proposalCmd, &proposalArgs.Url)
	proposalCmd.Flags().Uint64VarP(&proposalArgs.Id, "id", "i", 0, "proposal id")
}

func proposalRun(cmd *cobra.Command, args []string) {
	cli, err := http.New(proposalArgs.Url, "/websocket")
	if err != nil {
		fmt.Printf("new client err:%v\n", err)
		return
	}
	s := fmt.Sprintf("0%x", proposalArgs.Id)
	if len(s)&1 == 1 {
		s = s[1:]
	}
	dat, _ := hex.DecodeString(s)
	res, err := cli.ABCIQuery(context.Background(), "/proposals/", dat)
	if err != nil {
		fmt.Printf("request err:%v\n", err)
		return
	}
	if res.Response.Code != 0 {
		fmt.Printf("proposal not found: %v\n", res.Response.Log)
		return
	}
	fmt.Println(string(res.Response.Value))
}
