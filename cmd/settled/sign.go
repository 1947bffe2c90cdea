package main

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/halcyonchain/settled/crypto"
)

type signArguments struct {
	Skey string
	Data string
}

var signArgs signArguments

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "",
	Long:  ``,
	Run:   signRun,
}

func init() {
	signCmd.Flags().StringVarP(&signArgs.Skey, "skeyPath", "s", "./config/priv_validator_key.json", "private key path")
	signCmd.Flags().StringVarP(&signArgs.Data, "data", "d", "", "data to sign")
}

func signRun(cmd *cobra.Command, args []string) {
	dat := []byte(signArgs.Data)
	pv := crypto.LoadFilePV(signArgs.Skey)
	sig, err := pv.Sign(dat)
	if err != nil {
		fmt.Printf("sign err:%v\n", err)
		return
	}
	println("pubkey:", hex.EncodeToString(pv.PublicKey()))
	println("address:", pv.Address())
	println("signature base64:", base64.StdEncoding.EncodeToString(sig))
	println("signature:", hex.EncodeToString(sig))
}
