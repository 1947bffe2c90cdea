package main

import (
	"fmt"
	"os"
)

func main() {
	clCmd.AddCommand(accountCmd)
	clCmd.AddCommand(initCmd)
	clCmd.AddCommand(versionCmd)
	clCmd.AddCommand(newProposalCmd)
	clCmd.AddCommand(voteCmd)
	clCmd.AddCommand(retractCmd)
	clCmd.AddCommand(proposalCmd)
	clCmd.AddCommand(pubkeyCmd)
	clCmd.AddCommand(signCmd)
	if err := clCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
