package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	cmttypes "github.com/cometbft/cometbft/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	app_config "github.com/halcyonchain/settled/config"
	"github.com/halcyonchain/settled/types"
)

type printInfo struct {
	Moniker    string          `json:"moniker" yaml:"moniker"`
	ChainID    string          `json:"chain_id" yaml:"chain_id"`
	NodeID     string          `json:"node_id" yaml:"node_id"`
	AppMessage json.RawMessage `json:"app_message" yaml:"app_message"`
}

func displayInfo(info printInfo) error {
	out, err := json.MarshalIndent(info, "", " ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stderr, "%s\n", out)
	return err
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize private validator, p2p, genesis, bridge keys, and application configuration files",
	Long:  `Initialize validator's and node's configuration files.`,
	Args:  cobra.ExactArgs(0),
	RunE:  initRun,
}

func init() {
	initCmd.Flags().BoolP(types.FlagOverwrite, "o", false, "overwrite the genesis.json file")
	initCmd.Flags().String(types.FlagChainID, "", "genesis file chain-id, if left blank will be randomly created")
	initCmd.Flags().String(types.FlagHome, "", "config")
}

func initRun(cmd *cobra.Command, args []string) error {
	home, _ := cmd.Flags().GetString(types.FlagHome)
	chainID, _ := cmd.Flags().GetString(types.FlagChainID)
	overwrite, _ := cmd.Flags().GetBool(types.FlagOverwrite)
	var pk crypto.PubKey

	if chainID == "" {
		chainID = fmt.Sprintf("settled-chain-%v", rand.Uint64())
	}
	appConfig := app_config.NewConfig(home)

	genFile := appConfig.GenesisFile()
	if _, err := os.Stat(genFile); err == nil && !overwrite {
		return fmt.Errorf("genesis file already exists: %v", genFile)
	}

	nodeID, pk1, err := app_config.InitializeNodeValidatorFiles(appConfig, nil)
	if err != nil {
		return err
	}
	pk = pk1

	hot, cold, err := app_config.InitializeBridgeKeys(appConfig.RootDir)
	if err != nil {
		return err
	}

	vals := []types.GenesisValidator{{
		Address:    pk.Address(),
		PubKey:     pk,
		Power:      types.DefaultPower,
		Balance:    types.DefaultBalance,
		EthHotKey:  ethcrypto.CompressPubkey(&hot.PublicKey),
		EthColdKey: ethcrypto.CompressPubkey(&cold.PublicKey),
	}}

	appState, err := cmtjson.Marshal(struct {
		Validators []types.GenesisValidator `json:"validators"`
	}{vals})
	if err != nil {
		return err
	}

	consensusParams := cmttypes.DefaultConsensusParams()
	consensusParams.ABCI.VoteExtensionsEnableHeight = 1

	appGenesis := &types.GenesisDoc{
		GenesisTime:     time.Now(),
		ChainID:         chainID,
		ConsensusParams: consensusParams,
		InitialHeight:   1,
		Validators:      vals,
		AppState:        appState,
	}
	if err = types.ExportGenesisFile(appGenesis, genFile); err != nil {
		return fmt.Errorf("failed to export genesis file %v", err)
	}
	app_config.WriteConfigFile(filepath.Join(appConfig.RootDir, "config", "config.toml"), appConfig)
	return displayInfo(printInfo{
		ChainID:    chainID,
		NodeID:     nodeID,
		AppMessage: appGenesis.AppState,
	})
}
