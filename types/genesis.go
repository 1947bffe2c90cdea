package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

type GenesisState map[string]json.RawMessage

type GenesisValidator struct {
	Address    crypto.Address `json:"address"`
	PubKey     crypto.PubKey  `json:"pub_key"`
	Power      int64          `json:"power"`
	Name       string         `json:"name"`
	Balance    uint64         `json:"balance"`
	EthHotKey  []byte         `json:"eth_hot_key"`
	EthColdKey []byte         `json:"eth_cold_key"`
}

func (v *GenesisValidator) EthAddrBook() (book EthAddrBook, err error) {
	book.HotKeyAddr, err = PubKeyBytesToAddress(v.EthHotKey)
	if err != nil {
		return
	}
	book.ColdKeyAddr, err = PubKeyBytesToAddress(v.EthColdKey)
	return
}

// GenesisDoc defines the initial conditions for the chain, in
// particular its validator set and the bridge signing keys.
type GenesisDoc struct {
	GenesisTime     time.Time                 `json:"genesis_time"`
	ChainID         string                    `json:"chain_id"`
	InitialHeight   int64                     `json:"initial_height"`
	ConsensusParams *cmttypes.ConsensusParams `json:"consensus_params,omitempty"`
	Validators      []GenesisValidator        `json:"validators"`
	AppHash         []byte                    `json:"app_hash"`
	AppState        json.RawMessage           `json:"app_state"`
}

// SaveAs is a utility method for saving GenensisDoc as a JSON file.
func (genDoc *GenesisDoc) SaveAs(file string) error {
	genDocBytes, err := cmtjson.MarshalIndent(genDoc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(file, genDocBytes, 0o600)
}

func (ag *GenesisDoc) ValidateAndComplete() error {
	if ag.ChainID == "" {
		return errors.New("genesis doc must include non-empty chain_id")
	}

	if ag.InitialHeight < 0 {
		return fmt.Errorf("initial_height cannot be negative (got %v)", ag.InitialHeight)
	}

	if ag.InitialHeight == 0 {
		ag.InitialHeight = 1
	}

	if ag.GenesisTime.IsZero() {
		ag.GenesisTime = time.Now().Round(0).UTC()
	}

	return nil
}

func ExportGenesisFile(genesis *GenesisDoc, genFile string) error {
	if err := genesis.ValidateAndComplete(); err != nil {
		return err
	}
	return genesis.SaveAs(genFile)
}

const SettledModuleName = "settled"
const DefaultPower = 1000
const DefaultBalance = 1000000000

const (
	FlagOverwrite = "overwrite"
	FlagChainID   = "chain-id"
	FlagHome      = "home"
)

// PubKeyBytesToAddress derives the bridge-side address of a compressed
// secp256k1 public key.
func PubKeyBytesToAddress(pk []byte) (addr common.Address, err error) {
	if len(pk) == 0 {
		return addr, errors.New("empty secp256k1 public key")
	}
	pub, err := ethcrypto.DecompressPubkey(pk)
	if err != nil {
		return addr, err
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}
