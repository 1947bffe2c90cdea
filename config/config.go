package config

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cometbft/cometbft/config"
	"github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	eth_crypto "github.com/ethereum/go-ethereum/crypto"
)

// DefaultEpochBlocks is how many blocks one epoch spans.
const DefaultEpochBlocks = 100

type AppConfig struct {
	Home          string `mapstructure:"-"`
	TimeoutCommit uint64 `mapstructure:"-"`

	EpochBlocks       uint64 `mapstructure:"epoch_blocks"`
	IndexerListenAddr string `mapstructure:"indexer_listen_addr"`
}

func DefaultAppConfig(home string) *AppConfig {
	return &AppConfig{
		Home:              home,
		EpochBlocks:       DefaultEpochBlocks,
		IndexerListenAddr: "127.0.0.1:8547",
	}
}

func NewAppConfig(home string) *AppConfig {
	return DefaultAppConfig(home)
}

// EpochOf maps a block height to its epoch. Height 0 is genesis and
// belongs to epoch 0.
func (c *AppConfig) EpochOf(height uint64) uint64 {
	if c.EpochBlocks == 0 {
		return 0
	}
	return height / c.EpochBlocks
}

func GWeiPerPower(height uint64) uint64 {
	return 1000000000
}

func PowerPerStake(stake uint64, height uint64) int64 {
	return int64(stake / GWeiPerPower(height))
}

type Config struct {
	*config.Config `mapstructure:",squash"`

	App *AppConfig `mapstructure:"app"`
}

func DefaultConfig(home string) *Config {
	if len(home) == 0 {
		home = os.ExpandEnv("$HOME/.settled")
	}
	config := &Config{
		DefaultCometConfig(),
		NewAppConfig(home),
	}
	config.RootDir = home
	_ = os.MkdirAll(home+"/config", 0755)
	return config
}

// InitializeBridgeKeys generates the secp256k1 hot and cold keys a
// validator uses on the bridge side and writes them under config/.
func InitializeBridgeKeys(home string) (hot, cold *ecdsa.PrivateKey, err error) {
	hot, err = eth_crypto.GenerateKey()
	if err != nil {
		return nil, nil, err
	}
	cold, err = eth_crypto.GenerateKey()
	if err != nil {
		return nil, nil, err
	}
	hotHex := hex.EncodeToString(eth_crypto.FromECDSA(hot))
	coldHex := hex.EncodeToString(eth_crypto.FromECDSA(cold))
	if err = os.WriteFile(BridgeHotKeyFile(home), []byte(hotHex), 0600); err != nil {
		return nil, nil, err
	}
	if err = os.WriteFile(BridgeColdKeyFile(home), []byte(coldHex), 0600); err != nil {
		return nil, nil, err
	}
	return hot, cold, nil
}

func BridgeHotKeyFile(home string) string {
	return filepath.Join(home, "config", "bridge_hot_key")
}

func BridgeColdKeyFile(home string) string {
	return filepath.Join(home, "config", "bridge_cold_key")
}

func NewConfig(home string) *Config {
	if len(home) == 0 {
		home = os.ExpandEnv("$HOME/.settled")
	}
	_ = os.MkdirAll(home+"/config", 0755)
	config := &Config{
		DefaultCometConfig(),
		NewAppConfig(home),
	}
	config.RootDir = home
	return config
}

func InitializeNodeValidatorFiles(config *Config, privKey crypto.PrivKey) (nodeID string, pk crypto.PubKey, err error) {
	nodeKey, err := p2p.LoadOrGenNodeKey(config.NodeKeyFile())
	if err != nil {
		return "", nil, err
	}
	nodeID = string(nodeKey.ID())

	pvKeyFile := config.PrivValidatorKeyFile()
	if err := os.MkdirAll(filepath.Dir(pvKeyFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvKeyFile), err)
	}

	pvStateFile := config.PrivValidatorStateFile()
	if err := os.MkdirAll(filepath.Dir(pvStateFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvStateFile), err)
	}

	var filePV *privval.FilePV
	if privKey == nil {
		filePV = privval.LoadOrGenFilePV(pvKeyFile, pvStateFile)
	} else {
		filePV = privval.NewFilePV(privKey, pvKeyFile, pvStateFile)
		filePV.Save()
	}
	pukey, err := filePV.GetPubKey()
	if err != nil {
		return "", nil, err
	}

	return nodeID, pukey, nil
}

func DefaultCometConfig() *config.Config {
	cometConfig := config.DefaultConfig()
	cometConfig.Consensus.TimeoutPropose = time.Second * 10
	cometConfig.Consensus.TimeoutPrevote = time.Second * 1
	cometConfig.Consensus.TimeoutPrecommit = time.Second * 1
	cometConfig.Consensus.TimeoutCommit = time.Millisecond * 1200
	return cometConfig
}
