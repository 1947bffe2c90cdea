package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"os"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// LoadEthKey reads a hex-encoded secp256k1 private key from a file
// written at init time.
func LoadEthKey(path string) (*ecdsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	hexKey := strings.TrimSpace(string(raw))
	hexKey = strings.TrimPrefix(hexKey, "0x")
	return ethcrypto.HexToECDSA(hexKey)
}

// GenerateEthKey creates a fresh secp256k1 key and writes it to path
// in hex.
func GenerateEthKey(path string) (*ecdsa.PrivateKey, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	raw := ethcrypto.FromECDSA(key)
	if err := os.WriteFile(path, []byte(hex.EncodeToString(raw)), 0o600); err != nil {
		return nil, err
	}
	return key, nil
}

// CompressedPubKey returns the 33-byte compressed public key, the form
// stored in validator snapshots.
func CompressedPubKey(key *ecdsa.PrivateKey) []byte {
	return ethcrypto.CompressPubkey(&key.PublicKey)
}
