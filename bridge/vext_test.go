package bridge

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/halcyonchain/settled/types"
)

func book(hot, cold string) types.EthAddrBook {
	return types.EthAddrBook{
		HotKeyAddr:  common.HexToAddress(hot),
		ColdKeyAddr: common.HexToAddress(cold),
	}
}

func TestVextSignVerifyRoundTrip(t *testing.T) {
	require := require.New(t)

	key, err := crypto.GenerateKey()
	require.NoError(err)

	powers := NewVotingPowersMap()
	powers.Set(book("0x01", "0x02"), 100)
	powers.Set(book("0x03", "0x04"), 50)

	ext := &Vext{
		VotingPowers:  powers,
		ValidatorAddr: []byte{0xde, 0xad, 0xbe, 0xef},
		SigningEpoch:  7,
	}
	signed, err := ext.Sign(key)
	require.NoError(err)
	require.Len(signed.Sig, 65)

	pk := crypto.CompressPubkey(&key.PublicKey)
	require.NoError(signed.Verify(pk))

	// a tampered payload no longer matches the signature
	signed.Data.SigningEpoch = 8
	require.ErrorIs(signed.Verify(pk), ErrVerifySigFailed)
	signed.Data.SigningEpoch = 7
	require.NoError(signed.Verify(pk))

	otherKey, err := crypto.GenerateKey()
	require.NoError(err)
	require.ErrorIs(signed.Verify(crypto.CompressPubkey(&otherKey.PublicKey)), ErrVerifySigFailed)
}

func TestVextDigestIgnoresInsertionOrder(t *testing.T) {
	require := require.New(t)

	a := NewVotingPowersMap()
	a.Set(book("0x01", "0x02"), 100)
	a.Set(book("0x03", "0x04"), 50)

	b := NewVotingPowersMap()
	b.Set(book("0x03", "0x04"), 50)
	b.Set(book("0x01", "0x02"), 100)

	addr := []byte{0x01}
	d1, err := (&Vext{VotingPowers: a, ValidatorAddr: addr, SigningEpoch: 3}).SignBytes()
	require.NoError(err)
	d2, err := (&Vext{VotingPowers: b, ValidatorAddr: addr, SigningEpoch: 3}).SignBytes()
	require.NoError(err)
	require.Equal(d1, d2)
}

func TestVextDigestBreaksTiesByHotKeyAddr(t *testing.T) {
	require := require.New(t)

	// equal powers, distinct hot keys: still one canonical digest
	a := NewVotingPowersMap()
	a.Set(book("0x0a", "0x01"), 10)
	a.Set(book("0x0b", "0x02"), 10)

	b := NewVotingPowersMap()
	b.Set(book("0x0b", "0x02"), 10)
	b.Set(book("0x0a", "0x01"), 10)

	d1, err := (&Vext{VotingPowers: a, ValidatorAddr: []byte{1}, SigningEpoch: 1}).SignBytes()
	require.NoError(err)
	d2, err := (&Vext{VotingPowers: b, ValidatorAddr: []byte{1}, SigningEpoch: 1}).SignBytes()
	require.NoError(err)
	require.Equal(d1, d2)
}

func TestSignedVextEncodeDecode(t *testing.T) {
	require := require.New(t)

	key, err := crypto.GenerateKey()
	require.NoError(err)

	powers := NewVotingPowersMap()
	powers.Set(book("0x03", "0x04"), 50)
	powers.Set(book("0x01", "0x02"), 100)

	ext := &Vext{
		VotingPowers:  powers,
		ValidatorAddr: []byte{0xaa, 0xbb},
		SigningEpoch:  9,
	}
	signed, err := ext.Sign(key)
	require.NoError(err)

	raw, err := EncodeSignedVext(signed)
	require.NoError(err)
	decoded, err := DecodeSignedVext(raw)
	require.NoError(err)

	require.Equal(signed.Sig, decoded.Sig)
	require.Equal(signed.Data.ValidatorAddr, decoded.Data.ValidatorAddr)
	require.Equal(signed.Data.SigningEpoch, decoded.Data.SigningEpoch)
	require.Equal(2, decoded.Data.VotingPowers.Len())

	// decoded extension still verifies against the signing key
	require.NoError(decoded.Verify(crypto.CompressPubkey(&key.PublicKey)))

	// re-encoding reproduces the wire bytes
	again, err := EncodeSignedVext(decoded)
	require.NoError(err)
	require.Equal(raw, again)
}

func TestDecodeSignedVextRejectsGarbage(t *testing.T) {
	_, err := DecodeSignedVext([]byte("not rlp at all"))
	require.ErrorIs(t, err, ErrBadVextEncoding)
}

func TestVerifyRejectsShortSig(t *testing.T) {
	require := require.New(t)

	key, err := crypto.GenerateKey()
	require.NoError(err)
	signed := &SignedVext{
		Data: Vext{VotingPowers: NewVotingPowersMap(), SigningEpoch: 1},
		Sig:  []byte{1, 2, 3},
	}
	require.ErrorIs(signed.Verify(crypto.CompressPubkey(&key.PublicKey)), ErrVerifySigFailed)
}

func TestVotingPowersMapSemantics(t *testing.T) {
	require := require.New(t)

	m := NewVotingPowersMap()
	m.Set(book("0x01", "0x02"), 10)
	m.Set(book("0x03", "0x04"), 20)
	m.Set(book("0x01", "0x02"), 30) // overwrite keeps position

	require.Equal(2, m.Len())
	got, ok := m.Get(book("0x01", "0x02"))
	require.True(ok)
	require.Equal(types.VotingPower(30), got)

	var order []types.EthAddrBook
	m.Each(func(b types.EthAddrBook, _ types.VotingPower) bool {
		order = append(order, b)
		return true
	})
	require.Equal([]types.EthAddrBook{book("0x01", "0x02"), book("0x03", "0x04")}, order)

	// early stop
	count := 0
	m.Each(func(types.EthAddrBook, types.VotingPower) bool {
		count++
		return false
	})
	require.Equal(1, count)
}
