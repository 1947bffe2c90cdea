package bridge

import (
	"crypto/ecdsa"
	"testing"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/halcyonchain/settled/state"
	"github.com/halcyonchain/settled/types"
)

const (
	vfLastEpoch types.Epoch = 3
	vfPower     uint64      = 1 << 32
)

type validationFixture struct {
	st            *state.State
	key           *ecdsa.PrivateKey
	validatorAddr []byte
	book          types.EthAddrBook
}

// newValidationFixture sets up storage the way a live chain would look
// between epoch boundaries: one active validator whose snapshot is
// recorded both for the current epoch and the one taking over next.
func newValidationFixture(t *testing.T) *validationFixture {
	db, err := state.NewMemStateDB(cmtlog.NewNopLogger())
	require.NoError(t, err)
	st := db.NewState()
	st.SetHeight(10)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hotAddr := crypto.PubkeyToAddress(key.PublicKey)
	coldAddr := common.HexToAddress("0xc0")
	validatorAddr := []byte{0x11, 0x22, 0x33}

	entry := state.SnapshotEntry{
		Addr:        validatorAddr,
		HotKeyAddr:  hotAddr,
		ColdKeyAddr: coldAddr,
		HotKey:      crypto.CompressPubkey(&key.PublicKey),
		Power:       vfPower,
	}
	require.NoError(t, st.WriteValidatorSnapshot(vfLastEpoch, []state.SnapshotEntry{entry}))
	require.NoError(t, st.WriteValidatorSnapshot(vfLastEpoch.Next(), []state.SnapshotEntry{entry}))
	_, err = st.Update()
	require.NoError(t, err)

	return &validationFixture{
		st:            st,
		key:           key,
		validatorAddr: validatorAddr,
		book:          types.EthAddrBook{HotKeyAddr: hotAddr, ColdKeyAddr: coldAddr},
	}
}

func (f *validationFixture) signedExt(t *testing.T, mutate func(*Vext)) *SignedVext {
	powers := NewVotingPowersMap()
	powers.Set(f.book, types.VotingPower(vfPower))
	ext := &Vext{
		VotingPowers:  powers,
		ValidatorAddr: f.validatorAddr,
		SigningEpoch:  vfLastEpoch,
	}
	if mutate != nil {
		mutate(ext)
	}
	signed, err := ext.Sign(f.key)
	require.NoError(t, err)
	return signed
}

func TestValidateVextHappyPath(t *testing.T) {
	fix := newValidationFixture(t)
	ext := fix.signedExt(t, nil)
	require.NoError(t, ValidateValsetUpdVext(cmtlog.NewNopLogger(), fix.st, ext, vfLastEpoch))
}

func TestValidateVextRejectsAtGenesis(t *testing.T) {
	fix := newValidationFixture(t)
	fix.st.SetHeight(0)
	ext := fix.signedExt(t, nil)
	err := ValidateValsetUpdVext(cmtlog.NewNopLogger(), fix.st, ext, vfLastEpoch)
	require.ErrorIs(t, err, ErrUnexpectedBlockHeight)
}

func TestValidateVextRejectsFutureEpoch(t *testing.T) {
	fix := newValidationFixture(t)
	ext := fix.signedExt(t, func(v *Vext) { v.SigningEpoch = vfLastEpoch + 1 })
	err := ValidateValsetUpdVext(cmtlog.NewNopLogger(), fix.st, ext, vfLastEpoch)
	require.ErrorIs(t, err, ErrUnexpectedEpoch)
}

func TestValidateVextAcceptsPastEpoch(t *testing.T) {
	require := require.New(t)

	// an extension for an older epoch still validates as long as the
	// snapshots for it exist and no proof superseded it
	fix := newValidationFixture(t)
	ext := fix.signedExt(t, nil)
	require.NoError(ValidateValsetUpdVext(cmtlog.NewNopLogger(), fix.st, ext, vfLastEpoch+2))
}

func TestValidateVextRejectsWhenProofSeen(t *testing.T) {
	fix := newValidationFixture(t)
	fix.st.SetValsetUpdSeen(vfLastEpoch.Next())
	ext := fix.signedExt(t, nil)
	err := ValidateValsetUpdVext(cmtlog.NewNopLogger(), fix.st, ext, vfLastEpoch)
	require.ErrorIs(t, err, ErrValsetUpdProofAvailable)
}

func TestValidateVextRejectsMissingValidator(t *testing.T) {
	fix := newValidationFixture(t)
	ext := fix.signedExt(t, func(v *Vext) {
		v.VotingPowers = NewVotingPowersMap()
	})
	err := ValidateValsetUpdVext(cmtlog.NewNopLogger(), fix.st, ext, vfLastEpoch)
	require.ErrorIs(t, err, ErrValidatorMissingFromExtension)
}

func TestValidateVextRejectsDivergentPower(t *testing.T) {
	fix := newValidationFixture(t)
	ext := fix.signedExt(t, func(v *Vext) {
		v.VotingPowers.Set(fix.book, types.VotingPower(vfPower-1))
	})
	err := ValidateValsetUpdVext(cmtlog.NewNopLogger(), fix.st, ext, vfLastEpoch)
	require.ErrorIs(t, err, ErrDivergesFromStorage)
}

func TestValidateVextRejectsExtraValidators(t *testing.T) {
	fix := newValidationFixture(t)
	ext := fix.signedExt(t, func(v *Vext) {
		extra := types.EthAddrBook{
			HotKeyAddr:  common.HexToAddress("0xee"),
			ColdKeyAddr: common.HexToAddress("0xef"),
		}
		v.VotingPowers.Set(extra, 1)
	})
	err := ValidateValsetUpdVext(cmtlog.NewNopLogger(), fix.st, ext, vfLastEpoch)
	require.ErrorIs(t, err, ErrExtraValidatorsInExtension)
}

func TestValidateVextRejectsUnknownSigner(t *testing.T) {
	fix := newValidationFixture(t)
	ext := fix.signedExt(t, func(v *Vext) {
		v.ValidatorAddr = []byte{0x99}
	})
	err := ValidateValsetUpdVext(cmtlog.NewNopLogger(), fix.st, ext, vfLastEpoch)
	require.ErrorIs(t, err, ErrPubKeyNotInStorage)
}

func TestValidateVextRejectsForeignSignature(t *testing.T) {
	fix := newValidationFixture(t)

	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	powers := NewVotingPowersMap()
	powers.Set(fix.book, types.VotingPower(vfPower))
	ext := &Vext{
		VotingPowers:  powers,
		ValidatorAddr: fix.validatorAddr,
		SigningEpoch:  vfLastEpoch,
	}
	signed, err := ext.Sign(otherKey)
	require.NoError(t, err)

	err = ValidateValsetUpdVext(cmtlog.NewNopLogger(), fix.st, signed, vfLastEpoch)
	require.ErrorIs(t, err, ErrVerifySigFailed)
}

func TestValidateVextDoesNotMutateState(t *testing.T) {
	require := require.New(t)

	fix := newValidationFixture(t)
	ext := fix.signedExt(t, nil)
	require.NoError(ValidateValsetUpdVext(cmtlog.NewNopLogger(), fix.st, ext, vfLastEpoch))

	seen, err := fix.st.ValsetUpdSeen(vfLastEpoch.Next())
	require.NoError(err)
	require.False(seen)
	entries, err := fix.st.ConsensusValidators(vfLastEpoch.Next())
	require.NoError(err)
	require.Len(entries, 1)
}
