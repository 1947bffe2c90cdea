package bridge

import (
	"fmt"

	cmtlog "github.com/cometbft/cometbft/libs/log"

	"github.com/halcyonchain/settled/state"
	"github.com/halcyonchain/settled/types"
)

// ValidateValsetUpdVext checks a validator-set-update vote extension
// against storage without mutating it. lastEpoch is the epoch of the
// block the extension votes on; an extension may not attest beyond it.
// The power table inside the extension describes the set taking over
// at signing_epoch + 1.
//
// The guards run in a fixed order, cheapest first, so a stale or
// malformed extension is rejected before any signature work.
func ValidateValsetUpdVext(logger cmtlog.Logger, st *state.State, ext *SignedVext, lastEpoch types.Epoch) error {
	if st.LastBlockHeight() == 0 {
		logger.Info("rejecting vote extension issued at genesis")
		return ErrUnexpectedBlockHeight
	}
	if ext.Data.SigningEpoch > lastEpoch {
		logger.Info("rejecting vote extension signed over a future epoch",
			"got", uint64(ext.Data.SigningEpoch), "last", uint64(lastEpoch))
		return ErrUnexpectedEpoch
	}

	nextEpoch := ext.Data.SigningEpoch.Next()
	seen, err := st.ValsetUpdSeen(nextEpoch)
	if err != nil {
		return err
	}
	if seen {
		logger.Info("rejecting vote extension, proof already available",
			"epoch", uint64(nextEpoch))
		return ErrValsetUpdProofAvailable
	}

	entries, err := st.ConsensusValidators(nextEpoch)
	if err != nil {
		return err
	}
	matched := 0
	for i := range entries {
		expected := types.VotingPower(entries[i].Power)
		got, ok := ext.Data.VotingPowers.Get(entries[i].AddrBook())
		if !ok {
			logger.Info("validator missing from vote extension",
				"hot_key_addr", entries[i].HotKeyAddr.Hex())
			return ErrValidatorMissingFromExtension
		}
		if got != expected {
			logger.Info("voting power diverges from storage",
				"hot_key_addr", entries[i].HotKeyAddr.Hex(),
				"got", uint64(got), "expected", uint64(expected))
			return ErrDivergesFromStorage
		}
		matched++
	}
	if ext.Data.VotingPowers.Len() != matched {
		logger.Info("vote extension carries validators outside the active set",
			"extra", ext.Data.VotingPowers.Len()-matched)
		return ErrExtraValidatorsInExtension
	}

	hotKey, err := st.ReadValidatorHotKey(ext.Data.ValidatorAddr, ext.Data.SigningEpoch)
	if err != nil || len(hotKey) == 0 {
		logger.Info("no hot key in storage for extension signer",
			"validator", fmt.Sprintf("%x", ext.Data.ValidatorAddr), "err", err)
		return ErrPubKeyNotInStorage
	}
	if err := ext.Verify(hotKey); err != nil {
		logger.Info("vote extension signature verification failed")
		return ErrVerifySigFailed
	}
	return nil
}
