package app

import (
	"bytes"
	"context"

	abcitypes "github.com/cometbft/cometbft/abci/types"

	"github.com/halcyonchain/settled/bridge"
	"github.com/halcyonchain/settled/types"
)

// ExtendVote attaches a signed validator-set-update attestation to
// this node's precommit. Nodes without a bridge key, or at genesis,
// abstain with an empty extension.
func (app *SettledApp) ExtendVote(_ context.Context, extend *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	res := &abcitypes.ResponseExtendVote{}
	if app.bridgeKey == nil || len(app.validatorAddr) == 0 {
		return res, nil
	}
	st := app.db.State()
	if st.LastBlockHeight() == 0 {
		return res, nil
	}
	lastEpoch := types.Epoch(st.Epoch())
	nextEpoch := lastEpoch.Next()

	seen, err := st.ValsetUpdSeen(nextEpoch)
	if err != nil || seen {
		return res, nil
	}
	entries, err := st.ConsensusValidators(nextEpoch)
	if err != nil || len(entries) == 0 {
		return res, nil
	}

	powers := bridge.NewVotingPowersMap()
	for i := range entries {
		powers.Set(entries[i].AddrBook(), types.VotingPower(entries[i].Power))
	}
	vext := &bridge.Vext{
		VotingPowers:  powers,
		ValidatorAddr: app.validatorAddr,
		SigningEpoch:  lastEpoch,
	}
	signed, err := vext.Sign(app.bridgeKey)
	if err != nil {
		app.logger.Error("sign vote extension fail", "err", err)
		return res, nil
	}
	raw, err := bridge.EncodeSignedVext(signed)
	if err != nil {
		app.logger.Error("encode vote extension fail", "err", err)
		return res, nil
	}
	res.VoteExtension = raw
	return res, nil
}

// VerifyVoteExtension validates a peer's validator-set-update
// attestation against committed state. An empty extension is an
// abstention and always accepted.
func (app *SettledApp) VerifyVoteExtension(_ context.Context, verify *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	accept := &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}
	reject := &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_REJECT}
	if len(verify.VoteExtension) == 0 {
		return accept, nil
	}
	ext, err := bridge.DecodeSignedVext(verify.VoteExtension)
	if err != nil {
		app.logger.Info("reject vote extension, decode fail", "err", err)
		return reject, nil
	}
	if !bytes.Equal(ext.Data.ValidatorAddr, verify.ValidatorAddress) {
		app.logger.Info("reject vote extension, signer mismatch")
		return reject, nil
	}
	st := app.db.State()
	lastEpoch := types.Epoch(st.Epoch())
	if err := bridge.ValidateValsetUpdVext(app.logger, st, ext, lastEpoch); err != nil {
		app.logger.Info("reject vote extension", "err", err)
		return reject, nil
	}
	return accept, nil
}
