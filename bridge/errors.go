package bridge

import "errors"

// Vote-extension validation failures. Each maps to exactly one of the
// ordered guard checks in ValidateValsetUpdVext, so test assertions
// and peer-ban heuristics can tell a stale extension from a forged one.
var (
	ErrUnexpectedBlockHeight         = errors.New("vote extension issued at genesis block height")
	ErrUnexpectedEpoch               = errors.New("vote extension signing epoch diverges from expected epoch")
	ErrValsetUpdProofAvailable       = errors.New("validator set update proof already in storage for this epoch")
	ErrValidatorMissingFromExtension = errors.New("active validator missing from vote extension")
	ErrDivergesFromStorage           = errors.New("vote extension voting power diverges from storage")
	ErrExtraValidatorsInExtension    = errors.New("vote extension contains validators outside the active set")
	ErrPubKeyNotInStorage            = errors.New("no hot key in storage for extension signer")
	ErrVerifySigFailed               = errors.New("vote extension signature verification failed")
)
