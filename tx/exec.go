package tx

import (
	"errors"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/halcyonchain/settled/state"
)

var ErrBadScript = errors.New("malformed proposal script")

// Gas schedule for script application.
const (
	gasPerWriteByte  = 2
	gasPerDeletedKey = 100
)

// Script is the declarative payload a passed proposal executes: a set
// of storage writes and deletes, plus the acceptance flag. Accept set
// to false makes the script a dry run and the settlement layer drops
// every change.
type Script struct {
	Writes  []ScriptWrite
	Deletes [][]byte
	Accept  bool
}

type ScriptWrite struct {
	Key   []byte
	Value []byte
}

// ScriptExecutor applies proposal scripts against the state's
// transient scope under a gas meter.
type ScriptExecutor struct {
	meter func() *GasMeter
}

// NewScriptExecutor builds an executor whose meter factory is called
// once per script; governance passes NewFreeGasMeter.
func NewScriptExecutor(meter func() *GasMeter) *ScriptExecutor {
	return &ScriptExecutor{meter: meter}
}

func (e *ScriptExecutor) Apply(st *state.State, code []byte, id uint64) (bool, error) {
	var script Script
	if err := rlp.DecodeBytes(code, &script); err != nil {
		return false, ErrBadScript
	}
	meter := e.meter()
	for _, w := range script.Writes {
		if len(w.Key) == 0 {
			return false, ErrBadScript
		}
		if err := meter.Consume(uint64(len(w.Key)+len(w.Value)) * gasPerWriteByte); err != nil {
			return false, err
		}
		st.SetStorage(string(w.Key), w.Value)
	}
	for _, k := range script.Deletes {
		if len(k) == 0 {
			return false, ErrBadScript
		}
		if err := meter.Consume(gasPerDeletedKey); err != nil {
			return false, err
		}
		st.DeleteStorage(string(k))
	}
	return script.Accept, nil
}
