package tx

import "errors"

var ErrOutOfGas = errors.New("out of gas")

// GasMeter bounds the work a proposal script may do. A zero cost-per
// unit meter never trips, used for governance-initiated execution.
type GasMeter struct {
	limit    uint64
	consumed uint64
	free     bool
}

func NewGasMeter(limit uint64) *GasMeter {
	return &GasMeter{limit: limit}
}

// NewFreeGasMeter returns a meter that accounts usage but never
// returns ErrOutOfGas.
func NewFreeGasMeter() *GasMeter {
	return &GasMeter{free: true}
}

func (g *GasMeter) Consume(amount uint64) error {
	g.consumed += amount
	if !g.free && g.consumed > g.limit {
		return ErrOutOfGas
	}
	return nil
}

func (g *GasMeter) Consumed() uint64 {
	return g.consumed
}
