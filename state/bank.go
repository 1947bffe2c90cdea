package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/halcyonchain/settled/types"
)

func (s *State) Balance(addr common.Address) (uint64, error) {
	val, err := s.get(balanceKey(addr.Bytes()))
	if err != nil {
		return 0, err
	}
	if val == nil {
		return 0, nil
	}
	var balance uint64
	if err = rlp.DecodeBytes(val, &balance); err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *State) setBalance(addr common.Address, balance uint64) error {
	val, err := rlp.EncodeToBytes(balance)
	if err != nil {
		return err
	}
	s.set(balanceKey(addr.Bytes()), val)
	return nil
}

// Transfer moves amount between accounts. Supply is conserved: the
// debit and credit happen together or not at all.
func (s *State) Transfer(from, to common.Address, amount types.Amount) error {
	if amount == 0 {
		return nil
	}
	fromBalance, err := s.Balance(from)
	if err != nil {
		return err
	}
	if fromBalance < uint64(amount) {
		return ErrInsufficientFunds
	}
	// a self transfer would credit over the stale balance and mint
	if from == to {
		return nil
	}
	toBalance, err := s.Balance(to)
	if err != nil {
		return err
	}
	if toBalance+uint64(amount) < toBalance {
		return ErrBalanceOverflow
	}
	if err = s.setBalance(from, fromBalance-uint64(amount)); err != nil {
		return err
	}
	return s.setBalance(to, toBalance+uint64(amount))
}

// Credit mints into an account, used only at genesis.
func (s *State) Credit(addr common.Address, amount types.Amount) error {
	balance, err := s.Balance(addr)
	if err != nil {
		return err
	}
	if balance+uint64(amount) < balance {
		return ErrBalanceOverflow
	}
	return s.setBalance(addr, balance+uint64(amount))
}
