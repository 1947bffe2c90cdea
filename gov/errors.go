package gov

import "fmt"

// BadProposalError reports a proposal whose required stored fields are
// missing or malformed. It aborts the whole settlement pass: a
// half-written proposal means the storage is inconsistent, not that
// one proposal failed.
type BadProposalError struct {
	ID     uint64
	Reason string
}

func (e BadProposalError) Error() string {
	return fmt.Sprintf("bad proposal %d: %s", e.ID, e.Reason)
}
