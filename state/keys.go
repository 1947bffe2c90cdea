package state

import "fmt"

var (
	KeyState        = "s"
	KeyAccountIndex = "i%s"
	KeyAccountBody  = "a%x"
	KeyBalance      = "b%x"

	KeyProposalIndex      = "pi"
	KeyProposalFunds      = "p%vf"
	KeyProposalAuthor     = "p%va"
	KeyProposalStartEpoch = "p%vs"
	KeyProposalGraceEpoch = "p%vg"
	KeyProposalCode       = "p%vc"
	KeyProposalExecution  = "p%vx"
	KeyProposalVote       = "p%vv%x"
	KeyProposalVotePrefix = "p%vv"

	// zero-padded so lexicographic iteration is epoch order
	KeyProposalQueue        = "q%020d/%020d"
	KeyProposalQueuePrefix  = "q"
	KeyValidatorRecord      = "v%020d/%x"
	KeyValidatorEpochPrefix = "v%020d/"
	KeyValsetUpdSeen        = "u%020d"
)

func proposalFundsKey(id uint64) []byte {
	return []byte(fmt.Sprintf(KeyProposalFunds, id))
}

func proposalAuthorKey(id uint64) []byte {
	return []byte(fmt.Sprintf(KeyProposalAuthor, id))
}

func proposalStartEpochKey(id uint64) []byte {
	return []byte(fmt.Sprintf(KeyProposalStartEpoch, id))
}

func proposalGraceEpochKey(id uint64) []byte {
	return []byte(fmt.Sprintf(KeyProposalGraceEpoch, id))
}

func proposalCodeKey(id uint64) []byte {
	return []byte(fmt.Sprintf(KeyProposalCode, id))
}

func proposalExecutionKey(id uint64) []byte {
	return []byte(fmt.Sprintf(KeyProposalExecution, id))
}

func proposalVoteKey(id uint64, voter []byte) []byte {
	return []byte(fmt.Sprintf(KeyProposalVote, id, voter))
}

func proposalQueueKey(grace uint64, id uint64) []byte {
	return []byte(fmt.Sprintf(KeyProposalQueue, grace, id))
}

func validatorRecordKey(epoch uint64, addr []byte) []byte {
	return []byte(fmt.Sprintf(KeyValidatorRecord, epoch, addr))
}

func valsetUpdSeenKey(epoch uint64) []byte {
	return []byte(fmt.Sprintf(KeyValsetUpdSeen, epoch))
}

func balanceKey(addr []byte) []byte {
	return []byte(fmt.Sprintf(KeyBalance, addr))
}

func PrefixEndBytes(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}

	end := make([]byte, len(prefix))
	copy(end, prefix)

	for {
		if end[len(end)-1] != byte(255) {
			end[len(end)-1]++
			break
		}

		end = end[:len(end)-1]

		if len(end) == 0 {
			end = nil
			break
		}
	}

	return end
}
