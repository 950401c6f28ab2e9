package engine

import (
	"encoding/binary"

	"sniper-core/pkg/ledger"
)

// computeBudgetProgramID is the on-chain program that interprets the
// compute-unit limit and price instructions.
var computeBudgetProgramID = mustIdentity("ComputeBudget111111111111111111111111111111")

func mustIdentity(s string) ledger.Identity {
	id, err := ledger.ParseIdentity(s)
	if err != nil {
		panic(err)
	}
	return id
}

// PriorityInstructions returns the two compute-budget instructions derived
// from the priority: unit limit first, unit price second. They are prepended
// to the caller's sequence in that order.
func PriorityInstructions(p Priority) []ledger.Instruction {
	return []ledger.Instruction{
		setComputeUnitLimit(p.ComputeUnits()),
		setComputeUnitPrice(p.FeeMicroLamports()),
	}
}

func setComputeUnitLimit(units uint32) ledger.Instruction {
	data := make([]byte, 5)
	data[0] = 0x02
	binary.LittleEndian.PutUint32(data[1:], units)
	return ledger.Instruction{ProgramID: computeBudgetProgramID, Data: data}
}

func setComputeUnitPrice(microLamports uint64) ledger.Instruction {
	data := make([]byte, 9)
	data[0] = 0x03
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return ledger.Instruction{ProgramID: computeBudgetProgramID, Data: data}
}
