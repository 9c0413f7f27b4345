package transfer

import (
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// InstructionBuilder produces the single instruction a transfer submits.
type InstructionBuilder interface {
	Transfer(from, to solanago.PublicKey, lamports uint64) solanago.Instruction
}

// SystemTransferBuilder builds System Program transfer instructions.
type SystemTransferBuilder struct{}

func (SystemTransferBuilder) Transfer(from, to solanago.PublicKey, lamports uint64) solanago.Instruction {
	return system.NewTransferInstruction(lamports, from, to).Build()
}
