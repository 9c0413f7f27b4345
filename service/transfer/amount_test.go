package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSOL(t *testing.T) {
	tests := []struct {
		in       string
		lamports uint64
		wantErr  bool
	}{
		{"1", 1_000_000_000, false},
		{" 2.5 ", 2_500_000_000, false},
		{"0.000000001", 1, false},
		{"1e-3", 1_000_000, false},
		{"18446744073.709551615", 18_446_744_073_709_551_615, false},
		{"18446744073.709551616", 0, true},
		{"0.0000000001", 0, true},
		{"0", 0, true},
		{"-1", 0, true},
		{"", 0, true},
		{"NaN", 0, true},
		{"Infinity", 0, true},
		{"1,5", 0, true},
		{"1e-999999999", 0, true},
		{"1e999999999", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, lamports, err := ParseSOL(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.lamports, lamports)
		})
	}
}

func TestParseAirdropSOL(t *testing.T) {
	amount, lamports, err := ParseAirdropSOL("  ")
	require.NoError(t, err)
	assert.Equal(t, "1", amount.String())
	assert.Equal(t, uint64(1_000_000_000), lamports)

	_, lamports, err = ParseAirdropSOL("0.1")
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000_000), lamports)

	_, _, err = ParseAirdropSOL("5.000000001")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, _, err = ParseAirdropSOL("6")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestFormatLamports(t *testing.T) {
	assert.Equal(t, "1", FormatLamports(1_000_000_000))
	assert.Equal(t, "0.000000001", FormatLamports(1))
	assert.Equal(t, "2.5", FormatLamports(2_500_000_000))
	assert.Equal(t, "0", FormatLamports(0))
}

func TestKindOfAndMessage(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, "", Message(OpTransfer, nil))

	subErr := &SubmissionError{Op: OpAirdrop, Err: assert.AnError}
	assert.Equal(t, KindSubmissionFailed, KindOf(subErr))
	assert.ErrorIs(t, subErr, assert.AnError)
	assert.Equal(t, "Airdrop failed: "+assert.AnError.Error(), Message(OpAirdrop, subErr))
	assert.Equal(t, "airdrop failed: "+assert.AnError.Error(), subErr.Error())

	assert.Equal(t, "Please enter a valid amount greater than 0", Message(OpTransfer, ErrInvalidAmount))
	assert.Equal(t, "Please enter a valid amount between 0 and 5 SOL", Message(OpAirdrop, ErrInvalidAmount))

	assert.Equal(t, KindBusy, KindOf(ErrBusy))
	assert.Equal(t, "A submission is already in progress", Message(OpTransfer, ErrBusy))
}
