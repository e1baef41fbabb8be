package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{"pending to confirmed", StatusPending, StatusConfirmed, true},
		{"pending to paid", StatusPending, StatusPaid, true},
		{"pending to expired", StatusPending, StatusExpired, true},
		{"pending to canceled", StatusPending, StatusCanceled, true},
		{"confirmed to paid", StatusConfirmed, StatusPaid, true},
		{"confirmed to expired", StatusConfirmed, StatusExpired, true},
		{"confirmed back to pending", StatusConfirmed, StatusPending, false},
		{"paid to expired", StatusPaid, StatusExpired, false},
		{"paid to pending", StatusPaid, StatusPending, false},
		{"expired to paid", StatusExpired, StatusPaid, false},
		{"canceled to confirmed", StatusCanceled, StatusConfirmed, false},
		{"no-op pending", StatusPending, StatusPending, true},
		{"no-op paid", StatusPaid, StatusPaid, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTerminalStatus(t *testing.T) {
	assert.False(t, TerminalStatus(StatusPending))
	assert.False(t, TerminalStatus(StatusConfirmed))
	assert.True(t, TerminalStatus(StatusPaid))
	assert.True(t, TerminalStatus(StatusExpired))
	assert.True(t, TerminalStatus(StatusCanceled))
}

func TestFormatTicketNumber(t *testing.T) {
	assert.Equal(t, "0007", FormatTicketNumber(7))
	assert.Equal(t, "0042", FormatTicketNumber(42))
	assert.Equal(t, "0999", FormatTicketNumber(999))
	assert.Equal(t, "1234", FormatTicketNumber(1234))
	assert.Equal(t, "12345", FormatTicketNumber(12345))
}

func TestFormatTicketNumbers(t *testing.T) {
	assert.Equal(t, []string{"0001", "0015", "0203"}, FormatTicketNumbers([]int{1, 15, 203}))
	assert.Empty(t, FormatTicketNumbers(nil))
}

func TestFallbackInstructions(t *testing.T) {
	fb := &FallbackPayment{
		PurchaseID: "p-1",
		PayeeKey:   "seller@example.com",
		PayeeName:  "Seller",
		Amount:     30.00,
		Message:    "gateway indisponivel",
	}

	instr := fb.Instructions()
	assert.Equal(t, "seller@example.com", instr.PayeeKey)
	assert.Equal(t, "Seller", instr.PayeeName)
	assert.Equal(t, 30.00, instr.Amount)
	assert.Equal(t, "gateway indisponivel", instr.Message)
}
