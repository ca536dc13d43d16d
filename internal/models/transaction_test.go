package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestComputeFee(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		bps     int
		wantFee int64
		wantNet int64
	}{
		{"five percent", 1000, 500, 50, 950},
		{"three percent", 1000, 300, 30, 970},
		{"rounds down", 999, 500, 49, 950},
		{"zero fee", 1000, 0, 0, 1000},
		{"tiny amount", 1, 500, 0, 1},
		{"zero amount", 0, 500, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fee, net := ComputeFee(tt.amount, tt.bps)
			if fee != tt.wantFee || net != tt.wantNet {
				t.Errorf("ComputeFee(%d, %d) = (%d, %d), want (%d, %d)", tt.amount, tt.bps, fee, net, tt.wantFee, tt.wantNet)
			}
			if fee+net != tt.amount {
				t.Errorf("fee + net = %d, want %d", fee+net, tt.amount)
			}
		})
	}
}

func TestEscrowTransitionsAreOneWay(t *testing.T) {
	tests := []struct {
		from     EscrowStatus
		to       EscrowStatus
		expected bool
	}{
		{EscrowStatusNone, EscrowStatusHeld, true},
		{EscrowStatusHeld, EscrowStatusReleased, true},
		{EscrowStatusHeld, EscrowStatusRefunded, true},
		{EscrowStatusReleased, EscrowStatusHeld, false},
		{EscrowStatusRefunded, EscrowStatusHeld, false},
		{EscrowStatusReleased, EscrowStatusRefunded, false},
		{EscrowStatusRefunded, EscrowStatusReleased, false},
		{EscrowStatusNone, EscrowStatusReleased, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := IsValidEscrowTransition(tt.from, tt.to); got != tt.expected {
				t.Errorf("IsValidEscrowTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestTransactionTransitions(t *testing.T) {
	if !IsValidTransactionTransition(TransactionStatusPending, TransactionStatusHeld) {
		t.Error("pending -> held should be valid")
	}
	if !IsValidTransactionTransition(TransactionStatusPending, TransactionStatusFailed) {
		t.Error("pending -> failed should be valid")
	}
	if IsValidTransactionTransition(TransactionStatusCompleted, TransactionStatusRefunded) {
		t.Error("completed -> refunded should be invalid")
	}
	if IsValidTransactionTransition(TransactionStatusFailed, TransactionStatusHeld) {
		t.Error("failed -> held should be invalid")
	}
}

func TestTransactionRole(t *testing.T) {
	owner, adopter := uuid.New(), uuid.New()
	txn := &RehomingTransaction{ToUser: owner, FromUser: adopter}

	if role, ok := txn.Role(owner); !ok || role != PartyOwner {
		t.Errorf("owner role = %q, %v", role, ok)
	}
	if role, ok := txn.Role(adopter); !ok || role != PartyAdopter {
		t.Errorf("adopter role = %q, %v", role, ok)
	}
	if txn.IsParty(uuid.New()) {
		t.Error("stranger must not be a party")
	}
}
