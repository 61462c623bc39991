package statemachine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juridico/conciliacao-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func uintPtr(u uint) *uint { return &u }

func confirmableEntry() *models.LedgerEntry {
	now := time.Now()
	return &models.LedgerEntry{
		Status:        models.EntryStatusPending,
		EffectiveDate: &now,
		PaymentMethod: strPtr("pix"),
		BankAccountID: uintPtr(1),
	}
}

func TestLedgerEntryFSM_Confirm(t *testing.T) {
	ctx := context.Background()

	entry := confirmableEntry()
	require.NoError(t, NewLedgerEntryFSM(entry).Confirm(ctx))
	assert.Equal(t, models.EntryStatusConfirmed, entry.Status)

	// confirmado cannot be confirmed again
	err := NewLedgerEntryFSM(entry).Confirm(ctx)
	assert.True(t, errors.Is(err, ErrTransitionNotAllowed))
}

func TestLedgerEntryFSM_ConfirmRequirements(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *models.LedgerEntry)
		want   string
	}{
		{"effective date", func(e *models.LedgerEntry) { e.EffectiveDate = nil }, "data_efetivacao"},
		{"payment method", func(e *models.LedgerEntry) { e.PaymentMethod = strPtr("  ") }, "forma_pagamento"},
		{"bank account", func(e *models.LedgerEntry) { e.BankAccountID = nil }, "conta_bancaria"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := confirmableEntry()
			tt.mutate(entry)

			err := NewLedgerEntryFSM(entry).Confirm(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMissingRequirement))
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, models.EntryStatusPending, entry.Status)
		})
	}
}

func TestLedgerEntryFSM_TerminalStates(t *testing.T) {
	ctx := context.Background()

	cancelled := &models.LedgerEntry{Status: models.EntryStatusPending}
	require.NoError(t, NewLedgerEntryFSM(cancelled).Cancel(ctx))
	assert.Equal(t, models.EntryStatusCancelled, cancelled.Status)
	assert.Error(t, NewLedgerEntryFSM(cancelled).Reverse(ctx))
	assert.Error(t, NewLedgerEntryFSM(cancelled).Confirm(ctx))

	confirmed := &models.LedgerEntry{Status: models.EntryStatusConfirmed}
	assert.Error(t, NewLedgerEntryFSM(confirmed).Cancel(ctx), "cancel only from pendente")
	require.NoError(t, NewLedgerEntryFSM(confirmed).Reverse(ctx))
	assert.Equal(t, models.EntryStatusReversed, confirmed.Status)
	assert.Error(t, NewLedgerEntryFSM(confirmed).Reverse(ctx))

	pending := &models.LedgerEntry{Status: models.EntryStatusPending}
	assert.True(t, errors.Is(NewLedgerEntryFSM(pending).Reverse(ctx), ErrTransitionNotAllowed))
}

func TestInstallmentFSM_Settle(t *testing.T) {
	ctx := context.Background()
	paidAt := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

	receivable := &models.Installment{Status: models.InstallmentStatusOverdue}
	require.NoError(t, NewInstallmentFSM(receivable).Settle(ctx, models.DirectionReceivable, paidAt))
	assert.Equal(t, models.InstallmentStatusReceived, receivable.Status)
	require.NotNil(t, receivable.PaymentDate)
	assert.Equal(t, paidAt, *receivable.PaymentDate)

	payable := &models.Installment{Status: models.InstallmentStatusPending}
	require.NoError(t, NewInstallmentFSM(payable).Settle(ctx, models.DirectionPayable, paidAt))
	assert.Equal(t, models.InstallmentStatusPaid, payable.Status)

	err := NewInstallmentFSM(payable).Settle(ctx, models.DirectionPayable, paidAt)
	assert.True(t, errors.Is(err, ErrTransitionNotAllowed))
}

func TestInstallmentFSM_OverdueAndCancel(t *testing.T) {
	ctx := context.Background()

	p := &models.Installment{Status: models.InstallmentStatusPending}
	require.NoError(t, NewInstallmentFSM(p).MarkOverdue(ctx))
	assert.Equal(t, models.InstallmentStatusOverdue, p.Status)
	assert.Error(t, NewInstallmentFSM(p).MarkOverdue(ctx))

	require.NoError(t, NewInstallmentFSM(p).Cancel(ctx))
	assert.Equal(t, models.InstallmentStatusCancelled, p.Status)
	assert.Error(t, NewInstallmentFSM(p).Cancel(ctx))
}

func TestRepasseFSM_ForwardOnly(t *testing.T) {
	ctx := context.Background()
	paidAt := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

	p := &models.Installment{
		Status:        models.InstallmentStatusReceived,
		RepasseStatus: models.RepasseNotApplicable,
		PaymentDate:   &paidAt,
	}

	require.NoError(t, NewRepasseFSM(p).Open(ctx))
	assert.Equal(t, models.RepassePendingDeclaration, p.RepasseStatus)

	// transfer proof before declaration is rejected and leaves state unchanged
	err := NewRepasseFSM(p).RegisterTransfer(ctx, "https://docs/comprovante.pdf", paidAt)
	assert.True(t, errors.Is(err, ErrTransitionNotAllowed))
	assert.Equal(t, models.RepassePendingDeclaration, p.RepasseStatus)
	assert.Nil(t, p.TransferProofURL)
	assert.Nil(t, p.RepasseDate)

	require.NoError(t, NewRepasseFSM(p).Declare(ctx, "https://docs/declaracao.pdf"))
	assert.Equal(t, models.RepassePendingTransfer, p.RepasseStatus)
	assert.Equal(t, "https://docs/declaracao.pdf", *p.DeclarationURL)

	err = NewRepasseFSM(p).RegisterTransfer(ctx, "https://docs/comprovante.pdf", paidAt.AddDate(0, 0, -1))
	assert.True(t, errors.Is(err, ErrMissingRequirement))
	assert.Equal(t, models.RepassePendingTransfer, p.RepasseStatus)

	repasseDate := paidAt.AddDate(0, 0, 3)
	require.NoError(t, NewRepasseFSM(p).RegisterTransfer(ctx, "https://docs/comprovante.pdf", repasseDate))
	assert.Equal(t, models.RepasseTransferred, p.RepasseStatus)
	assert.Equal(t, repasseDate, *p.RepasseDate)

	assert.Error(t, NewRepasseFSM(p).Declare(ctx, "https://docs/outra.pdf"))
}

func TestRepasseFSM_DeclareRequiresReceivedInstallment(t *testing.T) {
	p := &models.Installment{
		Status:        models.InstallmentStatusPending,
		RepasseStatus: models.RepassePendingDeclaration,
	}

	err := NewRepasseFSM(p).Declare(context.Background(), "https://docs/declaracao.pdf")
	assert.True(t, errors.Is(err, ErrTransitionNotAllowed))
	assert.Nil(t, p.DeclarationURL)

	assert.Error(t, NewRepasseFSM(p).Open(context.Background()))
}
