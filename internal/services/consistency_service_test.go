package services

import (
	"context"
	"testing"

	"github.com/juridico/conciliacao-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncedSettlement registers n installments and mirrors each of them into the ledger
func syncedSettlement(t *testing.T, env *testEnv, n int) *models.Obligation {
	t.Helper()
	o := env.registerSettlement(t, n)
	batch, err := env.sync.SyncObligation(context.Background(), testActor, o.ID, false)
	require.NoError(t, err)
	require.Equal(t, 0, batch.Failed)
	return o
}

func types(report *models.ConsistencyReport) []string {
	out := make([]string, 0, len(report.Inconsistencies))
	for _, inc := range report.Inconsistencies {
		out = append(out, inc.Type)
	}
	return out
}

func TestConsistency_CleanAfterSync(t *testing.T) {
	env := newTestEnv(t)
	o := syncedSettlement(t, env, 2)

	report, err := env.consistency.CheckConsistency(context.Background(), &o.ID)
	require.NoError(t, err)
	assert.True(t, report.IsConsistent(), "%v", types(report))
	assert.Equal(t, 2, report.CheckedInstallments)
	assert.Equal(t, 2, report.CheckedEntries)
}

func TestConsistency_ValueMismatchRespectsTolerance(t *testing.T) {
	tests := []struct {
		name      string
		amount    string
		tolerance string
		flagged   bool
	}{
		{"equal", "10500.00", "0", false},
		{"one cent over zero tolerance", "10500.01", "0", true},
		{"one cent within tolerance", "10500.01", "0.01", false},
		{"two cents over tolerance", "10499.98", "0.01", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			o := syncedSettlement(t, env, 1)

			p := env.store.installment(o.Installments[0].ID)
			e := env.store.entry(*p.LedgerEntryID)
			e.Amount = dec(tt.amount)
			env.store.putEntry(e)

			checker := NewConsistencyService(env.repos, env.sync, dec(tt.tolerance))
			report, err := checker.CheckConsistency(context.Background(), nil)
			require.NoError(t, err)

			if !tt.flagged {
				assert.True(t, report.IsConsistent(), "%v", types(report))
				return
			}
			require.Len(t, report.Inconsistencies, 1)
			inc := report.Inconsistencies[0]
			assert.Equal(t, models.InconsistencyValueMismatch, inc.Type)
			assert.Equal(t, models.SeverityMedium, inc.Severity)
			assert.True(t, inc.Expected.Equal(dec("10500")))
			assert.True(t, inc.Actual.Equal(dec(tt.amount)))
			assert.True(t, inc.Repairable)
		})
	}
}

func TestConsistency_DetectsEachKind(t *testing.T) {
	tests := []struct {
		name     string
		damage   func(t *testing.T, env *testEnv, o *models.Obligation)
		kind     string
		severity string
	}{
		{
			name: "settled installment without entry",
			damage: func(t *testing.T, env *testEnv, o *models.Obligation) {
				p := env.store.installment(o.Installments[0].ID)
				e := env.store.entry(*p.LedgerEntryID)
				e.InstallmentID = nil
				e.Status = models.EntryStatusCancelled
				env.store.putEntry(e)
				paid := date(2025, 1, 10)
				p.LedgerEntryID = nil
				p.Status = models.InstallmentStatusReceived
				p.PaymentDate = &paid
				env.store.putInstallment(p)
			},
			kind:     models.InconsistencyMissingEntry,
			severity: models.SeverityHigh,
		},
		{
			name: "duplicate active entries",
			damage: func(t *testing.T, env *testEnv, o *models.Obligation) {
				p := env.store.installment(o.Installments[0].ID)
				dup := env.store.entry(*p.LedgerEntryID)
				dup.ID = 0
				env.store.putEntry(dup)
			},
			kind:     models.InconsistencyDuplicateEntry,
			severity: models.SeverityHigh,
		},
		{
			name: "link to a missing entry",
			damage: func(t *testing.T, env *testEnv, o *models.Obligation) {
				p := env.store.installment(o.Installments[0].ID)
				p.LedgerEntryID = uintPtr(999)
				env.store.putInstallment(p)
			},
			kind:     models.InconsistencyBrokenLink,
			severity: models.SeverityHigh,
		},
		{
			name: "entry not linked back",
			damage: func(t *testing.T, env *testEnv, o *models.Obligation) {
				p := env.store.installment(o.Installments[0].ID)
				p.LedgerEntryID = nil
				env.store.putInstallment(p)
			},
			kind:     models.InconsistencyBrokenLink,
			severity: models.SeverityLow,
		},
		{
			name: "cancelled installment with confirmed entry",
			damage: func(t *testing.T, env *testEnv, o *models.Obligation) {
				_, err := env.obligations.RegisterInstallmentPayment(context.Background(), testActor, o.Installments[0].ID, date(2025, 1, 10))
				require.NoError(t, err)
				p := env.store.installment(o.Installments[0].ID)
				p.Status = models.InstallmentStatusCancelled
				env.store.putInstallment(p)
			},
			kind:     models.InconsistencyStatusMismatch,
			severity: models.SeverityHigh,
		},
		{
			name: "open installment with confirmed entry",
			damage: func(t *testing.T, env *testEnv, o *models.Obligation) {
				p := env.store.installment(o.Installments[0].ID)
				e := env.store.entry(*p.LedgerEntryID)
				effective := date(2025, 1, 10)
				e.Status = models.EntryStatusConfirmed
				e.EffectiveDate = &effective
				env.store.putEntry(e)
			},
			kind:     models.InconsistencyStatusMismatch,
			severity: models.SeverityMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			o := syncedSettlement(t, env, 1)
			tt.damage(t, env, o)

			report, err := env.consistency.CheckConsistency(ctx, &o.ID)
			require.NoError(t, err)
			require.Len(t, report.Inconsistencies, 1, "%v", types(report))
			inc := report.Inconsistencies[0]
			assert.Equal(t, tt.kind, inc.Type)
			assert.Equal(t, tt.severity, inc.Severity)
			assert.True(t, inc.Repairable)
			assert.Equal(t, 1, report.CountByType[tt.kind])

			repair, err := env.consistency.RepairInconsistencies(ctx, testActor, &o.ID)
			require.NoError(t, err)
			assert.Equal(t, 0, repair.Unrepairable)
			assert.Equal(t, 0, repair.Sync.Failed)

			after, err := env.consistency.CheckConsistency(ctx, &o.ID)
			require.NoError(t, err)
			assert.True(t, after.IsConsistent(), "%v", types(after))
		})
	}
}

func TestConsistency_UnrepairableFindings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := syncedSettlement(t, env, 1)

	p := env.store.installment(o.Installments[0].ID)
	p.ClientPayout = dec("7000")
	env.store.putInstallment(p)

	env.store.putEntry(models.LedgerEntry{
		Kind:          models.EntryKindRevenue,
		Description:   "Parcela de acordo apagado",
		Amount:        dec("100"),
		DueDate:       date(2025, 1, 1),
		Status:        models.EntryStatusPending,
		Origin:        models.EntryOriginSync,
		InstallmentID: uintPtr(9999),
	})

	report, err := env.consistency.CheckConsistency(ctx, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{models.InconsistencyPayoutMismatch, models.InconsistencyOrphanEntry}, types(report))
	assert.Equal(t, 1, report.CountBySeverity[models.SeverityHigh])
	assert.Equal(t, 1, report.CountBySeverity[models.SeverityMedium])

	repair, err := env.consistency.RepairInconsistencies(ctx, testActor, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, repair.Unrepairable)
	assert.Empty(t, repair.Sync.Results)
}

func TestConsistency_SettledEntryMissingPaymentData(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	o := env.registerSettlement(t, 1)
	stored := env.store.obligations[o.ID]
	stored.PaymentMethod = nil
	stored.BankAccountID = nil
	env.store.obligations[o.ID] = stored

	batch, err := env.sync.SyncObligation(ctx, testActor, o.ID, false)
	require.NoError(t, err)
	require.Equal(t, 0, batch.Failed)

	paid, err := env.obligations.RegisterInstallmentPayment(ctx, testActor, o.Installments[0].ID, date(2025, 1, 10))
	require.NoError(t, err)
	require.NotNil(t, paid.Sync)
	assert.NotEmpty(t, paid.Sync.Warnings)

	report, err := env.consistency.CheckConsistency(ctx, &o.ID)
	require.NoError(t, err)
	require.Len(t, report.Inconsistencies, 1, "%v", types(report))
	inc := report.Inconsistencies[0]
	assert.Equal(t, models.InconsistencyStatusMismatch, inc.Type)
	assert.False(t, inc.Repairable)
	assert.Contains(t, inc.Description, "forma_pagamento")
	assert.Contains(t, inc.Description, "conta_bancaria")

	repair, err := env.consistency.RepairInconsistencies(ctx, testActor, &o.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, repair.Unrepairable)
	assert.Empty(t, repair.Sync.Results)

	// once the obligation carries the payment data a forced sync can confirm the entry
	stored.PaymentMethod = strPtr("pix")
	stored.BankAccountID = uintPtr(3)
	env.store.obligations[o.ID] = stored

	report, err = env.consistency.CheckConsistency(ctx, &o.ID)
	require.NoError(t, err)
	require.Len(t, report.Inconsistencies, 1)
	assert.True(t, report.Inconsistencies[0].Repairable)

	repair, err = env.consistency.RepairInconsistencies(ctx, testActor, &o.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, repair.Unrepairable)

	after, err := env.consistency.CheckConsistency(ctx, &o.ID)
	require.NoError(t, err)
	assert.True(t, after.IsConsistent(), "%v", types(after))
}

func TestConsistency_UnknownObligation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.consistency.CheckConsistency(context.Background(), uintPtr(12345))
	assert.ErrorIs(t, err, ErrNotFound)
}
