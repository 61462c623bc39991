package services

import (
	"context"
	"testing"
	"time"

	"github.com/juridico/conciliacao-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerService_CreateEntry_Validation(t *testing.T) {
	env := newTestEnv(t)

	valid := CreateEntryInput{
		Kind:        models.EntryKindExpense,
		Description: "Custas processuais",
		Amount:      dec("350.00"),
		DueDate:     date(2025, 2, 1),
	}

	tests := []struct {
		name   string
		modify func(in *CreateEntryInput)
		rule   string
	}{
		{"invalid kind", func(in *CreateEntryInput) { in.Kind = "transferencia" }, "tipo_lancamento"},
		{"blank description", func(in *CreateEntryInput) { in.Description = "   " }, "descricao_obrigatoria"},
		{"negative amount", func(in *CreateEntryInput) { in.Amount = dec("-1") }, "valor_nao_negativo"},
		{"missing due date", func(in *CreateEntryInput) { in.DueDate = time.Time{} }, "vencimento_obrigatorio"},
		{"recurring without frequency", func(in *CreateEntryInput) { in.Recurring = true }, "frequencia_recorrencia"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.modify(&in)

			_, err := env.ledger.CreateEntry(context.Background(), testActor, in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, tt.rule, Rule(err))
		})
	}
	assert.Empty(t, env.store.entries)
}

func TestLedgerService_ConfirmRequiresEffectiveData(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	entry, err := env.ledger.CreateEntry(ctx, testActor, CreateEntryInput{
		Kind:        models.EntryKindExpense,
		Description: "Perícia contábil",
		Amount:      dec("1200"),
		DueDate:     date(2025, 3, 5),
	})
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusPending, entry.Status)
	assert.Equal(t, models.EntryOriginManual, entry.Origin)

	_, err = env.ledger.ConfirmEntry(ctx, testActor, entry.ID, ConfirmEntryInput{})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, models.EntryStatusPending, env.store.entry(entry.ID).Status)

	effective := date(2025, 3, 6)
	confirmed, err := env.ledger.ConfirmEntry(ctx, testActor, entry.ID, ConfirmEntryInput{
		EffectiveDate: &effective,
		PaymentMethod: strPtr("ted"),
		BankAccountID: uintPtr(3),
	})
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusConfirmed, confirmed.Status)

	again, err := env.ledger.ConfirmEntry(ctx, testActor, entry.ID, ConfirmEntryInput{})
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusConfirmed, again.Status)

	confirms := 0
	for _, a := range env.store.auditActions() {
		if a == models.AuditActionConfirm {
			confirms++
		}
	}
	assert.Equal(t, 1, confirms)
}

func TestLedgerService_CreateConfirmedEntry(t *testing.T) {
	env := newTestEnv(t)
	effective := date(2025, 1, 20)

	entry, err := env.ledger.CreateEntry(context.Background(), testActor, CreateEntryInput{
		Kind:          models.EntryKindRevenue,
		Description:   "Honorários de consultoria",
		Amount:        dec("2500.005"),
		DueDate:       date(2025, 1, 20),
		EffectiveDate: &effective,
		PaymentMethod: strPtr("pix"),
		BankAccountID: uintPtr(3),
		Confirmed:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusConfirmed, entry.Status)
	assert.True(t, entry.Amount.Equal(dec("2500.00")), entry.Amount.String())
}

func TestLedgerService_CancelOnlyPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	effective := date(2025, 1, 20)

	entry, err := env.ledger.CreateEntry(ctx, testActor, CreateEntryInput{
		Kind:          models.EntryKindRevenue,
		Description:   "Honorários iniciais",
		Amount:        dec("800"),
		DueDate:       effective,
		EffectiveDate: &effective,
		PaymentMethod: strPtr("pix"),
		BankAccountID: uintPtr(3),
		Confirmed:     true,
	})
	require.NoError(t, err)

	_, err = env.ledger.CancelEntry(ctx, testActor, entry.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, CodeValidation, Code(err))
	assert.Equal(t, models.EntryStatusConfirmed, env.store.entry(entry.ID).Status)

	pending, err := env.ledger.CreateEntry(ctx, testActor, CreateEntryInput{
		Kind:        models.EntryKindExpense,
		Description: "Cópias",
		Amount:      dec("40"),
		DueDate:     effective,
	})
	require.NoError(t, err)

	cancelled, err := env.ledger.CancelEntry(ctx, testActor, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusCancelled, cancelled.Status)

	_, err = env.ledger.CancelEntry(ctx, testActor, pending.ID)
	assert.NoError(t, err)
}

func TestLedgerService_ReverseEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	effective := date(2025, 1, 20)

	entry, err := env.ledger.CreateEntry(ctx, testActor, CreateEntryInput{
		Kind:          models.EntryKindRevenue,
		Description:   "Honorários de êxito",
		Amount:        dec("4321.10"),
		DueDate:       effective,
		EffectiveDate: &effective,
		PaymentMethod: strPtr("pix"),
		BankAccountID: uintPtr(3),
		ClientID:      uintPtr(11),
		Confirmed:     true,
	})
	require.NoError(t, err)

	res, err := env.ledger.ReverseEntry(ctx, testActor, entry.ID, "lançado em duplicidade")
	require.NoError(t, err)
	assert.Equal(t, models.EntryStatusReversed, res.Original.Status)
	assert.True(t, res.Original.Amount.Equal(dec("4321.10")))

	c := res.Compensating
	require.NotNil(t, c)
	assert.Equal(t, models.EntryKindExpense, c.Kind)
	assert.Equal(t, models.EntryStatusConfirmed, c.Status)
	assert.Equal(t, models.EntryOriginReversal, c.Origin)
	assert.True(t, c.Amount.Equal(entry.Amount))
	require.NotNil(t, c.ReversalOfID)
	assert.Equal(t, entry.ID, *c.ReversalOfID)
	assert.Equal(t, entry.ClientID, c.ClientID)
	assert.Contains(t, c.Description, "Estorno: Honorários de êxito")

	again, err := env.ledger.ReverseEntry(ctx, testActor, entry.ID, "")
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.Compensating.ID)
	assert.Equal(t, 2, env.store.entryCreates)
}

func TestLedgerService_ReversePendingIsRejected(t *testing.T) {
	env := newTestEnv(t)

	entry, err := env.ledger.CreateEntry(context.Background(), testActor, CreateEntryInput{
		Kind:        models.EntryKindExpense,
		Description: "Diligência",
		Amount:      dec("150"),
		DueDate:     date(2025, 4, 1),
	})
	require.NoError(t, err)

	_, err = env.ledger.ReverseEntry(context.Background(), testActor, entry.ID, "")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 1, env.store.entryCreates)
}

func TestLedgerService_UpdateEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	effective := date(2025, 1, 20)

	confirmed, err := env.ledger.CreateEntry(ctx, testActor, CreateEntryInput{
		Kind:          models.EntryKindRevenue,
		Description:   "Consulta",
		Amount:        dec("300"),
		DueDate:       effective,
		EffectiveDate: &effective,
		PaymentMethod: strPtr("pix"),
		BankAccountID: uintPtr(3),
		Confirmed:     true,
	})
	require.NoError(t, err)

	newAmount := dec("310")
	_, err = env.ledger.UpdateEntry(ctx, testActor, confirmed.ID, UpdateEntryInput{Amount: &newAmount})
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, "valores_somente_pendente", Rule(err))

	updated, err := env.ledger.UpdateEntry(ctx, testActor, confirmed.ID, UpdateEntryInput{Description: strPtr("Consulta inicial")})
	require.NoError(t, err)
	assert.Equal(t, "Consulta inicial", updated.Description)
	assert.True(t, updated.Amount.Equal(dec("300")))

	_, err = env.ledger.ReverseEntry(ctx, testActor, confirmed.ID, "")
	require.NoError(t, err)
	_, err = env.ledger.UpdateEntry(ctx, testActor, confirmed.ID, UpdateEntryInput{Notes: strPtr("x")})
	assert.Equal(t, "lancamento_encerrado", Rule(err))
}

func TestLedgerService_AddAttachmentDeduplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	entry, err := env.ledger.CreateEntry(ctx, testActor, CreateEntryInput{
		Kind:        models.EntryKindExpense,
		Description: "Custas",
		Amount:      dec("90"),
		DueDate:     date(2025, 4, 1),
	})
	require.NoError(t, err)

	att := models.Attachment{Name: "guia.pdf", URL: "/files/anexos/guia.pdf"}
	_, err = env.ledger.AddAttachment(ctx, testActor, entry.ID, att)
	require.NoError(t, err)
	updated, err := env.ledger.AddAttachment(ctx, testActor, entry.ID, att)
	require.NoError(t, err)
	assert.Len(t, updated.Attachments, 1)

	_, err = env.ledger.AddAttachment(ctx, testActor, entry.ID, models.Attachment{Name: "sem-url"})
	assert.Equal(t, "anexo_incompleto", Rule(err))
}

func TestLedgerService_GenerateRecurrences(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	monthly, err := env.ledger.CreateEntry(ctx, testActor, CreateEntryInput{
		Kind:                models.EntryKindExpense,
		Description:         "Aluguel do escritório",
		Amount:              dec("5000"),
		DueDate:             date(2025, 1, 31),
		Recurring:           true,
		RecurrenceFrequency: strPtr(models.FrequencyMonthly),
	})
	require.NoError(t, err)

	quarterly, err := env.ledger.CreateEntry(ctx, testActor, CreateEntryInput{
		Kind:                models.EntryKindExpense,
		Description:         "Anuidade do sistema",
		Amount:              dec("900"),
		DueDate:             date(2025, 1, 10),
		Recurring:           true,
		RecurrenceFrequency: strPtr(models.FrequencyQuarterly),
	})
	require.NoError(t, err)

	res, err := env.ledger.GenerateRecurrences(ctx, date(2025, 2, 15))
	require.NoError(t, err)
	require.Len(t, res.Created, 1)
	assert.Equal(t, 1, res.Skipped)

	occurrence := env.store.entry(res.Created[0])
	assert.Equal(t, date(2025, 2, 28), occurrence.DueDate)
	assert.Equal(t, models.EntryOriginRecurrence, occurrence.Origin)
	require.NotNil(t, occurrence.TemplateID)
	assert.Equal(t, monthly.ID, *occurrence.TemplateID)

	again, err := env.ledger.GenerateRecurrences(ctx, date(2025, 2, 20))
	require.NoError(t, err)
	assert.Empty(t, again.Created)
	assert.Equal(t, 2, again.Skipped)

	april, err := env.ledger.GenerateRecurrences(ctx, date(2025, 4, 5))
	require.NoError(t, err)
	require.Len(t, april.Created, 2)
	dues := map[uint]bool{}
	for _, id := range april.Created {
		e := env.store.entry(id)
		dues[*e.TemplateID] = true
		if *e.TemplateID == quarterly.ID {
			assert.Equal(t, date(2025, 4, 10), e.DueDate)
		} else {
			assert.Equal(t, date(2025, 4, 30), e.DueDate)
		}
	}
	assert.Len(t, dues, 2)
}

func TestOccurrenceFor(t *testing.T) {
	tests := []struct {
		name      string
		frequency string
		asOfYear  int
		asOfMonth int
		wantOK    bool
		wantDay   int
	}{
		{"same month has no occurrence", models.FrequencyMonthly, 2024, 1, false, 0},
		{"leap february clamps to 29", models.FrequencyMonthly, 2024, 2, true, 29},
		{"quarter boundary", models.FrequencyQuarterly, 2024, 4, true, 30},
		{"off quarter", models.FrequencyQuarterly, 2024, 5, false, 0},
		{"yearly", models.FrequencyYearly, 2025, 1, true, 31},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due, ok := occurrenceFor(date(2024, 1, 31), tt.frequency, date(tt.asOfYear, time.Month(tt.asOfMonth), 15))
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantDay, due.Day())
				assert.Equal(t, tt.asOfMonth, int(due.Month()))
			}
		})
	}
}
