package statemachine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/juridico/conciliacao-api/internal/models"
	"github.com/looplab/fsm"
)

var (
	// ErrTransitionNotAllowed is returned when the current state does not accept the event
	ErrTransitionNotAllowed = errors.New("transição de estado não permitida")
	// ErrMissingRequirement is returned when the target state needs data the record lacks
	ErrMissingRequirement = errors.New("requisito da transição ausente")
)

// LedgerEntryFSM wraps a ledger entry with its state machine
type LedgerEntryFSM struct {
	entry *models.LedgerEntry
	fsm   *fsm.FSM
}

// NewLedgerEntryFSM creates a new ledger entry state machine
func NewLedgerEntryFSM(entry *models.LedgerEntry) *LedgerEntryFSM {
	lfsm := &LedgerEntryFSM{
		entry: entry,
	}

	lfsm.fsm = fsm.NewFSM(
		entry.Status,
		fsm.Events{
			// pendente → confirmado (effectuation)
			{Name: "confirm", Src: []string{models.EntryStatusPending}, Dst: models.EntryStatusConfirmed},

			// pendente → cancelado
			{Name: "cancel", Src: []string{models.EntryStatusPending}, Dst: models.EntryStatusCancelled},

			// confirmado → estornado
			{Name: "reverse", Src: []string{models.EntryStatusConfirmed}, Dst: models.EntryStatusReversed},
		},
		fsm.Callbacks{},
	)

	return lfsm
}

// ConfirmationRequirements lists what an entry lacks to be effectuated
func ConfirmationRequirements(entry *models.LedgerEntry) []string {
	var missing []string
	if entry.EffectiveDate == nil {
		missing = append(missing, "data_efetivacao")
	}
	if entry.PaymentMethod == nil || strings.TrimSpace(*entry.PaymentMethod) == "" {
		missing = append(missing, "forma_pagamento")
	}
	if entry.BankAccountID == nil {
		missing = append(missing, "conta_bancaria")
	}
	return missing
}

// Confirm transitions the entry to confirmado
func (l *LedgerEntryFSM) Confirm(ctx context.Context) error {
	if !l.entry.MayConfirm() {
		return fmt.Errorf("%w: lançamento não pode ser confirmado no status atual: %s", ErrTransitionNotAllowed, l.entry.Status)
	}

	if missing := ConfirmationRequirements(l.entry); len(missing) > 0 {
		return fmt.Errorf("%w: confirmação exige %s", ErrMissingRequirement, strings.Join(missing, ", "))
	}

	if err := l.fsm.Event(ctx, "confirm"); err != nil {
		return fmt.Errorf("failed to confirm ledger entry: %w", err)
	}

	l.entry.Status = l.fsm.Current()
	return nil
}

// Cancel transitions the entry to cancelado
func (l *LedgerEntryFSM) Cancel(ctx context.Context) error {
	if !l.entry.MayCancel() {
		return fmt.Errorf("%w: lançamento não pode ser cancelado no status atual: %s", ErrTransitionNotAllowed, l.entry.Status)
	}

	if err := l.fsm.Event(ctx, "cancel"); err != nil {
		return fmt.Errorf("failed to cancel ledger entry: %w", err)
	}

	l.entry.Status = l.fsm.Current()
	return nil
}

// Reverse transitions the entry to estornado. The compensating entry is created by the caller.
func (l *LedgerEntryFSM) Reverse(ctx context.Context) error {
	if !l.entry.MayReverse() {
		return fmt.Errorf("%w: lançamento não pode ser estornado no status atual: %s", ErrTransitionNotAllowed, l.entry.Status)
	}

	if err := l.fsm.Event(ctx, "reverse"); err != nil {
		return fmt.Errorf("failed to reverse ledger entry: %w", err)
	}

	l.entry.Status = l.fsm.Current()
	return nil
}

// Current returns the current state
func (l *LedgerEntryFSM) Current() string {
	return l.fsm.Current()
}

// Can checks if a transition is possible
func (l *LedgerEntryFSM) Can(event string) bool {
	return l.fsm.Can(event)
}
