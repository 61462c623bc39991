package statemachine

import (
	"context"
	"fmt"
	"time"

	"github.com/juridico/conciliacao-api/internal/models"
	"github.com/looplab/fsm"
)

// InstallmentFSM wraps an installment's payment status with its state machine
type InstallmentFSM struct {
	installment *models.Installment
	fsm         *fsm.FSM
}

// NewInstallmentFSM creates a new installment state machine
func NewInstallmentFSM(installment *models.Installment) *InstallmentFSM {
	ifsm := &InstallmentFSM{
		installment: installment,
	}

	open := []string{models.InstallmentStatusPending, models.InstallmentStatusOverdue}

	ifsm.fsm = fsm.NewFSM(
		installment.Status,
		fsm.Events{
			// pendente → atrasada
			{Name: "mark_overdue", Src: []string{models.InstallmentStatusPending}, Dst: models.InstallmentStatusOverdue},

			// pendente/atrasada → recebida (receivable obligations)
			{Name: "receive", Src: open, Dst: models.InstallmentStatusReceived},

			// pendente/atrasada → paga (payable obligations)
			{Name: "pay", Src: open, Dst: models.InstallmentStatusPaid},

			// pendente/atrasada → cancelada
			{Name: "cancel", Src: open, Dst: models.InstallmentStatusCancelled},
		},
		fsm.Callbacks{},
	)

	return ifsm
}

// Settle registers the payment event; direction selects recebida or paga
func (i *InstallmentFSM) Settle(ctx context.Context, direction string, paymentDate time.Time) error {
	if !i.installment.MaySettle() {
		return fmt.Errorf("%w: parcela não pode ser quitada no status atual: %s", ErrTransitionNotAllowed, i.installment.Status)
	}

	event := "receive"
	if direction == models.DirectionPayable {
		event = "pay"
	}

	if err := i.fsm.Event(ctx, event); err != nil {
		return fmt.Errorf("failed to settle installment: %w", err)
	}

	i.installment.Status = i.fsm.Current()
	i.installment.PaymentDate = &paymentDate
	return nil
}

// MarkOverdue transitions the installment to atrasada
func (i *InstallmentFSM) MarkOverdue(ctx context.Context) error {
	if i.installment.Status != models.InstallmentStatusPending {
		return fmt.Errorf("%w: parcela não pode ficar atrasada no status atual: %s", ErrTransitionNotAllowed, i.installment.Status)
	}

	if err := i.fsm.Event(ctx, "mark_overdue"); err != nil {
		return fmt.Errorf("failed to mark installment overdue: %w", err)
	}

	i.installment.Status = i.fsm.Current()
	return nil
}

// Cancel transitions the installment to cancelada
func (i *InstallmentFSM) Cancel(ctx context.Context) error {
	if !i.installment.MayCancel() {
		return fmt.Errorf("%w: parcela não pode ser cancelada no status atual: %s", ErrTransitionNotAllowed, i.installment.Status)
	}

	if err := i.fsm.Event(ctx, "cancel"); err != nil {
		return fmt.Errorf("failed to cancel installment: %w", err)
	}

	i.installment.Status = i.fsm.Current()
	return nil
}

// Current returns the current state
func (i *InstallmentFSM) Current() string {
	return i.fsm.Current()
}
