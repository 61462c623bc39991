package statemachine

import (
	"context"
	"fmt"
	"time"

	"github.com/juridico/conciliacao-api/internal/models"
	"github.com/looplab/fsm"
)

// RepasseFSM tracks the transfer of the client's share of a received installment.
// Transitions are strictly forward.
type RepasseFSM struct {
	installment *models.Installment
	fsm         *fsm.FSM
}

// NewRepasseFSM creates a new repasse state machine
func NewRepasseFSM(installment *models.Installment) *RepasseFSM {
	rfsm := &RepasseFSM{
		installment: installment,
	}

	rfsm.fsm = fsm.NewFSM(
		installment.RepasseStatus,
		fsm.Events{
			// nao_aplicavel → pendente_declaracao (installment received with a payout owed)
			{Name: "open", Src: []string{models.RepasseNotApplicable}, Dst: models.RepassePendingDeclaration},

			// pendente_declaracao → pendente_transferencia
			{Name: "declare", Src: []string{models.RepassePendingDeclaration}, Dst: models.RepassePendingTransfer},

			// pendente_transferencia → repassado
			{Name: "transfer", Src: []string{models.RepassePendingTransfer}, Dst: models.RepasseTransferred},
		},
		fsm.Callbacks{},
	)

	return rfsm
}

// Open starts the repasse once the installment was received
func (r *RepasseFSM) Open(ctx context.Context) error {
	if r.installment.Status != models.InstallmentStatusReceived {
		return fmt.Errorf("%w: repasse exige parcela recebida, status atual: %s", ErrTransitionNotAllowed, r.installment.Status)
	}

	if err := r.fsm.Event(ctx, "open"); err != nil {
		return fmt.Errorf("%w: repasse não pode ser aberto no status atual: %s", ErrTransitionNotAllowed, r.installment.RepasseStatus)
	}

	r.installment.RepasseStatus = r.fsm.Current()
	return nil
}

// Declare registers the declaration-of-accounts document
func (r *RepasseFSM) Declare(ctx context.Context, documentURL string) error {
	if !r.installment.MayDeclare() {
		return fmt.Errorf("%w: declaração exige parcela recebida com repasse pendente de declaração (parcela: %s, repasse: %s)",
			ErrTransitionNotAllowed, r.installment.Status, r.installment.RepasseStatus)
	}

	if err := r.fsm.Event(ctx, "declare"); err != nil {
		return fmt.Errorf("failed to register declaration: %w", err)
	}

	r.installment.RepasseStatus = r.fsm.Current()
	r.installment.DeclarationURL = &documentURL
	return nil
}

// RegisterTransfer registers the transfer proof and the repasse date
func (r *RepasseFSM) RegisterTransfer(ctx context.Context, documentURL string, repasseDate time.Time) error {
	if !r.installment.MayRegisterTransfer() {
		return fmt.Errorf("%w: comprovante de transferência exige declaração registrada (repasse: %s)",
			ErrTransitionNotAllowed, r.installment.RepasseStatus)
	}

	if r.installment.PaymentDate != nil && repasseDate.Before(*r.installment.PaymentDate) {
		return fmt.Errorf("%w: data do repasse anterior ao recebimento da parcela", ErrMissingRequirement)
	}

	if err := r.fsm.Event(ctx, "transfer"); err != nil {
		return fmt.Errorf("failed to register transfer: %w", err)
	}

	r.installment.RepasseStatus = r.fsm.Current()
	r.installment.TransferProofURL = &documentURL
	r.installment.RepasseDate = &repasseDate
	return nil
}

// Current returns the current state
func (r *RepasseFSM) Current() string {
	return r.fsm.Current()
}
