package services

import (
	"github.com/juridico/conciliacao-api/internal/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Split is the division of an installment between client payout and office revenue
type Split struct {
	TotalValue     decimal.Decimal `json:"total_value"`
	Principal      decimal.Decimal `json:"principal"`
	ContractualFee decimal.Decimal `json:"contractual_fee"`
	StatutoryFee   decimal.Decimal `json:"statutory_fee"`
	ClientPayout   decimal.Decimal `json:"client_payout"`
	OfficeRevenue  decimal.Decimal `json:"office_revenue"`
	OfficePercent  decimal.Decimal `json:"office_percent"`
	ClientPercent  decimal.Decimal `json:"client_percent"`
}

// SplitInput holds the values needed to compute a split
type SplitInput struct {
	Principal             decimal.Decimal
	Direction             string
	ContractualFeePercent decimal.Decimal
	StatutoryFee          decimal.Decimal
	HasClient             bool
}

// ComputeSplit derives the money split of an installment.
// Each derived field is rounded once (banker's rounding, 2 places) from unrounded inputs.
func ComputeSplit(in SplitInput) (*Split, error) {
	if in.Principal.IsNegative() {
		return nil, ruleError("principal_nao_negativo", "o valor principal não pode ser negativo")
	}
	if in.StatutoryFee.IsNegative() {
		return nil, ruleError("honorarios_sucumbenciais_nao_negativos", "os honorários sucumbenciais não podem ser negativos")
	}
	if in.ContractualFeePercent.IsNegative() || in.ContractualFeePercent.GreaterThan(decimal.NewFromInt(1)) {
		return nil, ruleError("percentual_honorarios_intervalo", "o percentual de honorários contratuais deve estar entre 0 e 1")
	}
	if !models.IsValidDirection(in.Direction) {
		return nil, ruleError("direcao_valida", "direção inválida: %s", in.Direction)
	}

	principal := in.Principal.RoundBank(2)
	statutory := in.StatutoryFee.RoundBank(2)
	fee := in.Principal.Mul(in.ContractualFeePercent).RoundBank(2)
	if fee.GreaterThan(principal) {
		return nil, ruleError("honorarios_excedem_principal", "os honorários contratuais (%s) excedem o principal (%s)", fee.StringFixed(2), principal.StringFixed(2))
	}

	payout := decimal.Zero
	if in.Direction == models.DirectionReceivable && in.HasClient {
		payout = principal.Sub(fee)
	}

	total := principal.Add(statutory)
	office := fee.Add(statutory)

	officePct, clientPct := decimal.Zero, decimal.Zero
	if total.IsPositive() {
		officePct = office.Div(total).Mul(hundred).RoundBank(2)
		if officePct.GreaterThan(hundred) {
			officePct = hundred
		}
		clientPct = hundred.Sub(officePct)
	}

	return &Split{
		TotalValue:     total,
		Principal:      principal,
		ContractualFee: fee,
		StatutoryFee:   statutory,
		ClientPayout:   payout,
		OfficeRevenue:  office,
		OfficePercent:  officePct,
		ClientPercent:  clientPct,
	}, nil
}

// splitForInstallment recomputes the authoritative split of a persisted installment
func splitForInstallment(o *models.Obligation, p *models.Installment) (*Split, error) {
	return ComputeSplit(SplitInput{
		Principal:             p.GrossAmount,
		Direction:             o.Direction,
		ContractualFeePercent: o.ContractualFeePercent,
		StatutoryFee:          p.StatutoryFee,
		HasClient:             o.HasClient(),
	})
}
