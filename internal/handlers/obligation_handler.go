package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/juridico/conciliacao-api/internal/models"
	"github.com/juridico/conciliacao-api/internal/services"
	"github.com/shopspring/decimal"
)

type SplitHandler struct{}

func NewSplitHandler() *SplitHandler {
	return &SplitHandler{}
}

// SplitRequest carries the inputs of the split calculator
type SplitRequest struct {
	Principal             decimal.Decimal `json:"principal"`
	Direction             string          `json:"direction"`
	ContractualFeePercent decimal.Decimal `json:"contractual_fee_percent"`
	StatutoryFee          decimal.Decimal `json:"statutory_fee"`
	HasClient             bool            `json:"has_client"`
}

// @Summary Compute Split
// @Description Divide an installment between client payout and office revenue
// @Tags Split
// @Accept json
// @Produce json
// @Param request body SplitRequest true "Split inputs"
// @Success 200 {object} services.Split
// @Failure 422 {object} map[string]string
// @Router /split [post]
func (h *SplitHandler) Compute(c *gin.Context) {
	var req SplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidInput(c, "corpo_invalido", err.Error())
		return
	}

	split, err := services.ComputeSplit(services.SplitInput{
		Principal:             req.Principal,
		Direction:             req.Direction,
		ContractualFeePercent: req.ContractualFeePercent,
		StatutoryFee:          req.StatutoryFee,
		HasClient:             req.HasClient,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"split": split})
}

type ObligationHandler struct {
	obligationService *services.ObligationService
	syncService       *services.SyncService
}

func NewObligationHandler(obligationService *services.ObligationService, syncService *services.SyncService) *ObligationHandler {
	return &ObligationHandler{obligationService: obligationService, syncService: syncService}
}

// InstallmentRequest is one scheduled installment of a new obligation
type InstallmentRequest struct {
	Number       int             `json:"number"`
	GrossAmount  decimal.Decimal `json:"gross_amount"`
	StatutoryFee decimal.Decimal `json:"statutory_fee"`
	DueDate      string          `json:"due_date"`
}

// CreateObligationRequest registers a settlement or judgment
type CreateObligationRequest struct {
	Direction             string               `json:"direction"`
	Description           string               `json:"description"`
	CaseID                *uint                `json:"case_id"`
	ClientID              *uint                `json:"client_id"`
	CounterpartyName      string               `json:"counterparty_name"`
	ContractualFeePercent decimal.Decimal      `json:"contractual_fee_percent"`
	BankAccountID         *uint                `json:"bank_account_id"`
	PaymentMethod         *string              `json:"payment_method"`
	Installments          []InstallmentRequest `json:"installments"`
}

// toInput converts the request, rejecting malformed dates
func (r CreateObligationRequest) toInput() (services.RegisterObligationInput, string, error) {
	in := services.RegisterObligationInput{
		Direction:             r.Direction,
		Description:           r.Description,
		CaseID:                r.CaseID,
		ClientID:              r.ClientID,
		CounterpartyName:      r.CounterpartyName,
		ContractualFeePercent: r.ContractualFeePercent,
		BankAccountID:         r.BankAccountID,
		PaymentMethod:         r.PaymentMethod,
	}
	for _, p := range r.Installments {
		item := services.InstallmentInput{
			Number:       p.Number,
			GrossAmount:  p.GrossAmount,
			StatutoryFee: p.StatutoryFee,
		}
		if p.DueDate != "" {
			due, err := parseDate(p.DueDate)
			if err != nil {
				return in, "due_date", err
			}
			item.DueDate = due
		}
		in.Installments = append(in.Installments, item)
	}
	return in, "", nil
}

// @Summary Register Obligation
// @Description Register a settlement or judgment with its installments
// @Tags Obligations
// @Accept json
// @Produce json
// @Param request body CreateObligationRequest true "Obligation"
// @Success 201 {object} models.ObligationResponse
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /obligations [post]
func (h *ObligationHandler) Create(c *gin.Context) {
	var req CreateObligationRequest
	if err := BindNestedOrFlat(c, keyObligation, &req); err != nil {
		invalidInput(c, "corpo_invalido", err.Error())
		return
	}
	input, field, err := req.toInput()
	if err != nil {
		invalidInput(c, "data_invalida", "data inválida em "+field+": use AAAA-MM-DD")
		return
	}

	obligation, err := h.obligationService.RegisterObligation(c.Request.Context(), actorFrom(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"obligation": obligation.ToResponse()})
}

// @Summary List Obligations
// @Tags Obligations
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param direction query string false "recebimento or pagamento"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /obligations [get]
func (h *ObligationHandler) Index(c *gin.Context) {
	query := listQueryFrom(c, "direction", "case_id", "client_id")

	obligations, total, err := h.obligationService.ListObligations(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.ObligationResponse, 0, len(obligations))
	for i := range obligations {
		responses = append(responses, obligations[i].ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{"obligations": responses, "pagination": pagination(query, total)})
}

// @Summary Get Obligation
// @Tags Obligations
// @Produce json
// @Param obligation_id path int true "Obligation ID"
// @Success 200 {object} models.ObligationResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /obligations/{obligation_id} [get]
func (h *ObligationHandler) Show(c *gin.Context) {
	id, ok := idParam(c, "obligation_id")
	if !ok {
		return
	}
	obligation, err := h.obligationService.GetObligation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"obligation": obligation.ToResponse()})
}

// @Summary Sync Obligation
// @Description Mirror every installment of the obligation into the ledger
// @Tags Obligations
// @Produce json
// @Param obligation_id path int true "Obligation ID"
// @Param force query bool false "Overwrite manual entries and correct confirmed amounts"
// @Success 200 {object} services.BatchResult
// @Security BearerAuth
// @Router /obligations/{obligation_id}/sync [post]
func (h *ObligationHandler) Sync(c *gin.Context) {
	id, ok := idParam(c, "obligation_id")
	if !ok {
		return
	}
	batch, err := h.syncService.SyncObligation(c.Request.Context(), actorFrom(c), id, boolQuery(c, "force"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sync": batch})
}

type InstallmentHandler struct {
	obligationService *services.ObligationService
	syncService       *services.SyncService
	repasseService    *services.RepasseService
}

func NewInstallmentHandler(obligationService *services.ObligationService, syncService *services.SyncService, repasseService *services.RepasseService) *InstallmentHandler {
	return &InstallmentHandler{obligationService: obligationService, syncService: syncService, repasseService: repasseService}
}

type PaymentRequest struct {
	PaymentDate string `json:"payment_date"`
}

type DeclarationRequest struct {
	DocumentURL string `json:"document_url"`
}

type TransferProofRequest struct {
	DocumentURL string `json:"document_url"`
	RepasseDate string `json:"repasse_date"`
}

func (h *InstallmentHandler) Show(c *gin.Context) {
	id, ok := idParam(c, "installment_id")
	if !ok {
		return
	}
	installment, err := h.obligationService.GetInstallment(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"installment": installment})
}

// @Summary Installment Split
// @Tags Installments
// @Produce json
// @Param installment_id path int true "Installment ID"
// @Success 200 {object} services.Split
// @Security BearerAuth
// @Router /installments/{installment_id}/split [get]
func (h *InstallmentHandler) Split(c *gin.Context) {
	id, ok := idParam(c, "installment_id")
	if !ok {
		return
	}
	split, err := h.obligationService.InstallmentSplit(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"split": split})
}

// @Summary Register Installment Payment
// @Description Mark the installment received or paid and mirror it into the ledger
// @Tags Installments
// @Accept json
// @Produce json
// @Param installment_id path int true "Installment ID"
// @Param request body PaymentRequest true "Payment date"
// @Success 200 {object} services.PaymentResult
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /installments/{installment_id}/payment [post]
func (h *InstallmentHandler) Pay(c *gin.Context) {
	id, ok := idParam(c, "installment_id")
	if !ok {
		return
	}
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidInput(c, "corpo_invalido", err.Error())
		return
	}
	paymentDate, err := parseDate(req.PaymentDate)
	if err != nil {
		invalidInput(c, "data_invalida", "payment_date deve estar no formato AAAA-MM-DD")
		return
	}

	result, err := h.obligationService.RegisterInstallmentPayment(c.Request.Context(), actorFrom(c), id, paymentDate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *InstallmentHandler) Cancel(c *gin.Context) {
	id, ok := idParam(c, "installment_id")
	if !ok {
		return
	}
	result, err := h.obligationService.CancelInstallment(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary Sync Installment
// @Tags Installments
// @Produce json
// @Param installment_id path int true "Installment ID"
// @Param force query bool false "Force"
// @Success 200 {object} services.SyncResult
// @Security BearerAuth
// @Router /installments/{installment_id}/sync [post]
func (h *InstallmentHandler) Sync(c *gin.Context) {
	id, ok := idParam(c, "installment_id")
	if !ok {
		return
	}
	result, err := h.syncService.SyncInstallment(c.Request.Context(), actorFrom(c), id, boolQuery(c, "force"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sync": result})
}

// @Summary Register Repasse Declaration
// @Tags Repasse
// @Accept json
// @Produce json
// @Param installment_id path int true "Installment ID"
// @Param request body DeclarationRequest true "Declaration document"
// @Success 200 {object} models.Installment
// @Security BearerAuth
// @Router /installments/{installment_id}/repasse/declaration [post]
func (h *InstallmentHandler) Declaration(c *gin.Context) {
	id, ok := idParam(c, "installment_id")
	if !ok {
		return
	}
	var req DeclarationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidInput(c, "corpo_invalido", err.Error())
		return
	}

	installment, err := h.repasseService.RegisterDeclaration(c.Request.Context(), actorFrom(c), id, req.DocumentURL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"installment": installment})
}

// @Summary Register Repasse Transfer Proof
// @Tags Repasse
// @Accept json
// @Produce json
// @Param installment_id path int true "Installment ID"
// @Param request body TransferProofRequest true "Transfer proof"
// @Success 200 {object} models.Installment
// @Security BearerAuth
// @Router /installments/{installment_id}/repasse/transfer [post]
func (h *InstallmentHandler) TransferProof(c *gin.Context) {
	id, ok := idParam(c, "installment_id")
	if !ok {
		return
	}
	var req TransferProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidInput(c, "corpo_invalido", err.Error())
		return
	}
	repasseDate, err := parseDate(req.RepasseDate)
	if err != nil {
		invalidInput(c, "data_invalida", "repasse_date deve estar no formato AAAA-MM-DD")
		return
	}

	installment, err := h.repasseService.RegisterTransferProof(c.Request.Context(), actorFrom(c), id, req.DocumentURL, repasseDate)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"installment": installment})
}

func (h *InstallmentHandler) PendingRepasse(c *gin.Context) {
	pending, err := h.repasseService.ListPendingRepasse(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"installments": pending, "total": len(pending)})
}
