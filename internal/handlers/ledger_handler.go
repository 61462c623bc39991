package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/juridico/conciliacao-api/internal/models"
	"github.com/juridico/conciliacao-api/internal/services"
	"github.com/shopspring/decimal"
)

type LedgerHandler struct {
	ledgerService *services.LedgerService
}

func NewLedgerHandler(ledgerService *services.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService}
}

// CreateEntryRequest is the body of a manual ledger entry
type CreateEntryRequest struct {
	Kind                string          `json:"kind"`
	Description         string          `json:"description"`
	Amount              decimal.Decimal `json:"amount"`
	EntryDate           *string         `json:"entry_date"`
	DueDate             string          `json:"due_date"`
	EffectiveDate       *string         `json:"effective_date"`
	AccrualDate         *string         `json:"accrual_date"`
	Confirmed           bool            `json:"confirmed"`
	PaymentMethod       *string         `json:"payment_method"`
	BankAccountID       *uint           `json:"bank_account_id"`
	CostCenterID        *uint           `json:"cost_center_id"`
	ChartAccountID      *uint           `json:"chart_account_id"`
	DocumentRef         *string         `json:"document_ref"`
	Notes               *string         `json:"notes"`
	ClientID            *uint           `json:"client_id"`
	SupplierID          *uint           `json:"supplier_id"`
	CaseID              *uint           `json:"case_id"`
	ContractID          *uint           `json:"contract_id"`
	Recurring           bool            `json:"recurring"`
	RecurrenceFrequency *string         `json:"recurrence_frequency"`
}

// parseDates parses named optional dates and names a malformed one
func parseDates(raw map[string]*string) (map[string]*time.Time, string) {
	out := make(map[string]*time.Time, len(raw))
	for name, value := range raw {
		d, err := parseOptionalDate(value)
		if err != nil {
			return nil, name
		}
		out[name] = d
	}
	return out, ""
}

func (r CreateEntryRequest) toInput() (services.CreateEntryInput, string) {
	in := services.CreateEntryInput{
		Kind:                r.Kind,
		Description:         r.Description,
		Amount:              r.Amount,
		Confirmed:           r.Confirmed,
		PaymentMethod:       r.PaymentMethod,
		BankAccountID:       r.BankAccountID,
		CostCenterID:        r.CostCenterID,
		ChartAccountID:      r.ChartAccountID,
		DocumentRef:         r.DocumentRef,
		Notes:               r.Notes,
		ClientID:            r.ClientID,
		SupplierID:          r.SupplierID,
		CaseID:              r.CaseID,
		ContractID:          r.ContractID,
		Recurring:           r.Recurring,
		RecurrenceFrequency: r.RecurrenceFrequency,
	}

	parsed, bad := parseDates(map[string]*string{
		"due_date":       &r.DueDate,
		"entry_date":     r.EntryDate,
		"effective_date": r.EffectiveDate,
		"accrual_date":   r.AccrualDate,
	})
	if bad != "" {
		return in, bad
	}
	if due := parsed["due_date"]; due != nil {
		in.DueDate = *due
	}
	in.EntryDate = parsed["entry_date"]
	in.EffectiveDate = parsed["effective_date"]
	in.AccrualDate = parsed["accrual_date"]
	return in, ""
}

// UpdateEntryRequest is a partial update; absent fields are left untouched
type UpdateEntryRequest struct {
	Description    *string          `json:"description"`
	PaymentMethod  *string          `json:"payment_method"`
	BankAccountID  *uint            `json:"bank_account_id"`
	CostCenterID   *uint            `json:"cost_center_id"`
	ChartAccountID *uint            `json:"chart_account_id"`
	DocumentRef    *string          `json:"document_ref"`
	Notes          *string          `json:"notes"`
	Amount         *decimal.Decimal `json:"amount"`
	DueDate        *string          `json:"due_date"`
	EffectiveDate  *string          `json:"effective_date"`
	AccrualDate    *string          `json:"accrual_date"`
}

func (r UpdateEntryRequest) toInput() (services.UpdateEntryInput, string) {
	in := services.UpdateEntryInput{
		Description:    r.Description,
		PaymentMethod:  r.PaymentMethod,
		BankAccountID:  r.BankAccountID,
		CostCenterID:   r.CostCenterID,
		ChartAccountID: r.ChartAccountID,
		DocumentRef:    r.DocumentRef,
		Notes:          r.Notes,
		Amount:         r.Amount,
	}
	parsed, bad := parseDates(map[string]*string{
		"due_date":       r.DueDate,
		"effective_date": r.EffectiveDate,
		"accrual_date":   r.AccrualDate,
	})
	if bad != "" {
		return in, bad
	}
	in.DueDate = parsed["due_date"]
	in.EffectiveDate = parsed["effective_date"]
	in.AccrualDate = parsed["accrual_date"]
	return in, ""
}

type ConfirmEntryRequest struct {
	EffectiveDate *string `json:"effective_date"`
	PaymentMethod *string `json:"payment_method"`
	BankAccountID *uint   `json:"bank_account_id"`
}

type ReverseEntryRequest struct {
	Reason string `json:"reason"`
}

type AttachmentRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Mime string `json:"mime"`
	Size int64  `json:"size"`
}

// @Summary Create Ledger Entry
// @Description Create a manual revenue or expense entry
// @Tags Ledger
// @Accept json
// @Produce json
// @Param request body CreateEntryRequest true "Entry"
// @Success 201 {object} models.LedgerEntry
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /ledger_entries [post]
func (h *LedgerHandler) Create(c *gin.Context) {
	var req CreateEntryRequest
	if err := BindNestedOrFlat(c, keyEntry, &req); err != nil {
		invalidInput(c, "corpo_invalido", err.Error())
		return
	}
	input, bad := req.toInput()
	if bad != "" {
		invalidInput(c, "data_invalida", bad+" deve estar no formato AAAA-MM-DD")
		return
	}

	entry, err := h.ledgerService.CreateEntry(c.Request.Context(), actorFrom(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"entry": entry})
}

// @Summary List Ledger Entries
// @Tags Ledger
// @Produce json
// @Param kind query string false "receita or despesa"
// @Param status query string false "Status"
// @Param due_from query string false "Due date lower bound (YYYY-MM-DD)"
// @Param due_to query string false "Due date upper bound (YYYY-MM-DD)"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /ledger_entries [get]
func (h *LedgerHandler) Index(c *gin.Context) {
	query := listQueryFrom(c, "kind", "status", "origin", "installment_id", "obligation_id", "bank_account_id", "case_id", "client_id", "due_from", "due_to")
	for _, f := range []string{"due_from", "due_to"} {
		if v, ok := query.Filters[f]; ok {
			if _, err := parseDate(v); err != nil {
				invalidInput(c, "data_invalida", f+" deve estar no formato AAAA-MM-DD")
				return
			}
		}
	}

	entries, total, err := h.ledgerService.ListEntries(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "pagination": pagination(query, total)})
}

func (h *LedgerHandler) Show(c *gin.Context) {
	id, ok := idParam(c, "entry_id")
	if !ok {
		return
	}
	entry, err := h.ledgerService.GetEntry(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

// @Summary Update Ledger Entry
// @Description Amount and dates may only change while the entry is pending
// @Tags Ledger
// @Accept json
// @Produce json
// @Param entry_id path int true "Entry ID"
// @Param request body UpdateEntryRequest true "Changes"
// @Success 200 {object} models.LedgerEntry
// @Security BearerAuth
// @Router /ledger_entries/{entry_id} [patch]
func (h *LedgerHandler) Update(c *gin.Context) {
	id, ok := idParam(c, "entry_id")
	if !ok {
		return
	}
	var req UpdateEntryRequest
	if err := BindNestedOrFlat(c, keyEntry, &req); err != nil {
		invalidInput(c, "corpo_invalido", err.Error())
		return
	}
	input, bad := req.toInput()
	if bad != "" {
		invalidInput(c, "data_invalida", bad+" deve estar no formato AAAA-MM-DD")
		return
	}

	entry, err := h.ledgerService.UpdateEntry(c.Request.Context(), actorFrom(c), id, input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

func (h *LedgerHandler) Confirm(c *gin.Context) {
	id, ok := idParam(c, "entry_id")
	if !ok {
		return
	}
	var req ConfirmEntryRequest
	// empty body confirms with the data already on the entry
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, "corpo_invalido", err.Error())
			return
		}
	}
	effective, err := parseOptionalDate(req.EffectiveDate)
	if err != nil {
		invalidInput(c, "data_invalida", "effective_date deve estar no formato AAAA-MM-DD")
		return
	}

	entry, err := h.ledgerService.ConfirmEntry(c.Request.Context(), actorFrom(c), id, services.ConfirmEntryInput{
		EffectiveDate: effective,
		PaymentMethod: req.PaymentMethod,
		BankAccountID: req.BankAccountID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

func (h *LedgerHandler) Cancel(c *gin.Context) {
	id, ok := idParam(c, "entry_id")
	if !ok {
		return
	}
	entry, err := h.ledgerService.CancelEntry(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

// @Summary Reverse Ledger Entry
// @Description Reverse a confirmed entry with a compensating entry of the opposite kind
// @Tags Ledger
// @Accept json
// @Produce json
// @Param entry_id path int true "Entry ID"
// @Param request body ReverseEntryRequest false "Reason"
// @Success 200 {object} services.ReversalResult
// @Security BearerAuth
// @Router /ledger_entries/{entry_id}/reverse [post]
func (h *LedgerHandler) Reverse(c *gin.Context) {
	id, ok := idParam(c, "entry_id")
	if !ok {
		return
	}
	var req ReverseEntryRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, "corpo_invalido", err.Error())
			return
		}
	}

	result, err := h.ledgerService.ReverseEntry(c.Request.Context(), actorFrom(c), id, strings.TrimSpace(req.Reason))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *LedgerHandler) AddAttachment(c *gin.Context) {
	id, ok := idParam(c, "entry_id")
	if !ok {
		return
	}
	var req AttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidInput(c, "corpo_invalido", err.Error())
		return
	}

	entry, err := h.ledgerService.AddAttachment(c.Request.Context(), actorFrom(c), id, models.Attachment{
		Name: req.Name,
		URL:  req.URL,
		Mime: req.Mime,
		Size: req.Size,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entry": entry})
}
