package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/juridico/conciliacao-api/internal/services"
	"github.com/shopspring/decimal"
)

type ReconciliationHandler struct {
	reconciliationService *services.ReconciliationService
}

func NewReconciliationHandler(reconciliationService *services.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconciliationService: reconciliationService}
}

// StatementLineRequest is one already-parsed statement line
type StatementLineRequest struct {
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        string          `json:"kind"`
	Document    *string         `json:"document"`
	RawPayload  *string         `json:"raw_payload"`
}

type ImportRequest struct {
	BankAccountID uint                   `json:"bank_account_id"`
	Transactions  []StatementLineRequest `json:"transactions"`
}

func (r ImportRequest) toLines() ([]services.StatementLine, int) {
	lines := make([]services.StatementLine, 0, len(r.Transactions))
	for i, t := range r.Transactions {
		date, err := parseDate(t.Date)
		if err != nil {
			return nil, i + 1
		}
		lines = append(lines, services.StatementLine{
			Date:        date,
			Description: t.Description,
			Amount:      t.Amount,
			Kind:        t.Kind,
			Document:    t.Document,
			RawPayload:  t.RawPayload,
		})
	}
	return lines, 0
}

type ReconcileRequest struct {
	LedgerEntryID *uint   `json:"ledger_entry_id"`
	Notes         *string `json:"notes"`
}

type IgnoreRequest struct {
	Notes *string `json:"notes"`
}

// @Summary Import Statement
// @Description Import normalized bank statement lines; lines seen before are counted as duplicates
// @Tags Reconciliation
// @Accept json
// @Produce json
// @Param request body ImportRequest true "Statement"
// @Success 201 {object} services.ImportResult
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /transactions/import [post]
func (h *ReconciliationHandler) Import(c *gin.Context) {
	var req ImportRequest
	if err := BindNestedOrFlat(c, keyStatement, &req); err != nil {
		invalidInput(c, "corpo_invalido", err.Error())
		return
	}
	lines, badLine := req.toLines()
	if badLine > 0 {
		invalidInput(c, "data_invalida", "data inválida na linha do extrato (use AAAA-MM-DD)")
		return
	}

	result, err := h.reconciliationService.ImportTransactions(c.Request.Context(), actorFrom(c), req.BankAccountID, lines)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// @Summary Pending Transactions
// @Tags Reconciliation
// @Produce json
// @Param bank_account_id query int false "Bank account"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /transactions/pending [get]
func (h *ReconciliationHandler) Pending(c *gin.Context) {
	account, ok := optionalUintQuery(c, "bank_account_id")
	if !ok {
		return
	}
	txs, err := h.reconciliationService.ListPendingTransactions(c.Request.Context(), account)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs, "total": len(txs)})
}

func (h *ReconciliationHandler) Show(c *gin.Context) {
	id, ok := idParam(c, "transaction_id")
	if !ok {
		return
	}
	t, err := h.reconciliationService.GetTransaction(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": t})
}

// @Summary Match Suggestions
// @Description Rank the ledger entries that may settle the transaction
// @Tags Reconciliation
// @Produce json
// @Param transaction_id path int true "Transaction ID"
// @Success 200 {array} matching.Suggestion
// @Security BearerAuth
// @Router /transactions/{transaction_id}/suggestions [get]
func (h *ReconciliationHandler) Suggestions(c *gin.Context) {
	id, ok := idParam(c, "transaction_id")
	if !ok {
		return
	}
	suggestions, err := h.reconciliationService.SuggestMatches(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

// @Summary Reconcile Transaction
// @Description Link the transaction to a ledger entry; a null entry marks it ignored
// @Tags Reconciliation
// @Accept json
// @Produce json
// @Param transaction_id path int true "Transaction ID"
// @Param request body ReconcileRequest true "Target entry"
// @Success 200 {object} models.BankReconciliation
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /transactions/{transaction_id}/reconcile [post]
func (h *ReconciliationHandler) Reconcile(c *gin.Context) {
	id, ok := idParam(c, "transaction_id")
	if !ok {
		return
	}
	var req ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidInput(c, "corpo_invalido", err.Error())
		return
	}

	rec, err := h.reconciliationService.ReconcileManual(c.Request.Context(), actorFrom(c), id, req.LedgerEntryID, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reconciliation": rec})
}

func (h *ReconciliationHandler) Unreconcile(c *gin.Context) {
	id, ok := idParam(c, "transaction_id")
	if !ok {
		return
	}
	if err := h.reconciliationService.Unreconcile(c.Request.Context(), actorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Conciliação desfeita"})
}

func (h *ReconciliationHandler) Ignore(c *gin.Context) {
	id, ok := idParam(c, "transaction_id")
	if !ok {
		return
	}
	var req IgnoreRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, "corpo_invalido", err.Error())
			return
		}
	}

	rec, err := h.reconciliationService.IgnoreTransaction(c.Request.Context(), actorFrom(c), id, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reconciliation": rec})
}

// @Summary Auto Reconcile
// @Description Link pending transactions whose top suggestion is unambiguous and above the threshold
// @Tags Reconciliation
// @Produce json
// @Param bank_account_id query int false "Bank account"
// @Success 200 {object} services.AutoReconcileResult
// @Security BearerAuth
// @Router /transactions/auto_reconcile [post]
func (h *ReconciliationHandler) Auto(c *gin.Context) {
	account, ok := optionalUintQuery(c, "bank_account_id")
	if !ok {
		return
	}
	result, err := h.reconciliationService.AutoReconcile(c.Request.Context(), actorFrom(c), account)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
