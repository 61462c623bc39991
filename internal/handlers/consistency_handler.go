package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/juridico/conciliacao-api/internal/services"
)

type ConsistencyHandler struct {
	consistencyService *services.ConsistencyService
	alertService       *services.AlertService
}

func NewConsistencyHandler(consistencyService *services.ConsistencyService, alertService *services.AlertService) *ConsistencyHandler {
	return &ConsistencyHandler{consistencyService: consistencyService, alertService: alertService}
}

// @Summary Check Consistency
// @Description Compare installments with their ledger entries. Read-only.
// @Tags Consistency
// @Produce json
// @Param obligation_id query int false "Restrict to one obligation"
// @Success 200 {object} models.ConsistencyReport
// @Security BearerAuth
// @Router /consistency [get]
func (h *ConsistencyHandler) Check(c *gin.Context) {
	obligationID, ok := optionalUintQuery(c, "obligation_id")
	if !ok {
		return
	}
	report, err := h.consistencyService.CheckConsistency(c.Request.Context(), obligationID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report, "consistent": report.IsConsistent()})
}

// @Summary Repair Inconsistencies
// @Description Force a re-sync of every installment with a repairable finding
// @Tags Consistency
// @Produce json
// @Param obligation_id query int false "Restrict to one obligation"
// @Success 200 {object} services.RepairResult
// @Security BearerAuth
// @Router /consistency/repair [post]
func (h *ConsistencyHandler) Repair(c *gin.Context) {
	obligationID, ok := optionalUintQuery(c, "obligation_id")
	if !ok {
		return
	}
	result, err := h.consistencyService.RepairInconsistencies(c.Request.Context(), actorFrom(c), obligationID)
	if err != nil {
		respondError(c, err)
		return
	}
	if result.Sync != nil {
		h.alertService.RaiseSyncFailures(c.Request.Context(), result.Sync)
	}
	c.JSON(http.StatusOK, result)
}
