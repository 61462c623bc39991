package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/juridico/conciliacao-api/internal/services"
)

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// @Summary Health Check
// @Description Checks if the API is running
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *HealthHandler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "conciliacao-api",
		"version": "1.0.0",
	})
}

type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// @Summary List Audit Logs
// @Tags Audit
// @Produce json
// @Param entity query string false "Entity"
// @Param entity_id query int false "Entity ID"
// @Param operator_id query int false "Operator ID"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /audits [get]
func (h *AuditHandler) Index(c *gin.Context) {
	query := listQueryFrom(c, "entity", "entity_id", "operator_id", "action")

	logs, total, err := h.auditService.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audits": logs, "pagination": pagination(query, total)})
}

type AlertHandler struct {
	alertService *services.AlertService
}

func NewAlertHandler(alertService *services.AlertService) *AlertHandler {
	return &AlertHandler{alertService: alertService}
}

// @Summary List Alerts
// @Description Alert feed raised by the scheduled checks
// @Tags Alerts
// @Produce json
// @Param unread query bool false "Only unread alerts"
// @Param alert_type query string false "Alert type"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /alerts [get]
func (h *AlertHandler) Index(c *gin.Context) {
	query := listQueryFrom(c, "alert_type")

	alerts, total, err := h.alertService.List(c.Request.Context(), boolQuery(c, "unread"), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "pagination": pagination(query, total)})
}

func (h *AlertHandler) UnreadCount(c *gin.Context) {
	count, err := h.alertService.CountUnread(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (h *AlertHandler) MarkAsRead(c *gin.Context) {
	id, ok := idParam(c, "alert_id")
	if !ok {
		return
	}
	if err := h.alertService.MarkAsRead(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Alerta marcado como lido"})
}
