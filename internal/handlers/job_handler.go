package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/juridico/conciliacao-api/internal/services"
)

type JobHandler struct {
	jobService *services.JobService
}

func NewJobHandler(jobSvc *services.JobService) *JobHandler {
	return &JobHandler{
		jobService: jobSvc,
	}
}

// Status returns the current worker status
// @Summary Get background job status
// @Description Get statistics about background jobs (active, completed, failed, queue length)
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /jobs/status [get]
func (h *JobHandler) Status(c *gin.Context) {
	status := h.jobService.GetStatus()
	c.JSON(http.StatusOK, status)
}

// Trigger queues a registered job for immediate execution
// @Summary Trigger background job
// @Tags Jobs
// @Produce json
// @Param name path string true "Job name"
// @Security BearerAuth
// @Success 202 {object} map[string]string
// @Router /jobs/{name}/run [post]
func (h *JobHandler) Trigger(c *gin.Context) {
	name := c.Param("name")
	if err := h.jobService.Trigger(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": services.CodeNotFound})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Job enfileirado", "job": name})
}
