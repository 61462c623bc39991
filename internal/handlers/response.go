package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/juridico/conciliacao-api/internal/middleware"
	"github.com/juridico/conciliacao-api/internal/repository"
	"github.com/juridico/conciliacao-api/internal/services"
	"github.com/juridico/conciliacao-api/pkg/logger"
)

const dateLayout = "2006-01-02"

var statusByCode = map[string]int{
	services.CodeValidation: http.StatusUnprocessableEntity,
	services.CodeConflict:   http.StatusConflict,
	services.CodeNotFound:   http.StatusNotFound,
	services.CodeDatabase:   http.StatusInternalServerError,
}

// respondError maps a service error onto the HTTP error body {"error", "code", "rule"}
func respondError(c *gin.Context, err error) {
	code := services.Code(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("Request failed", "path", c.FullPath(), "error", err)
		if hub := sentrygin.GetHubFromContext(c); hub != nil {
			hub.CaptureException(err)
		}
		_ = c.Error(err)
	}

	body := gin.H{"error": err.Error(), "code": code}
	if rule := services.Rule(err); rule != "" {
		body["rule"] = rule
	}
	c.JSON(status, body)
}

// invalidInput rejects malformed request data before it reaches a service
func invalidInput(c *gin.Context, rule, message string) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"error": message,
		"code":  services.CodeValidation,
		"rule":  rule,
	})
}

// actorFrom builds the audit actor of the current request
func actorFrom(c *gin.Context) services.Actor {
	return services.Actor{
		OperatorID: middleware.GetOperatorID(c),
		IP:         c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
	}
}

// idParam parses a numeric path parameter, answering 422 when it is not one
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		invalidInput(c, "id_invalido", "identificador inválido: "+c.Param(name))
		return 0, false
	}
	return uint(id), true
}

// optionalUintQuery reads an optional numeric query parameter
func optionalUintQuery(c *gin.Context, name string) (*uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		invalidInput(c, "parametro_invalido", "parâmetro inválido: "+name)
		return nil, false
	}
	id := uint(v)
	return &id, true
}

func boolQuery(c *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(c.DefaultQuery(name, "false"))
	return v
}

// parseDate parses a YYYY-MM-DD date
func parseDate(value string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, strings.TrimSpace(value), time.UTC)
}

// parseOptionalDate parses a nullable date; nil stays nil
func parseOptionalDate(value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	d, err := parseDate(*value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// listQueryFrom reads page, per_page, search, sort and the given filters from the query string
func listQueryFrom(c *gin.Context, filters ...string) *repository.ListQuery {
	query := repository.NewListQuery()
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if query.PerPage < 1 || query.PerPage > 200 {
		query.PerPage = 20
	}
	query.Search = c.Query("search_term")
	query.SortBy = c.Query("sort_by")
	query.SortDir = c.DefaultQuery("sort_dir", "asc")
	for _, f := range filters {
		if v := c.Query(f); v != "" {
			query.Filters[f] = v
		}
	}
	return query
}

func pagination(query *repository.ListQuery, total int64) gin.H {
	return gin.H{"total": total, "page": query.Page, "per_page": query.PerPage}
}
