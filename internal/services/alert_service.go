package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/juridico/conciliacao-api/internal/models"
	"github.com/juridico/conciliacao-api/internal/repository"
	"github.com/juridico/conciliacao-api/pkg/logger"
)

// AlertService turns checker findings and job summaries into the operator alert feed.
// Alerts are deduplicated by fingerprint so a finding is raised once until it changes.
type AlertService struct {
	repo repository.AlertRepository
}

func NewAlertService(repo repository.AlertRepository) *AlertService {
	return &AlertService{repo: repo}
}

func fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func optID(id *uint) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprint(*id)
}

func (s *AlertService) raise(ctx context.Context, alert *models.Alert) bool {
	created, err := s.repo.CreateIfAbsent(ctx, alert)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to raise alert", "alert_type", alert.AlertType, "error", err)
		return false
	}
	return created
}

// RaiseInconsistencies creates one alert per new finding and returns how many were new
func (s *AlertService) RaiseInconsistencies(ctx context.Context, report *models.ConsistencyReport) int {
	created := 0
	for _, inc := range report.Inconsistencies {
		alert := &models.Alert{
			AlertType:   models.AlertTypeInconsistency,
			Severity:    inc.Severity,
			Title:       "Inconsistência: " + strings.ReplaceAll(inc.Type, "_", " "),
			Message:     inc.Description,
			Fingerprint: fingerprint(models.AlertTypeInconsistency, inc.Type, optID(inc.InstallmentID), optID(inc.LedgerEntryID), inc.Description),
		}
		if s.raise(ctx, alert) {
			created++
		}
	}
	return created
}

// RaiseOverdue summarizes a MarkOverdue run
func (s *AlertService) RaiseOverdue(ctx context.Context, summary *OverdueSummary) bool {
	if summary == nil || summary.Count == 0 {
		return false
	}
	ids := append([]uint(nil), summary.InstallmentIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return s.raise(ctx, &models.Alert{
		AlertType:   models.AlertTypeOverdue,
		Severity:    models.SeverityMedium,
		Title:       fmt.Sprintf("%d parcela(s) em atraso", summary.Count),
		Message:     fmt.Sprintf("Parcelas marcadas como atrasadas somam R$ %s", summary.TotalAmount.StringFixed(2)),
		Fingerprint: fingerprint(models.AlertTypeOverdue, fmt.Sprint(ids)),
	})
}

// RaiseSyncFailures creates an alert for each installment whose sync failed
func (s *AlertService) RaiseSyncFailures(ctx context.Context, batch *BatchResult) int {
	if batch == nil {
		return 0
	}
	created := 0
	for _, r := range batch.Results {
		if r.Status != SyncFailed {
			continue
		}
		alert := &models.Alert{
			AlertType:   models.AlertTypeSyncFailure,
			Severity:    models.SeverityHigh,
			Title:       fmt.Sprintf("Falha ao sincronizar parcela %d", r.InstallmentID),
			Message:     r.Error,
			Fingerprint: fingerprint(models.AlertTypeSyncFailure, fmt.Sprint(r.InstallmentID), r.Error),
		}
		if s.raise(ctx, alert) {
			created++
		}
	}
	return created
}

// RaisePendingRepasse reminds the team of payouts still owed to clients
func (s *AlertService) RaisePendingRepasse(ctx context.Context, installments []models.Installment) int {
	created := 0
	for i := range installments {
		p := &installments[i]
		alert := &models.Alert{
			AlertType:   models.AlertTypePendingRepasse,
			Severity:    models.SeverityLow,
			Title:       fmt.Sprintf("Repasse pendente da parcela %d", p.ID),
			Message:     fmt.Sprintf("Repasse de R$ %s aguardando %s", p.ClientPayout.StringFixed(2), strings.ReplaceAll(p.RepasseStatus, "_", " ")),
			Fingerprint: fingerprint(models.AlertTypePendingRepasse, fmt.Sprint(p.ID), p.RepasseStatus),
		}
		if s.raise(ctx, alert) {
			created++
		}
	}
	return created
}

func (s *AlertService) List(ctx context.Context, unreadOnly bool, query *repository.ListQuery) ([]models.Alert, int64, error) {
	alerts, total, err := s.repo.List(ctx, unreadOnly, query)
	if err != nil {
		return nil, 0, translate(err, "alertas")
	}
	return alerts, total, nil
}

func (s *AlertService) MarkAsRead(ctx context.Context, id uint) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return translate(err, "alerta")
	}
	return translate(s.repo.MarkAsRead(ctx, id), "alerta")
}

func (s *AlertService) CountUnread(ctx context.Context) (int64, error) {
	count, err := s.repo.CountUnread(ctx)
	if err != nil {
		return 0, translate(err, "alertas")
	}
	return count, nil
}
