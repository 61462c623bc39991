package services

import (
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/juridico/conciliacao-api/internal/lock"
	"github.com/juridico/conciliacao-api/internal/models"
	"github.com/juridico/conciliacao-api/internal/repository"
	"github.com/juridico/conciliacao-api/internal/statemachine"
	"github.com/juridico/conciliacao-api/internal/storage"
)

// Document kinds accepted by UploadDocument
const (
	DocumentDeclaration   = "declaracao"
	DocumentTransferProof = "comprovante"
	DocumentAttachment    = "anexo"
)

var documentDirs = map[string]string{
	DocumentDeclaration:   "declaracoes",
	DocumentTransferProof: "comprovantes",
	DocumentAttachment:    "anexos",
}

// RepasseService gates the client-payout documents of received installments
type RepasseService struct {
	repos   *repository.Repositories
	tx      repository.Transactor
	locker  lock.Locker
	storage storage.Storage
	audit   *AuditService
}

// NewRepasseService creates a new repasse service
func NewRepasseService(repos *repository.Repositories, tx repository.Transactor, locker lock.Locker, store storage.Storage, audit *AuditService) *RepasseService {
	return &RepasseService{repos: repos, tx: tx, locker: locker, storage: store, audit: audit}
}

// UploadedDocument describes a stored document
type UploadedDocument struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// UploadDocument stores a declaration, transfer proof or attachment and returns its URL
func (s *RepasseService) UploadDocument(ctx context.Context, kind string, r io.Reader, size int64, filename, contentType string) (*UploadedDocument, error) {
	dir, ok := documentDirs[kind]
	if !ok {
		return nil, ruleError("tipo_documento", "tipo de documento inválido: %s", kind)
	}
	if !storage.IsValidContentType(contentType) {
		return nil, ruleError("formato_documento", "formato não permitido: %s (use PDF, JPEG ou PNG)", contentType)
	}
	if size <= 0 {
		return nil, ruleError("documento_vazio", "o arquivo está vazio")
	}
	if size > storage.MaxFileSize() {
		return nil, ruleError("documento_muito_grande", "o arquivo excede o limite de 10MB")
	}

	docURL, err := s.storage.Upload(ctx, r, size, filename, contentType, dir)
	if err != nil {
		return nil, translate(err, "documento")
	}
	return &UploadedDocument{URL: docURL, Name: filename, ContentType: contentType, Size: size}, nil
}

// validateDocumentURL accepts absolute http(s)/s3 URLs and server-relative paths
func validateDocumentURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ruleError("url_documento_obrigatoria", "a URL do documento é obrigatória")
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return "", ruleError("url_documento_invalida", "URL do documento inválida: %s", raw)
	}
	if u.Scheme != "" {
		switch u.Scheme {
		case "http", "https", "s3":
		default:
			return "", ruleError("url_documento_invalida", "esquema de URL não suportado: %s", u.Scheme)
		}
		if u.Host == "" {
			return "", ruleError("url_documento_invalida", "URL do documento sem host: %s", raw)
		}
	}
	return raw, nil
}

// RegisterDeclaration registers the declaration-of-accounts document.
// Rejected unless the installment is recebida and awaiting its declaration.
func (s *RepasseService) RegisterDeclaration(ctx context.Context, actor Actor, installmentID uint, documentURL string) (*models.Installment, error) {
	docURL, err := validateDocumentURL(documentURL)
	if err != nil {
		return nil, err
	}

	applied := false
	installment, err := s.mutate(ctx, installmentID, func(ctx context.Context, p *models.Installment) (bool, error) {
		// retried call with the same document
		if p.DeclarationURL != nil && *p.DeclarationURL == docURL && p.RepasseStatus != models.RepassePendingDeclaration {
			return false, nil
		}
		if err := statemachine.NewRepasseFSM(p).Declare(ctx, docURL); err != nil {
			return false, err
		}
		applied = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if applied {
		s.audit.Record(ctx, actor, models.AuditActionRepasse, models.AuditEntityInstallment, installmentID, map[string]any{
			"step": "declaracao", "url": docURL,
		})
	}
	return installment, nil
}

// RegisterTransferProof registers the transfer proof and the repasse date.
// Rejected unless the declaration step already completed.
func (s *RepasseService) RegisterTransferProof(ctx context.Context, actor Actor, installmentID uint, documentURL string, repasseDate time.Time) (*models.Installment, error) {
	docURL, err := validateDocumentURL(documentURL)
	if err != nil {
		return nil, err
	}
	if repasseDate.IsZero() {
		return nil, ruleError("data_repasse_obrigatoria", "a data do repasse é obrigatória")
	}

	applied := false
	installment, err := s.mutate(ctx, installmentID, func(ctx context.Context, p *models.Installment) (bool, error) {
		if p.RepasseStatus == models.RepasseTransferred && p.TransferProofURL != nil && *p.TransferProofURL == docURL {
			return false, nil
		}
		if err := statemachine.NewRepasseFSM(p).RegisterTransfer(ctx, docURL, repasseDate); err != nil {
			return false, err
		}
		applied = true
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if applied {
		s.audit.Record(ctx, actor, models.AuditActionRepasse, models.AuditEntityInstallment, installmentID, map[string]any{
			"step": "transferencia", "url": docURL, "repasse_date": repasseDate,
		})
	}
	return installment, nil
}

// ListPendingRepasse lists received installments whose payout was not transferred yet
func (s *RepasseService) ListPendingRepasse(ctx context.Context) ([]models.Installment, error) {
	installments, err := s.repos.Obligation.FindPendingRepasse(ctx)
	if err != nil {
		return nil, translate(err, "parcelas")
	}
	return installments, nil
}

func (s *RepasseService) mutate(ctx context.Context, id uint, fn func(ctx context.Context, p *models.Installment) (bool, error)) (*models.Installment, error) {
	var result *models.Installment
	err := s.locker.WithLock(ctx, lock.Key("parcela", id), func(ctx context.Context) error {
		return s.tx.Transaction(ctx, func(repos *repository.Repositories) error {
			installment, err := repos.Obligation.FindInstallmentForUpdate(ctx, id)
			if err != nil {
				return err
			}
			changed, err := fn(ctx, installment)
			if err != nil {
				return err
			}
			if changed {
				if err := repos.Obligation.UpdateInstallment(ctx, installment); err != nil {
					return err
				}
			}
			result = installment
			return nil
		})
	})
	if err != nil {
		return nil, translate(err, "parcela")
	}
	return result, nil
}
