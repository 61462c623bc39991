package services

import (
	"context"
	"strings"
	"testing"

	"github.com/juridico/conciliacao-api/internal/models"
	"github.com/juridico/conciliacao-api/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receivedInstallment(t *testing.T, env *testEnv) uint {
	t.Helper()
	o := env.registerSettlement(t, 1)
	id := o.Installments[0].ID
	_, err := env.obligations.RegisterInstallmentPayment(context.Background(), testActor, id, date(2025, 1, 10))
	require.NoError(t, err)
	return id
}

func TestRepasse_FullFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := receivedInstallment(t, env)

	pending, err := env.repasse.ListPendingRepasse(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	p, err := env.repasse.RegisterDeclaration(ctx, testActor, id, "/files/declaracoes/2025/01/decl.pdf")
	require.NoError(t, err)
	assert.Equal(t, models.RepassePendingTransfer, p.RepasseStatus)

	// retry with the same document
	p, err = env.repasse.RegisterDeclaration(ctx, testActor, id, "/files/declaracoes/2025/01/decl.pdf")
	require.NoError(t, err)
	assert.Equal(t, models.RepassePendingTransfer, p.RepasseStatus)

	p, err = env.repasse.RegisterTransferProof(ctx, testActor, id, "https://docs.example.com/comprovante.pdf", date(2025, 1, 15))
	require.NoError(t, err)
	assert.Equal(t, models.RepasseTransferred, p.RepasseStatus)
	require.NotNil(t, p.RepasseDate)
	assert.Equal(t, date(2025, 1, 15), *p.RepasseDate)

	_, err = env.repasse.RegisterTransferProof(ctx, testActor, id, "https://docs.example.com/comprovante.pdf", date(2025, 1, 15))
	assert.NoError(t, err)

	pending, err = env.repasse.ListPendingRepasse(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	repasseAudits := 0
	for _, a := range env.store.auditActions() {
		if a == models.AuditActionRepasse {
			repasseAudits++
		}
	}
	assert.Equal(t, 2, repasseAudits)
}

func TestRepasse_TransferBeforeDeclarationIsRejected(t *testing.T) {
	env := newTestEnv(t)
	id := receivedInstallment(t, env)
	before := env.store.installment(id)

	_, err := env.repasse.RegisterTransferProof(context.Background(), testActor, id, "/files/comprovantes/c.pdf", date(2025, 1, 15))
	require.Error(t, err)
	assert.Equal(t, CodeValidation, Code(err))
	assert.ErrorIs(t, err, ErrInvalidState)

	after := env.store.installment(id)
	assert.Equal(t, before.RepasseStatus, after.RepasseStatus)
	assert.Nil(t, after.TransferProofURL)
	assert.Nil(t, after.RepasseDate)
}

func TestRepasse_DeclarationRequiresReceivedInstallment(t *testing.T) {
	env := newTestEnv(t)
	o := env.registerSettlement(t, 1)

	_, err := env.repasse.RegisterDeclaration(context.Background(), testActor, o.Installments[0].ID, "/files/declaracoes/d.pdf")
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, models.RepasseNotApplicable, env.store.installment(o.Installments[0].ID).RepasseStatus)
}

func TestRepasse_TransferDateBeforePayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := receivedInstallment(t, env)

	_, err := env.repasse.RegisterDeclaration(ctx, testActor, id, "/files/declaracoes/d.pdf")
	require.NoError(t, err)

	_, err = env.repasse.RegisterTransferProof(ctx, testActor, id, "/files/comprovantes/c.pdf", date(2025, 1, 5))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, models.RepassePendingTransfer, env.store.installment(id).RepasseStatus)
}

func TestValidateDocumentURL(t *testing.T) {
	tests := []struct {
		url  string
		rule string
	}{
		{"/files/declaracoes/2025/01/a.pdf", ""},
		{"https://bucket.s3.amazonaws.com/declaracoes/a.pdf", ""},
		{"s3://bucket/declaracoes/a.pdf", ""},
		{"", "url_documento_obrigatoria"},
		{"ftp://server/a.pdf", "url_documento_invalida"},
		{"https:///sem-host.pdf", "url_documento_invalida"},
		{"not a url", "url_documento_invalida"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			_, err := validateDocumentURL(tt.url)
			if tt.rule == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.rule, Rule(err))
		})
	}
}

func TestRepasse_UploadDocument(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir(), "/files")
	require.NoError(t, err)

	env := newTestEnv(t)
	svc := NewRepasseService(env.repos, env.tx, nil, store, NewAuditService(env.repos.Audit))
	ctx := context.Background()
	body := "%PDF-1.4 declaração"

	doc, err := svc.UploadDocument(ctx, DocumentDeclaration, strings.NewReader(body), int64(len(body)), "Declaracao.PDF", "application/pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(doc.URL, "/files/declaracoes/"), doc.URL)
	assert.True(t, strings.HasSuffix(doc.URL, ".pdf"), doc.URL)
	assert.Equal(t, "Declaracao.PDF", doc.Name)

	tests := []struct {
		name        string
		kind        string
		size        int64
		contentType string
		rule        string
	}{
		{"unknown kind", "contrato", 10, "application/pdf", "tipo_documento"},
		{"bad format", DocumentTransferProof, 10, "text/plain", "formato_documento"},
		{"empty", DocumentTransferProof, 0, "image/png", "documento_vazio"},
		{"too large", DocumentAttachment, storage.MaxFileSize() + 1, "image/jpeg", "documento_muito_grande"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UploadDocument(ctx, tt.kind, strings.NewReader("x"), tt.size, "f", tt.contentType)
			assert.Equal(t, tt.rule, Rule(err))
		})
	}
}
