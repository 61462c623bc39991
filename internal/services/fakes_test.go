package services

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/juridico/conciliacao-api/internal/config"
	"github.com/juridico/conciliacao-api/internal/lock"
	"github.com/juridico/conciliacao-api/internal/matching"
	"github.com/juridico/conciliacao-api/internal/models"
	"github.com/juridico/conciliacao-api/internal/repository"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory database enforcing the same unique constraints as the migrations
type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex
	seq  uint

	entries      map[uint]models.LedgerEntry
	obligations  map[uint]models.Obligation
	installments map[uint]models.Installment
	transactions map[uint]models.ImportedTransaction
	recs         map[uint]models.BankReconciliation
	alerts       map[uint]models.Alert
	audits       []models.AuditLog

	entryCreates int
}

func newMemStore() *memStore {
	return &memStore{
		entries:      map[uint]models.LedgerEntry{},
		obligations:  map[uint]models.Obligation{},
		installments: map[uint]models.Installment{},
		transactions: map[uint]models.ImportedTransaction{},
		recs:         map[uint]models.BankReconciliation{},
		alerts:       map[uint]models.Alert{},
	}
}

func (s *memStore) nextID() uint {
	s.seq++
	return s.seq
}

type memSnapshot struct {
	seq          uint
	entries      map[uint]models.LedgerEntry
	obligations  map[uint]models.Obligation
	installments map[uint]models.Installment
	transactions map[uint]models.ImportedTransaction
	recs         map[uint]models.BankReconciliation
	alerts       map[uint]models.Alert
	audits       []models.AuditLog
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return memSnapshot{
		seq:          s.seq,
		entries:      maps.Clone(s.entries),
		obligations:  maps.Clone(s.obligations),
		installments: maps.Clone(s.installments),
		transactions: maps.Clone(s.transactions),
		recs:         maps.Clone(s.recs),
		alerts:       maps.Clone(s.alerts),
		audits:       append([]models.AuditLog(nil), s.audits...),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = snap.seq
	s.entries = snap.entries
	s.obligations = snap.obligations
	s.installments = snap.installments
	s.transactions = snap.transactions
	s.recs = snap.recs
	s.alerts = snap.alerts
	s.audits = snap.audits
}

func (s *memStore) activeEntriesFor(installmentID uint) []models.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.LedgerEntry
	for _, e := range s.entries {
		if e.InstallmentID != nil && *e.InstallmentID == installmentID && e.IsActive() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) entry(id uint) models.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[id]
}

func (s *memStore) installment(id uint) models.Installment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.installments[id]
}

func (s *memStore) putEntry(e models.LedgerEntry) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == 0 {
		e.ID = s.nextID()
	}
	s.entries[e.ID] = e
	return e.ID
}

func (s *memStore) putInstallment(p models.Installment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Obligation = nil
	s.installments[p.ID] = p
}

func (s *memStore) auditActions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, a := range s.audits {
		out = append(out, a.Action)
	}
	return out
}

// fakeTransactor serializes transactions and rolls the store back on error
type fakeTransactor struct {
	store *memStore
	repos *repository.Repositories
}

func (t *fakeTransactor) Transaction(ctx context.Context, fn func(repos *repository.Repositories) error) error {
	t.store.txMu.Lock()
	defer t.store.txMu.Unlock()

	snap := t.store.snapshot()
	if err := fn(t.repos); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

// --- ledger ---

type fakeLedgerRepo struct {
	repository.LedgerRepository
	store *memStore
}

func (r *fakeLedgerRepo) FindByID(ctx context.Context, id uint) (*models.LedgerEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	e, ok := r.store.entries[id]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return &e, nil
}

func (r *fakeLedgerRepo) FindByIDs(ctx context.Context, ids []uint) ([]models.LedgerEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.LedgerEntry
	for _, id := range ids {
		if e, ok := r.store.entries[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// violatesActiveInstallment mirrors idx_lancamento_parcela_ativa
func (r *fakeLedgerRepo) violatesActiveInstallment(e *models.LedgerEntry) bool {
	if e.InstallmentID == nil || !e.IsActive() {
		return false
	}
	for _, other := range r.store.entries {
		if other.ID != e.ID && other.InstallmentID != nil && *other.InstallmentID == *e.InstallmentID && other.IsActive() {
			return true
		}
	}
	return false
}

func (r *fakeLedgerRepo) violatesRecurrence(e *models.LedgerEntry) bool {
	if e.TemplateID == nil {
		return false
	}
	for _, other := range r.store.entries {
		if other.ID != e.ID && other.TemplateID != nil && *other.TemplateID == *e.TemplateID && other.DueDate.Equal(e.DueDate) {
			return true
		}
	}
	return false
}

func (r *fakeLedgerRepo) Create(ctx context.Context, e *models.LedgerEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.violatesActiveInstallment(e) || r.violatesRecurrence(e) {
		return fmt.Errorf("%w: lancamentos", repository.ErrDuplicate)
	}
	e.ID = r.store.nextID()
	e.CreatedAt = time.Now()
	r.store.entries[e.ID] = *e
	r.store.entryCreates++
	return nil
}

func (r *fakeLedgerRepo) Update(ctx context.Context, e *models.LedgerEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.violatesActiveInstallment(e) {
		return fmt.Errorf("%w: lancamentos", repository.ErrDuplicate)
	}
	r.store.entries[e.ID] = *e
	return nil
}

func (r *fakeLedgerRepo) FindReversalOf(ctx context.Context, originalID uint) (*models.LedgerEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, e := range r.store.entries {
		if e.ReversalOfID != nil && *e.ReversalOfID == originalID {
			return &e, nil
		}
	}
	return nil, repository.ErrRecordNotFound
}

func (r *fakeLedgerRepo) FindActiveByInstallment(ctx context.Context, installmentID uint) ([]models.LedgerEntry, error) {
	return r.store.activeEntriesFor(installmentID), nil
}

func (r *fakeLedgerRepo) FindLinkedToInstallments(ctx context.Context, obligationID *uint) ([]models.LedgerEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.LedgerEntry
	for _, e := range r.store.entries {
		if e.InstallmentID == nil {
			continue
		}
		if obligationID != nil && (e.ObligationID == nil || *e.ObligationID != *obligationID) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeLedgerRepo) FindCandidates(ctx context.Context, q *repository.CandidateQuery) ([]models.LedgerEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.LedgerEntry
	for _, e := range r.store.entries {
		if e.Kind != q.Kind || !e.IsActive() {
			continue
		}
		ref := e.ReferenceDate()
		if ref.Before(q.From) || ref.After(q.To) {
			continue
		}
		taken := false
		for _, rec := range r.store.recs {
			if rec.Status == models.ReconciliationMatched && rec.LedgerEntryID != nil && *rec.LedgerEntryID == e.ID && rec.TransactionID != q.TransactionID {
				taken = true
			}
		}
		if !taken {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeLedgerRepo) FindRecurringTemplates(ctx context.Context) ([]models.LedgerEntry, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.LedgerEntry
	for _, e := range r.store.entries {
		if e.IsRecurringTemplate() && e.IsActive() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeLedgerRepo) ExistsOccurrence(ctx context.Context, templateID uint, dueDate time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, e := range r.store.entries {
		if e.TemplateID != nil && *e.TemplateID == templateID && e.DueDate.Equal(dueDate) {
			return true, nil
		}
	}
	return false, nil
}

// --- obligations ---

type fakeObligationRepo struct {
	repository.ObligationRepository
	store *memStore
}

func (r *fakeObligationRepo) Create(ctx context.Context, o *models.Obligation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	o.ID = r.store.nextID()
	for i := range o.Installments {
		p := &o.Installments[i]
		p.ID = r.store.nextID()
		p.ObligationID = o.ID
		stored := *p
		stored.Obligation = nil
		r.store.installments[p.ID] = stored
	}
	stored := *o
	stored.Installments = nil
	r.store.obligations[o.ID] = stored
	return nil
}

func (r *fakeObligationRepo) FindByID(ctx context.Context, id uint) (*models.Obligation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	o, ok := r.store.obligations[id]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return &o, nil
}

func (r *fakeObligationRepo) FindByIDWithInstallments(ctx context.Context, id uint) (*models.Obligation, error) {
	o, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	installments, _ := r.FindInstallments(ctx, &id)
	for i := range installments {
		installments[i].Obligation = nil
	}
	o.Installments = installments
	return o, nil
}

func (r *fakeObligationRepo) withObligation(p models.Installment) *models.Installment {
	o := r.store.obligations[p.ObligationID]
	p.Obligation = &o
	return &p
}

func (r *fakeObligationRepo) FindInstallment(ctx context.Context, id uint) (*models.Installment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.installments[id]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return r.withObligation(p), nil
}

func (r *fakeObligationRepo) FindInstallmentForUpdate(ctx context.Context, id uint) (*models.Installment, error) {
	return r.FindInstallment(ctx, id)
}

func (r *fakeObligationRepo) FindInstallments(ctx context.Context, obligationID *uint) ([]models.Installment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Installment
	for _, p := range r.store.installments {
		if obligationID != nil && p.ObligationID != *obligationID {
			continue
		}
		out = append(out, *r.withObligation(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ObligationID != out[j].ObligationID {
			return out[i].ObligationID < out[j].ObligationID
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

func (r *fakeObligationRepo) FindInstallmentsByIDs(ctx context.Context, ids []uint) ([]models.Installment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Installment
	for _, id := range ids {
		if p, ok := r.store.installments[id]; ok {
			out = append(out, *r.withObligation(p))
		}
	}
	return out, nil
}

func (r *fakeObligationRepo) FindOverdueCandidates(ctx context.Context, asOf time.Time) ([]models.Installment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Installment
	for _, p := range r.store.installments {
		if p.Status == models.InstallmentStatusPending && p.DueDate.Before(asOf) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeObligationRepo) FindPendingRepasse(ctx context.Context) ([]models.Installment, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Installment
	for _, p := range r.store.installments {
		if p.RepasseStatus == models.RepassePendingDeclaration || p.RepasseStatus == models.RepassePendingTransfer {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeObligationRepo) UpdateInstallment(ctx context.Context, p *models.Installment) error {
	r.store.putInstallment(*p)
	return nil
}

func (r *fakeObligationRepo) SetInstallmentLedgerEntry(ctx context.Context, installmentID uint, ledgerEntryID *uint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.installments[installmentID]
	if !ok {
		return repository.ErrRecordNotFound
	}
	if ledgerEntryID != nil {
		id := *ledgerEntryID
		ledgerEntryID = &id
	}
	p.LedgerEntryID = ledgerEntryID
	r.store.installments[installmentID] = p
	return nil
}

// --- reconciliation ---

type fakeReconciliationRepo struct {
	repository.ReconciliationRepository
	store *memStore
}

func (r *fakeReconciliationRepo) InsertTransaction(ctx context.Context, t *models.ImportedTransaction) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, other := range r.store.transactions {
		if other.DedupHash == t.DedupHash {
			return false, nil
		}
	}
	t.ID = r.store.nextID()
	r.store.transactions[t.ID] = *t
	return true, nil
}

func (r *fakeReconciliationRepo) FindTransaction(ctx context.Context, id uint) (*models.ImportedTransaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.transactions[id]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	for _, rec := range r.store.recs {
		if rec.TransactionID == id {
			rec := rec
			t.Reconciliation = &rec
		}
	}
	return &t, nil
}

func (r *fakeReconciliationRepo) ListPendingTransactions(ctx context.Context, bankAccountID *uint) ([]models.ImportedTransaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.ImportedTransaction
	for _, rec := range r.store.recs {
		if rec.Status != models.ReconciliationPending {
			continue
		}
		t := r.store.transactions[rec.TransactionID]
		if bankAccountID != nil && t.BankAccountID != *bankAccountID {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeReconciliationRepo) FindByTransaction(ctx context.Context, transactionID uint) (*models.BankReconciliation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, rec := range r.store.recs {
		if rec.TransactionID == transactionID {
			return &rec, nil
		}
	}
	return nil, repository.ErrRecordNotFound
}

func (r *fakeReconciliationRepo) FindMatchedByEntry(ctx context.Context, ledgerEntryID uint) (*models.BankReconciliation, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, rec := range r.store.recs {
		if rec.Status == models.ReconciliationMatched && rec.LedgerEntryID != nil && *rec.LedgerEntryID == ledgerEntryID {
			return &rec, nil
		}
	}
	return nil, repository.ErrRecordNotFound
}

// violates mirrors the transaction_id unique index and idx_conciliacao_lancamento_ativo
func (r *fakeReconciliationRepo) violates(rec *models.BankReconciliation) bool {
	for _, other := range r.store.recs {
		if other.ID == rec.ID {
			continue
		}
		if other.TransactionID == rec.TransactionID {
			return true
		}
		if rec.Status == models.ReconciliationMatched && other.Status == models.ReconciliationMatched &&
			rec.LedgerEntryID != nil && other.LedgerEntryID != nil && *rec.LedgerEntryID == *other.LedgerEntryID {
			return true
		}
	}
	return false
}

func (r *fakeReconciliationRepo) Create(ctx context.Context, rec *models.BankReconciliation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.violates(rec) {
		return fmt.Errorf("%w: conciliacoes_bancarias", repository.ErrDuplicate)
	}
	rec.ID = r.store.nextID()
	r.store.recs[rec.ID] = *rec
	return nil
}

func (r *fakeReconciliationRepo) Save(ctx context.Context, rec *models.BankReconciliation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.violates(rec) {
		return fmt.Errorf("%w: conciliacoes_bancarias", repository.ErrDuplicate)
	}
	r.store.recs[rec.ID] = *rec
	return nil
}

// --- audit and alerts ---

type fakeAuditRepo struct {
	repository.AuditRepository
	store *memStore
}

func (r *fakeAuditRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	entry.ID = r.store.nextID()
	r.store.audits = append(r.store.audits, *entry)
	return nil
}

type fakeAlertRepo struct {
	repository.AlertRepository
	store *memStore
}

func (r *fakeAlertRepo) CreateIfAbsent(ctx context.Context, alert *models.Alert) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, a := range r.store.alerts {
		if a.Fingerprint == alert.Fingerprint {
			return false, nil
		}
	}
	alert.ID = r.store.nextID()
	r.store.alerts[alert.ID] = *alert
	return true, nil
}

// --- environment ---

type testEnv struct {
	store          *memStore
	repos          *repository.Repositories
	tx             *fakeTransactor
	ledger         *LedgerService
	sync           *SyncService
	obligations    *ObligationService
	consistency    *ConsistencyService
	repasse        *RepasseService
	reconciliation *ReconciliationService
	alerts         *AlertService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newMemStore()
	repos := &repository.Repositories{
		Ledger:         &fakeLedgerRepo{store: store},
		Obligation:     &fakeObligationRepo{store: store},
		Reconciliation: &fakeReconciliationRepo{store: store},
		Audit:          &fakeAuditRepo{store: store},
		Alert:          &fakeAlertRepo{store: store},
	}
	tx := &fakeTransactor{store: store, repos: repos}
	locker := lock.NewLocalLocker()
	audit := NewAuditService(repos.Audit)

	syncSvc := NewSyncService(repos, tx, locker, audit, 4)
	return &testEnv{
		store:       store,
		repos:       repos,
		tx:          tx,
		ledger:      NewLedgerService(repos, tx, locker, audit),
		sync:        syncSvc,
		obligations: NewObligationService(repos, tx, locker, syncSvc, audit),
		consistency: NewConsistencyService(repos, syncSvc, decimal.Zero),
		repasse:     NewRepasseService(repos, tx, locker, nil, audit),
		reconciliation: NewReconciliationService(repos, tx, locker, matching.NewScorer(config.DefaultMatcherConfig()), audit, ReconciliationOptions{
			Tolerance: decimal.Zero,
			Threshold: 95,
			Workers:   4,
		}),
		alerts: NewAlertService(repos.Alert),
	}
}

var testActor = Actor{OperatorID: 7, IP: "127.0.0.1", UserAgent: "go-test"}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func uintPtr(v uint) *uint { return &v }

func strPtr(v string) *string { return &v }

// registerSettlement creates a receivable obligation with a client, a bank account and
// n installments of 10000 principal and 500 statutory fee at 20% contractual fee
func (e *testEnv) registerSettlement(t *testing.T, n int) *models.Obligation {
	t.Helper()

	input := RegisterObligationInput{
		Direction:             models.DirectionReceivable,
		Description:           "Acordo trabalhista Silva x Alfa",
		ClientID:              uintPtr(11),
		CaseID:                uintPtr(21),
		CounterpartyName:      "Alfa Ltda",
		ContractualFeePercent: dec("0.20"),
		BankAccountID:         uintPtr(3),
		PaymentMethod:         strPtr("pix"),
	}
	for i := 1; i <= n; i++ {
		input.Installments = append(input.Installments, InstallmentInput{
			Number:       i,
			GrossAmount:  dec("10000"),
			StatutoryFee: dec("500"),
			DueDate:      date(2025, time.Month(i), 10),
		})
	}

	o, err := e.obligations.RegisterObligation(context.Background(), testActor, input)
	if err != nil {
		t.Fatalf("register obligation: %v", err)
	}
	return o
}
