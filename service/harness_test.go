package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"surajya/clock"
	"surajya/ledger"
	"surajya/metrics"
	"surajya/models"
	"surajya/repository"
	"surajya/testutil"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// fakeLedger is a MemoryLedger with injectable failures and an optional gate
// that holds ResolveGrievance until released.
type fakeLedger struct {
	*ledger.MemoryLedger

	mu           sync.Mutex
	createErr    error
	resolveErr   error
	resolveCalls int
	entered      chan struct{}
	gate         chan struct{}
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{MemoryLedger: ledger.NewMemoryLedger()}
}

func (f *fakeLedger) CreateGrievance(ctx context.Context, category, locationHash, descriptionHash string) (string, error) {
	f.mu.Lock()
	err := f.createErr
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	return f.MemoryLedger.CreateGrievance(ctx, category, locationHash, descriptionHash)
}

func (f *fakeLedger) ResolveGrievance(ctx context.Context, ledgerID string) (*ledger.Receipt, error) {
	f.mu.Lock()
	f.resolveCalls++
	err, entered, gate := f.resolveErr, f.entered, f.gate
	f.mu.Unlock()
	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return f.MemoryLedger.ResolveGrievance(ctx, ledgerID)
}

func (f *fakeLedger) setResolveErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveErr = err
}

func (f *fakeLedger) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolveCalls
}

// fakeSender records every code it is asked to send.
type fakeSender struct {
	mu    sync.Mutex
	codes []string
	err   error
}

func (f *fakeSender) SendOTP(ctx context.Context, email, code, grievanceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = append(f.codes, code)
	return f.err
}

func (f *fakeSender) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.codes) == 0 {
		return ""
	}
	return f.codes[len(f.codes)-1]
}

// faultyStore wraps the real repository and injects store failures.
type faultyStore struct {
	*repository.GrievanceRepository

	mu         sync.Mutex
	insertErr  error
	resolveErr error
	updateErrs map[string]error
}

func (s *faultyStore) Insert(ctx context.Context, g *models.Grievance) error {
	s.mu.Lock()
	err := s.insertErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.GrievanceRepository.Insert(ctx, g)
}

func (s *faultyStore) ConditionalUpdate(ctx context.Context, id string, expected, updates repository.Fields) error {
	s.mu.Lock()
	resolveErr, updateErr := s.resolveErr, s.updateErrs[id]
	s.mu.Unlock()
	if updateErr != nil {
		return updateErr
	}
	if resolveErr != nil && updates["status"] == models.StatusResolved {
		return resolveErr
	}
	return s.GrievanceRepository.ConditionalUpdate(ctx, id, expected, updates)
}

func (s *faultyStore) set(fn func(s *faultyStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

type harness struct {
	clock      *clock.FakeClock
	repo       *repository.GrievanceRepository
	store      *faultyStore
	rules      *repository.PriorityRuleRepository
	recon      *repository.ReconciliationRepository
	audit      *repository.AuditRepository
	ledger     *fakeLedger
	sender     *fakeSender
	metrics    *metrics.Metrics
	escalation *EscalationService
	resolution *ResolutionService
	svc        *GrievanceService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.OpenSQLite(t)
	h := &harness{
		clock:   clock.Fake(t0),
		repo:    repository.NewGrievanceRepository(db),
		recon:   repository.NewReconciliationRepository(db),
		audit:   repository.NewAuditRepository(db),
		ledger:  newFakeLedger(),
		sender:  &fakeSender{},
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	h.store = &faultyStore{GrievanceRepository: h.repo, updateErrs: map[string]error{}}
	h.rules = repository.NewPriorityRuleRepository(db, h.clock)
	h.escalation = NewEscalationService(h.store, h.audit, h.metrics, h.clock, DefaultEscalationConfig())
	h.resolution = NewResolutionService(h.store, h.ledger, h.sender, h.recon, h.audit, h.metrics, h.clock, ResolutionConfig{
		OTPTTL:     15 * time.Minute,
		Lease:      2 * time.Minute,
		BcryptCost: bcrypt.MinCost,
	})
	h.svc = NewGrievanceService(h.store, h.rules, h.recon, h.audit, h.ledger, h.escalation, h.resolution, h.metrics, h.clock)
	return h
}

func validRequest(category string) *models.CreateGrievanceRequest {
	location := "Ward 12, Main Road"
	return &models.CreateGrievanceRequest{
		Category:      category,
		Description:   "Street light not working for a week",
		Location:      &location,
		ContactNumber: "9876543210",
		Email:         "citizen@example.com",
	}
}

// create files a grievance at the current fake time.
func (h *harness) create(t *testing.T, category string) *models.Grievance {
	t.Helper()
	g, err := h.svc.Create(context.Background(), validRequest(category), "citizen-1")
	require.NoError(t, err)
	return g
}

func (h *harness) setRule(t *testing.T, category string, base int) {
	t.Helper()
	require.NoError(t, h.rules.UpsertRule(context.Background(), &models.PriorityRule{Category: category, BasePriority: base}))
}

func (h *harness) get(t *testing.T, id string) *models.Grievance {
	t.Helper()
	g, err := h.repo.Get(context.Background(), id)
	require.NoError(t, err)
	return g
}

// issue begins resolution and returns the code the citizen received.
func (h *harness) issue(t *testing.T, id string) string {
	t.Helper()
	_, err := h.svc.BeginResolution(context.Background(), id)
	require.NoError(t, err)
	code := h.sender.last()
	require.Len(t, code, 6)
	return code
}

func wrongCode(code string) string {
	n, _ := strconv.Atoi(code)
	return fmt.Sprintf("%06d", (n+1)%1000000)
}
