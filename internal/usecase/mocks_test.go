//go:build !integration

package usecase_test

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"rahala-payments/internal/domain"
	"rahala-payments/internal/domain/model"
	"rahala-payments/internal/domain/ports/adapter"
	"rahala-payments/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	return &l
}

// memPaymentRepo is a small in-memory implementation used by unit tests.
type memPaymentRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Payment
	audit map[string]*model.PaymentAuditRecord

	SaveFunc func(ctx context.Context, tx repository.Tx, p *model.Payment) error
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{
		store: make(map[string]*model.Payment),
		audit: make(map[string]*model.PaymentAuditRecord),
	}
}

func (m *memPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, tx, p); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *memPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.OrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Payment
	for _, p := range m.store {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPaymentRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, transactionID *string, completedAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return false, nil
	}
	if p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	if transactionID != nil {
		p.TransactionID = *transactionID
	}
	p.CompletedAt = completedAt
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *memPaymentRepo) AttachGatewayOrder(ctx context.Context, tx repository.Tx, id, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.OrderID = orderID
	return nil
}

func (m *memPaymentRepo) AttachPaymentToken(ctx context.Context, tx repository.Tx, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.PaymentToken = token
	return nil
}

func (m *memPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Payment
	for _, p := range m.store {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPaymentRepo) UpsertAuditRecord(ctx context.Context, tx repository.Tx, rec *model.PaymentAuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.audit[rec.PaymentID] = &cp
	return nil
}

func (m *memPaymentRepo) FindAuditRecord(ctx context.Context, tx repository.Tx, paymentID string) (*model.PaymentAuditRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.audit[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

type memUserRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.User
	saveErr error // used by tests to simulate save failures
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{store: make(map[string]*model.User)}
}

func (m *memUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.ID] = &cp
	return nil
}

func (m *memUserRepo) SetSubscription(ctx context.Context, tx repository.Tx, userID string, tier model.SubscriptionTier, start, end *time.Time) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.SubscriptionPlan = tier
	u.SubscriptionStartDate = start
	u.SubscriptionEndDate = end
	return nil
}

func (m *memUserRepo) ListExpiredSubscribers(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.User
	for _, u := range m.store {
		if u.SubscriptionPlan != model.TierFree && u.SubscriptionPlan != "" &&
			u.SubscriptionEndDate != nil && u.SubscriptionEndDate.Before(cutoff) {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memSubPlanRepo struct {
	mu    sync.RWMutex
	store map[string]*model.SubscriptionPlan
}

func newMemSubPlanRepo() *memSubPlanRepo {
	return &memSubPlanRepo{store: make(map[string]*model.SubscriptionPlan)}
}

func (m *memSubPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memSubPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.SubscriptionPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.SubscriptionPlan
	for _, p := range m.store {
		if p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSubPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.SubscriptionPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

type memPromoPlanRepo struct {
	mu    sync.RWMutex
	store map[string]*model.PromotionPlan
}

func newMemPromoPlanRepo() *memPromoPlanRepo {
	return &memPromoPlanRepo{store: make(map[string]*model.PromotionPlan)}
}

func (m *memPromoPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PromotionPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPromoPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.PromotionPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PromotionPlan
	for _, p := range m.store {
		if p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPromoPlanRepo) Save(ctx context.Context, tx repository.Tx, p *model.PromotionPlan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

type memPromotionRepo struct {
	mu          sync.RWMutex
	requests    map[string]*model.PromotionRequest
	active      map[string]*model.ActivePromotion
	commissions map[string]*model.PromotionCommission // by request id
}

func newMemPromotionRepo() *memPromotionRepo {
	return &memPromotionRepo{
		requests:    make(map[string]*model.PromotionRequest),
		active:      make(map[string]*model.ActivePromotion),
		commissions: make(map[string]*model.PromotionCommission),
	}
}

func (m *memPromotionRepo) SaveRequest(ctx context.Context, tx repository.Tx, r *model.PromotionRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *memPromotionRepo) FindRequestByID(ctx context.Context, tx repository.Tx, id string) (*model.PromotionRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memPromotionRepo) FindRequestByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.PromotionRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.requests {
		if r.PaymentID != nil && *r.PaymentID == paymentID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPromotionRepo) HasOpenRequest(ctx context.Context, tx repository.Tx, sponsorID, tripID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.requests {
		if r.SponsorID == sponsorID && r.TripID == tripID {
			switch r.Status {
			case model.PromotionStatusPending, model.PromotionStatusApproved, model.PromotionStatusActive:
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *memPromotionRepo) ListActiveExpiredBefore(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.PromotionRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PromotionRequest
	for _, r := range m.requests {
		if r.Status == model.PromotionStatusActive && r.EndDate != nil && r.EndDate.Before(cutoff) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPromotionRepo) SaveActivePromotion(ctx context.Context, tx repository.Tx, ap *model.ActivePromotion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ap
	m.active[ap.RequestID] = &cp
	return nil
}

func (m *memPromotionRepo) DeleteActivePromotion(ctx context.Context, tx repository.Tx, requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, requestID)
	return nil
}

func (m *memPromotionRepo) ListActivePromotions(ctx context.Context, tx repository.Tx, limit int) ([]*model.ActivePromotion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.ActivePromotion
	for _, ap := range m.active {
		cp := *ap
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memPromotionRepo) SaveCommission(ctx context.Context, tx repository.Tx, c *model.PromotionCommission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.commissions[c.RequestID] = &cp
	return nil
}

func (m *memPromotionRepo) FindCommissionByRequestID(ctx context.Context, tx repository.Tx, requestID string) (*model.PromotionCommission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.commissions[requestID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memPromotionRepo) ListCommissionsByOwner(ctx context.Context, tx repository.Tx, ownerID string) ([]*model.PromotionCommission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PromotionCommission
	for _, c := range m.commissions {
		if c.OwnerID == ownerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// mockGateway returns canned values and records calls.
type mockGateway struct {
	mu sync.Mutex

	orderID string
	token   string

	createOrderErr error
	paymentKeyErr  error
	inquireResult  *adapter.InquiryResult
	inquireErr     error

	createOrderCalls int
	inquireCalls     int
}

func newMockGateway() *mockGateway {
	return &mockGateway{orderID: "order-1", token: "token-1"}
}

func (g *mockGateway) Authenticate(ctx context.Context) (string, error) { return "auth-token", nil }

func (g *mockGateway) CreateOrder(ctx context.Context, amount float64, currency string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createOrderCalls++
	if g.createOrderErr != nil {
		return "", g.createOrderErr
	}
	return g.orderID, nil
}

func (g *mockGateway) CreatePaymentKey(ctx context.Context, orderID string, amount float64, billing adapter.BillingDetails, currency string) (string, error) {
	if g.paymentKeyErr != nil {
		return "", g.paymentKeyErr
	}
	return g.token, nil
}

func (g *mockGateway) Inquire(ctx context.Context, transactionID string) (*adapter.InquiryResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inquireCalls++
	return g.inquireResult, g.inquireErr
}

func (g *mockGateway) CheckoutURL(paymentToken string) string {
	return "https://accept.paymob.com/api/acceptance/iframes/1?payment_token=" + paymentToken
}

// mockActivator records activations and can be told to fail.
type mockActivator struct {
	mu       sync.Mutex
	calls    []*model.Payment
	failWith error
}

func (a *mockActivator) Activate(ctx context.Context, p *model.Payment) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failWith != nil {
		return a.failWith
	}
	cp := *p
	a.calls = append(a.calls, &cp)
	return nil
}

func (a *mockActivator) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

// mockNotifier records dispatched events.
type mockNotifier struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (n *mockNotifier) Notify(ctx context.Context, recipientID, eventType string, payload map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, eventType)
	return nil
}

// mockTxManager runs the function without a real transaction.
type mockTxManager struct{}

func (m *mockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}
