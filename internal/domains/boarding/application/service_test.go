package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/external/gateway"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/memory"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application/types"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
	"github.com/Apurer/temporary-care-api/internal/shared/identity"
)

var (
	owner = identity.Actor{ID: "owner-1", Role: identity.RoleOwner}
	staff = identity.Actor{ID: "staff-1", Role: identity.RoleStaff}
	admin = identity.Actor{ID: "admin-1", Role: identity.RoleAdmin}
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	svc     *application.Service
	repo    *memory.Repository
	ledger  *memory.Ledger
	otps    *memory.OTPStore
	engine  *application.OTPEngine
	sandbox *gateway.Sandbox
	clock   *fakeClock
}

func newHarness(t *testing.T, opts ...application.Option) *harness {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	repo := memory.NewRepository()
	repo.WithClock(clock.Now)
	limiter := memory.NewAttemptLimiter()
	limiter.WithClock(clock.Now)
	otps := memory.NewOTPStore()
	ledger := memory.NewLedger()
	sandbox := gateway.NewSandbox("test-secret")
	engine := application.NewOTPEngine(otps, limiter,
		application.WithOTPClock(clock.Now),
		application.WithBcryptCost(bcrypt.MinCost),
	)
	base := []application.Option{
		application.WithClock(clock.Now),
		application.WithGateway(sandbox),
		application.WithIdempotencyStore(memory.NewIdempotencyStore()),
	}
	svc := application.NewService(repo, ledger, engine, append(base, opts...)...)
	return &harness{svc: svc, repo: repo, ledger: ledger, otps: otps, engine: engine, sandbox: sandbox, clock: clock}
}

func as(actor identity.Actor) context.Context {
	return identity.WithActor(context.Background(), actor)
}

func (h *harness) submit(t *testing.T) string {
	t.Helper()
	now := h.clock.Now()
	saved, err := h.svc.SubmitApplication(as(owner), types.SubmitApplicationInput{
		Pets:      []domain.PetCare{{PetRef: "pet-1"}},
		StartDate: now.Add(24 * time.Hour),
		EndDate:   now.Add(72 * time.Hour),
	})
	require.NoError(t, err)
	return saved.Entity.ID
}

// price quotes 500 per day for two days without tax: total 1000, advance 500.
func (h *harness) price(t *testing.T, id string) {
	t.Helper()
	zero := 0.0
	saved, err := h.svc.SetPricing(as(staff), types.SetPricingInput{
		ApplicationID: id,
		Rates:         []domain.PetRate{{PetRef: "pet-1", BaseRatePerDay: 500}},
		TaxPercent:    &zero,
	})
	require.NoError(t, err)
	require.Equal(t, domain.Money(1000), saved.Entity.Pricing.TotalAmount)
	require.Equal(t, domain.Money(500), saved.Entity.Pricing.AdvanceAmount)
}

func (h *harness) proof(id, orderID, paymentID string, amount domain.Money) types.RecordPaymentInput {
	return types.RecordPaymentInput{
		ApplicationID: id,
		OrderID:       orderID,
		PaymentID:     paymentID,
		Signature:     h.sandbox.Signer().Sign(orderID, paymentID),
		Amount:        amount,
	}
}

func (h *harness) payAdvance(t *testing.T, id string) {
	t.Helper()
	saved, err := h.svc.RecordAdvancePayment(as(owner), h.proof(id, "order-1", "pay-1", 500))
	require.NoError(t, err)
	require.Equal(t, domain.StatusAdvancePaid, saved.Entity.Status)
}

func (h *harness) handover(t *testing.T, id string, purpose domain.Purpose) *types.ApplicationProjection {
	t.Helper()
	issued, err := h.svc.RequestHandoverOTP(as(owner), types.HandoverOTPInput{ApplicationID: id, Purpose: string(purpose)})
	require.NoError(t, err)
	saved, err := h.svc.ConfirmHandover(as(staff), types.ConfirmHandoverInput{ApplicationID: id, Purpose: string(purpose), Code: issued.Code})
	require.NoError(t, err)
	return saved
}

// withRepository builds a second service over the harness stores with repo in
// front of the application repository.
func (h *harness) withRepository(repo ports.Repository, opts ...application.Option) *application.Service {
	base := []application.Option{
		application.WithClock(h.clock.Now),
		application.WithGateway(h.sandbox),
	}
	return application.NewService(repo, h.ledger, h.engine, append(base, opts...)...)
}

func TestFullLifecycle(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)
	h.price(t, id)
	h.payAdvance(t, id)

	approved, err := h.svc.Approve(as(staff), types.ApplicationIdentifier{ID: id})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, approved.Entity.Status)

	active := h.handover(t, id, domain.PurposeDropoff)
	assert.Equal(t, domain.StatusActiveCare, active.Entity.Status)
	assert.Equal(t, domain.Money(500), active.Entity.Pricing.RemainingAmount)

	_, err = h.svc.RequestHandoverOTP(as(owner), types.HandoverOTPInput{ApplicationID: id, Purpose: "pickup"})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	billed, err := h.svc.GenerateFinalBill(as(staff), types.FinalBillInput{ApplicationID: id})
	require.NoError(t, err)
	assert.Equal(t, domain.Money(500), billed.Entity.FinalBill.FinalAmountDue)

	_, err = h.svc.RecordFinalPayment(as(owner), h.proof(id, "order-2", "pay-2", 400))
	require.ErrorIs(t, err, domain.ErrAmountMismatch)
	paid, err := h.svc.RecordFinalPayment(as(owner), h.proof(id, "order-2", "pay-2", 500))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActiveCare, paid.Entity.Status)

	done := h.handover(t, id, domain.PurposePickup)
	assert.Equal(t, domain.StatusCompleted, done.Entity.Status)

	rated, err := h.svc.SubmitFeedback(as(owner), types.FeedbackInput{ApplicationID: id, Rating: 5})
	require.NoError(t, err)
	require.NotNil(t, rated.Entity.Feedback)

	entries, err := h.svc.ListPayments(as(owner), types.ApplicationIdentifier{ID: id})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	for _, change := range rated.Entity.History {
		assert.True(t, domain.CanTransition(change.From, change.To, change.Trigger), "%s -> %s", change.From, change.To)
	}
}

func TestSubmitRequiresOwner(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.SubmitApplication(as(staff), types.SubmitApplicationInput{})
	require.ErrorIs(t, err, application.ErrForbidden)
	_, err = h.svc.SubmitApplication(context.Background(), types.SubmitApplicationInput{})
	require.ErrorIs(t, err, application.ErrUnauthenticated)
	_, err = h.svc.SubmitApplication(as(owner), types.SubmitApplicationInput{})
	require.ErrorIs(t, err, application.ErrInvalidInput)
}

func TestSubmitIsIdempotent(t *testing.T) {
	h := newHarness(t)
	now := h.clock.Now()
	input := types.SubmitApplicationInput{
		IdempotencyKey: "key-1",
		Pets:           []domain.PetCare{{PetRef: "pet-1"}},
		StartDate:      now.Add(24 * time.Hour),
		EndDate:        now.Add(48 * time.Hour),
	}
	first, err := h.svc.SubmitApplication(as(owner), input)
	require.NoError(t, err)
	second, err := h.svc.SubmitApplication(as(owner), input)
	require.NoError(t, err)
	assert.Equal(t, first.Entity.ID, second.Entity.ID)

	input.EndDate = now.Add(96 * time.Hour)
	_, err = h.svc.SubmitApplication(as(owner), input)
	require.ErrorIs(t, err, ports.ErrIdempotencyConflict)

	all, err := h.svc.ListMine(as(owner), types.ListApplicationsInput{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestOwnersOnlySeeTheirApplications(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)
	stranger := identity.Actor{ID: "owner-2", Role: identity.RoleOwner}

	_, err := h.svc.GetApplication(as(stranger), types.ApplicationIdentifier{ID: id})
	require.ErrorIs(t, err, application.ErrForbidden)
	_, err = h.svc.GetApplication(as(staff), types.ApplicationIdentifier{ID: id})
	require.NoError(t, err)
	_, err = h.svc.ListApplications(as(owner), types.ListApplicationsInput{})
	require.ErrorIs(t, err, application.ErrForbidden)

	submitted, err := h.svc.ListApplications(as(staff), types.ListApplicationsInput{Statuses: []string{"submitted"}})
	require.NoError(t, err)
	assert.Len(t, submitted, 1)
	_, err = h.svc.ListApplications(as(staff), types.ListApplicationsInput{Statuses: []string{"bogus"}})
	require.ErrorIs(t, err, application.ErrInvalidInput)
}

func TestSetPricingTwiceFails(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)
	h.price(t, id)
	_, err := h.svc.SetPricing(as(staff), types.SetPricingInput{
		ApplicationID: id,
		Rates:         []domain.PetRate{{PetRef: "pet-1", BaseRatePerDay: 100}},
	})
	require.ErrorIs(t, err, domain.ErrPricingAlreadySet)
}

func TestAdvancePaymentIsRecordedOnce(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)
	h.price(t, id)
	h.payAdvance(t, id)

	replay, err := h.svc.RecordAdvancePayment(as(owner), h.proof(id, "order-1", "pay-1", 500))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAdvancePaid, replay.Entity.Status)

	_, err = h.svc.RecordAdvancePayment(as(owner), h.proof(id, "order-9", "pay-9", 500))
	require.ErrorIs(t, err, domain.ErrPaymentAlreadyRecorded)

	entries, err := h.ledger.ListByApplication(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, 1, h.sandbox.Confirmations())
}

func TestDeclinedPaymentLeavesNoTrace(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)
	h.price(t, id)
	h.sandbox.Decline("pay-1")

	_, err := h.svc.RecordAdvancePayment(as(owner), h.proof(id, "order-1", "pay-1", 500))
	require.ErrorIs(t, err, domain.ErrPaymentDeclined)

	bad := h.proof(id, "order-1", "pay-2", 500)
	bad.Signature = "00"
	_, err = h.svc.RecordAdvancePayment(as(owner), bad)
	require.ErrorIs(t, err, domain.ErrPaymentDeclined)

	current, err := h.svc.GetApplication(as(owner), types.ApplicationIdentifier{ID: id})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPriceDetermined, current.Entity.Status)
	entries, err := h.ledger.ListByApplication(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAdvancePaymentBeforePricing(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)
	_, err := h.svc.RecordAdvancePayment(as(owner), h.proof(id, "order-1", "pay-1", 500))
	require.Error(t, err)
	assert.Equal(t, 0, h.sandbox.Confirmations())
}

func TestCreatePaymentOrder(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)
	h.price(t, id)
	order, err := h.svc.CreatePaymentOrder(as(owner), types.CreateOrderInput{ApplicationID: id, Kind: "advance"})
	require.NoError(t, err)
	assert.Equal(t, domain.Money(500), order.Amount)
	assert.Contains(t, order.Receipt, "-ADVANCE")

	_, err = h.svc.CreatePaymentOrder(as(owner), types.CreateOrderInput{ApplicationID: id, Kind: "refund"})
	require.ErrorIs(t, err, application.ErrInvalidInput)
}

func TestHandoverOTPExpires(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)
	h.price(t, id)
	h.payAdvance(t, id)

	issued, err := h.svc.RequestHandoverOTP(as(owner), types.HandoverOTPInput{ApplicationID: id, Purpose: "dropoff"})
	require.NoError(t, err)
	assert.Len(t, issued.Code, domain.OTPDigits)

	h.clock.Advance(16 * time.Minute)
	_, err = h.svc.ConfirmHandover(as(staff), types.ConfirmHandoverInput{ApplicationID: id, Purpose: "dropoff", Code: issued.Code})
	require.ErrorIs(t, err, domain.ErrOTPExpired)
}

func TestHandoverOTPIsSingleUse(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)
	h.price(t, id)
	h.payAdvance(t, id)

	issued, err := h.svc.RequestHandoverOTP(as(owner), types.HandoverOTPInput{ApplicationID: id, Purpose: "dropoff"})
	require.NoError(t, err)
	_, err = h.svc.ConfirmHandover(as(staff), types.ConfirmHandoverInput{ApplicationID: id, Purpose: "dropoff", Code: issued.Code})
	require.NoError(t, err)
	_, err = h.svc.ConfirmHandover(as(staff), types.ConfirmHandoverInput{ApplicationID: id, Purpose: "dropoff", Code: issued.Code})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestReissuedOTPSupersedesEarlierCode(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)
	h.price(t, id)
	h.payAdvance(t, id)

	first, err := h.svc.RequestHandoverOTP(as(owner), types.HandoverOTPInput{ApplicationID: id, Purpose: "dropoff"})
	require.NoError(t, err)
	second, err := h.svc.RequestHandoverOTP(as(owner), types.HandoverOTPInput{ApplicationID: id, Purpose: "dropoff"})
	require.NoError(t, err)

	if first.Code != second.Code {
		_, err = h.svc.ConfirmHandover(as(staff), types.ConfirmHandoverInput{ApplicationID: id, Purpose: "dropoff", Code: first.Code})
		require.ErrorIs(t, err, domain.ErrOTPMismatch)
	}
	_, err = h.svc.ConfirmHandover(as(staff), types.ConfirmHandoverInput{ApplicationID: id, Purpose: "dropoff", Code: second.Code})
	require.NoError(t, err)
}

func TestHandoverLockout(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)
	h.price(t, id)
	h.payAdvance(t, id)

	issued, err := h.svc.RequestHandoverOTP(as(owner), types.HandoverOTPInput{ApplicationID: id, Purpose: "dropoff"})
	require.NoError(t, err)
	wrong := "000000"
	if issued.Code == wrong {
		wrong = "111111"
	}
	confirm := func(code string) error {
		_, err := h.svc.ConfirmHandover(as(staff), types.ConfirmHandoverInput{ApplicationID: id, Purpose: "dropoff", Code: code})
		return err
	}
	for i := 0; i < domain.MaxConsecutiveMismatches; i++ {
		require.ErrorIs(t, confirm(wrong), domain.ErrOTPMismatch)
	}

	err = confirm(issued.Code)
	var locked *domain.LockedOutError
	require.ErrorAs(t, err, &locked)
	require.ErrorIs(t, err, domain.ErrOTPLockedOut)
	assert.Equal(t, domain.LockoutWindow, locked.RetryAfter(h.clock.Now()))

	h.clock.Advance(domain.LockoutWindow)
	again, err := h.svc.RequestHandoverOTP(as(owner), types.HandoverOTPInput{ApplicationID: id, Purpose: "dropoff"})
	require.NoError(t, err)
	require.NoError(t, confirm(again.Code))
}

func TestCancelInvalidatesOTPs(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)
	h.price(t, id)
	h.payAdvance(t, id)

	_, err := h.svc.RequestHandoverOTP(as(owner), types.HandoverOTPInput{ApplicationID: id, Purpose: "dropoff"})
	require.NoError(t, err)
	cancelled, err := h.svc.Cancel(as(owner), types.CancelInput{ApplicationID: id, Reason: "travel plans changed"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Entity.Status)

	otp, err := h.otps.Latest(context.Background(), id, domain.PurposeDropoff)
	require.NoError(t, err)
	require.NotNil(t, otp.InvalidatedAt)

	refunded, err := h.svc.RefundAdvance(as(admin), types.DecisionInput{ApplicationID: id})
	require.NoError(t, err)
	require.NotNil(t, refunded.Entity.Payments.Refund)
	assert.Equal(t, domain.Money(500), refunded.Entity.Payments.Refund.Amount)

	again, err := h.svc.RefundAdvance(as(admin), types.DecisionInput{ApplicationID: id})
	require.NoError(t, err)
	assert.Equal(t, refunded.Entity.Payments.Refund.PaymentID, again.Entity.Payments.Refund.PaymentID)
}

func TestCancelAfterDropoffNeedsOverride(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)
	h.price(t, id)
	h.payAdvance(t, id)
	h.handover(t, id, domain.PurposeDropoff)

	_, err := h.svc.Cancel(as(owner), types.CancelInput{ApplicationID: id})
	require.ErrorIs(t, err, domain.ErrNotCancellable)
	_, err = h.svc.OverrideCancel(as(staff), types.DecisionInput{ApplicationID: id, Reason: "medical"})
	require.ErrorIs(t, err, application.ErrForbidden)

	overridden, err := h.svc.OverrideCancel(as(admin), types.DecisionInput{ApplicationID: id, Reason: "medical"})
	require.NoError(t, err)
	assert.True(t, overridden.Entity.Cancellation.Override)
	require.NotNil(t, overridden.Entity.CheckIn)
	require.NotNil(t, overridden.Entity.CheckIn.CompletedAt)
	assert.Equal(t, staff.ID, overridden.Entity.CheckIn.CompletedBy)
}

func TestRejectPricing(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)
	_, err := h.svc.RejectPricing(as(owner), types.ApplicationIdentifier{ID: id})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	h.price(t, id)
	saved, err := h.svc.RejectPricing(as(owner), types.ApplicationIdentifier{ID: id})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, saved.Entity.Status)
}

type conflictingRepository struct {
	*memory.Repository
	updates int
}

func (r *conflictingRepository) Update(context.Context, *domain.Application, int64) (*types.ApplicationProjection, error) {
	r.updates++
	return nil, ports.ErrVersionConflict
}

func TestConcurrentModificationIsRetried(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)

	repo := &conflictingRepository{Repository: h.repo}
	svc := application.NewService(repo, h.ledger, application.NewOTPEngine(h.otps, memory.NewAttemptLimiter()),
		application.WithMaxAttempts(4))
	_, err := svc.Reject(as(staff), types.DecisionInput{ApplicationID: id, Reason: "full"})
	require.ErrorIs(t, err, application.ErrConcurrentModification)
	assert.Equal(t, 4, repo.updates)
}

func TestRejectNeedsReason(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)
	_, err := h.svc.Reject(as(staff), types.DecisionInput{ApplicationID: id})
	require.ErrorIs(t, err, application.ErrInvalidInput)
	saved, err := h.svc.Reject(as(staff), types.DecisionInput{ApplicationID: id, Reason: "no capacity"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, saved.Entity.Status)
}

type recordingPublisher struct {
	events []domain.Event
}

func (p *recordingPublisher) Publish(_ context.Context, events ...domain.Event) error {
	p.events = append(p.events, events...)
	return nil
}

func TestEventsArePublishedAfterCommit(t *testing.T) {
	publisher := &recordingPublisher{}
	h := newHarness(t, application.WithEventPublisher(publisher))
	id := h.submit(t)
	h.price(t, id)

	var names []string
	for _, event := range publisher.events {
		names = append(names, event.EventName())
	}
	assert.Contains(t, names, "boarding.application.submitted")
	assert.Contains(t, names, "boarding.application.pricing_determined")

	current, err := h.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, current.Entity.Events())
}

// hookedGateway runs beforeConfirm while the processor is confirming, which is
// where a concurrent request can move the application.
type hookedGateway struct {
	*gateway.Sandbox
	beforeConfirm func()
}

func (g *hookedGateway) Confirm(ctx context.Context, proof domain.ProofOfPayment) (*ports.PaymentConfirmation, error) {
	if g.beforeConfirm != nil {
		hook := g.beforeConfirm
		g.beforeConfirm = nil
		hook()
	}
	return g.Sandbox.Confirm(ctx, proof)
}

func TestFinalBillChangedDuringConfirmLeavesNoEntry(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)
	h.price(t, id)
	h.payAdvance(t, id)
	h.handover(t, id, domain.PurposeDropoff)
	_, err := h.svc.GenerateFinalBill(as(staff), types.FinalBillInput{ApplicationID: id})
	require.NoError(t, err)

	hooked := &hookedGateway{Sandbox: h.sandbox, beforeConfirm: func() {
		_, err := h.svc.GenerateFinalBill(as(staff), types.FinalBillInput{ApplicationID: id, ExtraDays: 1})
		require.NoError(t, err)
	}}
	svc := h.withRepository(h.repo, application.WithGateway(hooked))

	_, err = svc.RecordFinalPayment(as(owner), h.proof(id, "order-2", "pay-2", 500))
	require.ErrorIs(t, err, domain.ErrAmountMismatch)
	entries, err := h.ledger.ListByApplication(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.PaymentAdvance, entries[0].Kind)

	paid, err := svc.RecordFinalPayment(as(owner), h.proof(id, "order-3", "pay-3", 1000))
	require.NoError(t, err)
	assert.True(t, paid.Entity.Payments.Final.Completed())
	assert.Equal(t, "pay-3", paid.Entity.Payments.Final.PaymentID)
	entries, err = h.ledger.ListByApplication(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestCancelDuringAdvanceConfirmLeavesNoEntry(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)
	h.price(t, id)

	hooked := &hookedGateway{Sandbox: h.sandbox, beforeConfirm: func() {
		_, err := h.svc.Cancel(as(owner), types.CancelInput{ApplicationID: id, Reason: "changed my mind"})
		require.NoError(t, err)
	}}
	svc := h.withRepository(h.repo, application.WithGateway(hooked))

	_, err := svc.RecordAdvancePayment(as(owner), h.proof(id, "order-1", "pay-1", 500))
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	entries, err := h.ledger.ListByApplication(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRefusedPaymentUpdateDiscardsEntry(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)
	h.price(t, id)

	svc := h.withRepository(&conflictingRepository{Repository: h.repo}, application.WithMaxAttempts(2))
	_, err := svc.RecordAdvancePayment(as(owner), h.proof(id, "order-1", "pay-1", 500))
	require.ErrorIs(t, err, application.ErrConcurrentModification)
	entries, err := h.ledger.ListByApplication(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// A different payment for the same installment is not blocked afterwards.
	saved, err := h.svc.RecordAdvancePayment(as(owner), h.proof(id, "order-2", "pay-2", 500))
	require.NoError(t, err)
	assert.Equal(t, "pay-2", saved.Entity.Payments.Advance.PaymentID)
}

func TestZeroFinalDueAllowsPickup(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)
	h.price(t, id)
	h.payAdvance(t, id)
	h.handover(t, id, domain.PurposeDropoff)

	billed, err := h.svc.GenerateFinalBill(as(staff), types.FinalBillInput{
		ApplicationID: id,
		Adjustments:   []domain.Charge{{Description: "returning customer", Amount: -500}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.Money(0), billed.Entity.FinalBill.FinalAmountDue)
	assert.True(t, billed.Entity.Payments.Final.Completed())

	_, err = h.svc.RecordFinalPayment(as(owner), h.proof(id, "order-2", "pay-2", 0))
	require.Error(t, err)

	done := h.handover(t, id, domain.PurposePickup)
	assert.Equal(t, domain.StatusCompleted, done.Entity.Status)
	entries, err := h.ledger.ListByApplication(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestZeroAdvanceIsRejected(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)
	zero := 0.0
	_, err := h.svc.SetPricing(as(staff), types.SetPricingInput{
		ApplicationID:  id,
		Rates:          []domain.PetRate{{PetRef: "pet-1", BaseRatePerDay: 500}},
		AdvancePercent: &zero,
	})
	require.ErrorIs(t, err, application.ErrInvalidInput)
	require.ErrorIs(t, err, domain.ErrZeroAdvance)

	current, err := h.svc.GetApplication(as(owner), types.ApplicationIdentifier{ID: id})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSubmitted, current.Entity.Status)
}

func TestConcurrentConfirmationsWithOneCode(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)
	h.price(t, id)
	h.payAdvance(t, id)
	issued, err := h.svc.RequestHandoverOTP(as(owner), types.HandoverOTPInput{ApplicationID: id, Purpose: "dropoff"})
	require.NoError(t, err)

	const workers = 2
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		failures  []error
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(staffID string) {
			defer wg.Done()
			<-start
			_, err := h.svc.ConfirmHandover(as(identity.Actor{ID: staffID, Role: identity.RoleStaff}),
				types.ConfirmHandoverInput{ApplicationID: id, Purpose: "dropoff", Code: issued.Code})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			failures = append(failures, err)
		}(staff.ID + string(rune('a'+i)))
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	require.Len(t, failures, workers-1)
	for _, err := range failures {
		assert.True(t,
			errors.Is(err, domain.ErrOTPAlreadyConsumed) || errors.Is(err, domain.ErrInvalidTransition),
			"unexpected error %v", err)
	}

	current, err := h.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActiveCare, current.Entity.Status)
	var dropoffs int
	for _, change := range current.Entity.History {
		if change.Trigger == domain.TriggerDropoff {
			dropoffs++
		}
	}
	assert.Equal(t, 1, dropoffs)
}

// cancellingRepository commits an owner cancellation right before the first
// write it is asked for, as if it landed after the code was validated.
type cancellingRepository struct {
	*memory.Repository
	cancel func()
}

func (r *cancellingRepository) Update(ctx context.Context, app *domain.Application, expectedVersion int64) (*types.ApplicationProjection, error) {
	if r.cancel != nil {
		cancel := r.cancel
		r.cancel = nil
		cancel()
	}
	return r.Repository.Update(ctx, app, expectedVersion)
}

func TestCancellationBetweenValidationAndHandover(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)
	h.price(t, id)
	h.payAdvance(t, id)
	issued, err := h.svc.RequestHandoverOTP(as(owner), types.HandoverOTPInput{ApplicationID: id, Purpose: "dropoff"})
	require.NoError(t, err)

	repo := &cancellingRepository{Repository: h.repo, cancel: func() {
		_, err := h.svc.Cancel(as(owner), types.CancelInput{ApplicationID: id, Reason: "vet appointment"})
		require.NoError(t, err)
	}}
	svc := h.withRepository(repo)

	_, err = svc.ConfirmHandover(as(staff), types.ConfirmHandoverInput{ApplicationID: id, Purpose: "dropoff", Code: issued.Code})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	current, err := h.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, current.Entity.Status)
	assert.Nil(t, current.Entity.CheckIn)
	for _, change := range current.Entity.History {
		assert.NotEqual(t, domain.TriggerDropoff, change.Trigger)
	}
}

func TestCancelledCodeValidatesAsExpired(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)
	h.price(t, id)
	h.payAdvance(t, id)
	issued, err := h.svc.RequestHandoverOTP(as(owner), types.HandoverOTPInput{ApplicationID: id, Purpose: "dropoff"})
	require.NoError(t, err)
	_, err = h.svc.Cancel(as(owner), types.CancelInput{ApplicationID: id})
	require.NoError(t, err)

	_, err = h.engine.Validate(context.Background(), id, domain.PurposeDropoff, issued.Code)
	require.ErrorIs(t, err, domain.ErrOTPExpired)
}

type failingOTPStore struct {
	*memory.OTPStore
}

func (s *failingOTPStore) Replace(context.Context, *domain.OTP) error {
	return errors.New("otp store unavailable")
}

func TestReissueOrdersStoreBeforeHandoverUpdate(t *testing.T) {
	h := newHarness(t)
	id := h.submit(t)
	h.price(t, id)
	h.payAdvance(t, id)
	first, err := h.svc.RequestHandoverOTP(as(owner), types.HandoverOTPInput{ApplicationID: id, Purpose: "dropoff"})
	require.NoError(t, err)

	// The store refuses the new code: nothing moved, the first code still works.
	broken := application.NewService(h.repo, h.ledger,
		application.NewOTPEngine(&failingOTPStore{OTPStore: h.otps}, memory.NewAttemptLimiter(),
			application.WithOTPClock(h.clock.Now), application.WithBcryptCost(bcrypt.MinCost)),
		application.WithClock(h.clock.Now))
	_, err = broken.RequestHandoverOTP(as(owner), types.HandoverOTPInput{ApplicationID: id, Purpose: "dropoff"})
	require.Error(t, err)
	before, err := h.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	latest, err := h.otps.Latest(context.Background(), id, domain.PurposeDropoff)
	require.NoError(t, err)
	assert.Equal(t, latest.ID, before.Entity.CheckIn.OTPID)

	// The update is refused after the new code was stored: the first code is
	// already superseded and the owner has to ask again.
	conflicting := h.withRepository(&conflictingRepository{Repository: h.repo}, application.WithMaxAttempts(1))
	_, err = conflicting.RequestHandoverOTP(as(owner), types.HandoverOTPInput{ApplicationID: id, Purpose: "dropoff"})
	require.ErrorIs(t, err, application.ErrConcurrentModification)
	require.ErrorIs(t, h.otps.Consume(context.Background(), before.Entity.CheckIn.OTPID, h.clock.Now()), domain.ErrOTPExpired)
	_, err = h.svc.ConfirmHandover(as(staff), types.ConfirmHandoverInput{ApplicationID: id, Purpose: "dropoff", Code: first.Code})
	require.Error(t, err)

	again, err := h.svc.RequestHandoverOTP(as(owner), types.HandoverOTPInput{ApplicationID: id, Purpose: "dropoff"})
	require.NoError(t, err)
	saved, err := h.svc.ConfirmHandover(as(staff), types.ConfirmHandoverInput{ApplicationID: id, Purpose: "dropoff", Code: again.Code})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActiveCare, saved.Entity.Status)
}
