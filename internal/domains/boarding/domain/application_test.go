package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func newSubmitted(t *testing.T) *Application {
	t.Helper()
	app, err := NewApplication(Submission{
		ID:        "app-1",
		Number:    "TCA-1-ABCDEF",
		OwnerID:   "owner-1",
		Pets:      []PetCare{{PetRef: "pet-1", Instructions: SpecialInstructions{Food: "kibble twice a day"}}},
		StartDate: testNow.Add(24 * time.Hour),
		EndDate:   testNow.Add(72 * time.Hour),
	}, testNow)
	require.NoError(t, err)
	return app
}

func priced(t *testing.T) *Application {
	t.Helper()
	app := newSubmitted(t)
	require.NoError(t, app.SetPricing(&Pricing{TotalAmount: 1000, AdvanceAmount: 500, RemainingAmount: 500,
		Pets: []PetPricing{{PetRef: "pet-1", BaseRatePerDay: 250}}}, "staff-1", testNow))
	return app
}

func advancePaid(t *testing.T) *Application {
	t.Helper()
	app := priced(t)
	require.NoError(t, app.ConfirmAdvancePayment(&LedgerEntry{ID: "l-1", Kind: PaymentAdvance, Amount: 500, PaymentID: "pay-1", RecordedAt: testNow}, testNow))
	return app
}

func activeCare(t *testing.T) *Application {
	t.Helper()
	app := advancePaid(t)
	otp := NewOTP("otp-1", app.ID, PurposeDropoff, []byte("hash"), testNow)
	require.NoError(t, app.StartHandover(otp, testNow))
	require.NoError(t, app.CompleteHandover(PurposeDropoff, "otp-1", "staff-1", testNow))
	return app
}

func TestNewApplication_Validation(t *testing.T) {
	base := Submission{
		OwnerID:   "owner",
		Pets:      []PetCare{{PetRef: "p"}},
		StartDate: testNow.Add(time.Hour),
		EndDate:   testNow.Add(49 * time.Hour),
	}
	app, err := NewApplication(base, testNow)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, app.Status)
	assert.Equal(t, 2, app.NumberOfDays)
	assert.Equal(t, PaymentPending, app.Payments.Advance.Status)
	require.Len(t, app.Events(), 1)

	noPets := base
	noPets.Pets = nil
	_, err = NewApplication(noPets, testNow)
	require.ErrorIs(t, err, ErrNoPets)

	dup := base
	dup.Pets = []PetCare{{PetRef: "p"}, {PetRef: "p"}}
	_, err = NewApplication(dup, testNow)
	require.ErrorIs(t, err, ErrDuplicatePet)

	inverted := base
	inverted.EndDate = base.StartDate
	_, err = NewApplication(inverted, testNow)
	require.ErrorIs(t, err, ErrInvalidDateRange)

	past := base
	past.StartDate = testNow.Add(-48 * time.Hour)
	_, err = NewApplication(past, testNow)
	require.ErrorIs(t, err, ErrStartInPast)
}

func TestAdvancePaymentKeepsRemaining(t *testing.T) {
	app := advancePaid(t)
	assert.Equal(t, StatusAdvancePaid, app.Status)
	assert.True(t, app.Payments.Advance.Completed())
	assert.Equal(t, Money(500), app.Pricing.RemainingAmount)
	assert.Equal(t, Money(500), app.Payments.Final.Amount)
}

func TestAdvancePayment_AmountMismatchLeavesStateUnchanged(t *testing.T) {
	app := priced(t)
	before := app.Clone()
	err := app.ConfirmAdvancePayment(&LedgerEntry{Kind: PaymentAdvance, Amount: 400, RecordedAt: testNow}, testNow)
	require.ErrorIs(t, err, ErrAmountMismatch)
	app.ClearEvents()
	assert.Equal(t, before, app)
}

func TestFailedTransitionLeavesStateUnchanged(t *testing.T) {
	app := newSubmitted(t)
	app.ClearEvents()
	before := app.Clone()

	require.ErrorIs(t, app.Approve("staff", testNow), ErrInvalidTransition)
	require.ErrorIs(t, app.GenerateFinalBill(FinalBillInput{}, "staff", testNow), ErrInvalidTransition)
	require.ErrorIs(t, app.SubmitFeedback(Feedback{Rating: 5}, testNow), ErrInvalidTransition)
	require.ErrorIs(t, app.CheckHandoverEligible(PurposeDropoff), ErrInvalidTransition)
	assert.Equal(t, before, app)
	assert.Empty(t, app.Events())
}

func TestPickupRequiresFinalPayment(t *testing.T) {
	app := activeCare(t)
	require.ErrorIs(t, app.CheckHandoverEligible(PurposePickup), ErrInvalidTransition)

	require.ErrorIs(t, app.ConfirmFinalPayment(&LedgerEntry{Amount: 500}, testNow), ErrFinalBillMissing)
	require.NoError(t, app.GenerateFinalBill(FinalBillInput{ExtraDays: 1}, "staff-1", testNow))
	assert.Equal(t, Money(750), app.FinalBill.FinalAmountDue)

	require.NoError(t, app.ConfirmFinalPayment(&LedgerEntry{ID: "l-2", Kind: PaymentFinal, Amount: 750, RecordedAt: testNow}, testNow))
	assert.Equal(t, StatusActiveCare, app.Status)
	require.NoError(t, app.CheckHandoverEligible(PurposePickup))

	otp := NewOTP("otp-2", app.ID, PurposePickup, []byte("hash"), testNow)
	require.NoError(t, app.StartHandover(otp, testNow))
	require.ErrorIs(t, app.CompleteHandover(PurposePickup, "otp-other", "staff-1", testNow), ErrHandoverNotStarted)
	require.NoError(t, app.CompleteHandover(PurposePickup, "otp-2", "staff-1", testNow))
	assert.Equal(t, StatusCompleted, app.Status)
	require.NotNil(t, app.CheckOut.CompletedAt)

	require.NoError(t, app.SubmitFeedback(Feedback{Rating: 4}, testNow))
	require.ErrorIs(t, app.SubmitFeedback(Feedback{Rating: 4}, testNow), ErrFeedbackSubmitted)
}

func TestZeroFinalDueSettlesWithoutLedgerEntry(t *testing.T) {
	app := activeCare(t)
	require.NoError(t, app.GenerateFinalBill(FinalBillInput{Adjustments: []Charge{{Description: "loyalty", Amount: -500}}}, "staff-1", testNow))
	assert.Equal(t, Money(0), app.FinalBill.FinalAmountDue)
	assert.True(t, app.Payments.Final.Completed())
	assert.True(t, app.Payments.Final.SettledWithoutPayment())
	assert.Empty(t, app.Payments.Final.LedgerEntryID)

	_, err := app.AmountDue(PaymentFinal)
	require.ErrorIs(t, err, ErrPaymentAlreadyRecorded)
	require.NoError(t, app.CheckHandoverEligible(PurposePickup))

	// The bill may still be corrected while nothing was paid against it.
	require.NoError(t, app.GenerateFinalBill(FinalBillInput{ExtraDays: 1}, "staff-1", testNow))
	assert.Equal(t, PaymentPending, app.Payments.Final.Status)
	assert.Equal(t, Money(750), app.Payments.Final.Amount)
	require.ErrorIs(t, app.CheckHandoverEligible(PurposePickup), ErrInvalidTransition)

	require.NoError(t, app.ConfirmFinalPayment(&LedgerEntry{ID: "l-2", Kind: PaymentFinal, Amount: 750, PaymentID: "pay-2", RecordedAt: testNow}, testNow))
	require.ErrorIs(t, app.GenerateFinalBill(FinalBillInput{}, "staff-1", testNow), ErrPaymentAlreadyRecorded)
}

func TestCancel(t *testing.T) {
	app := advancePaid(t)
	otp := NewOTP("otp-1", app.ID, PurposeDropoff, []byte("hash"), testNow)
	require.NoError(t, app.StartHandover(otp, testNow))

	require.NoError(t, app.Cancel("owner-1", "owner", "plans changed", testNow))
	assert.Equal(t, StatusCancelled, app.Status)
	assert.Nil(t, app.CheckIn)
	assert.Equal(t, StatusAdvancePaid, app.Cancellation.PreviousStatus)
	assert.False(t, app.Cancellation.Override)

	var cancelErr *CancelError
	err := activeCare(t).Cancel("owner-1", "owner", "", testNow)
	require.ErrorAs(t, err, &cancelErr)
	require.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, StatusActiveCare, cancelErr.Status)
}

func TestOverrideCancelIsAudited(t *testing.T) {
	app := activeCare(t)
	require.ErrorIs(t, app.OverrideCancel("admin-1", " ", testNow), ErrReasonRequired)
	require.NoError(t, app.OverrideCancel("admin-1", "pet needs hospital care", testNow))
	assert.True(t, app.Cancellation.Override)
	require.NotNil(t, app.CheckIn, "the completed drop-off stays on record")
	require.NotNil(t, app.CheckIn.CompletedAt)
	assert.Equal(t, "staff-1", app.CheckIn.CompletedBy)
	assert.Equal(t, "otp-1", app.CheckIn.OTPID)

	last := app.History[len(app.History)-1]
	assert.Equal(t, TriggerAdminOverride, last.Trigger)
	assert.Equal(t, StatusActiveCare, last.From)

	var overridden bool
	for _, event := range app.Events() {
		if _, ok := event.(CancellationOverridden); ok {
			overridden = true
		}
	}
	assert.True(t, overridden)
}

func TestCloneIsDeep(t *testing.T) {
	app := activeCare(t)
	clone := app.Clone()
	clone.Pets[0].PetRef = "changed"
	clone.Pricing.TotalAmount = 1
	*clone.CheckIn.CompletedAt = time.Time{}
	assert.Equal(t, "pet-1", app.Pets[0].PetRef)
	assert.Equal(t, Money(1000), app.Pricing.TotalAmount)
	assert.False(t, app.CheckIn.CompletedAt.IsZero())
}

func TestFeedbackValidation(t *testing.T) {
	bad := 6
	assert.ErrorIs(t, Feedback{Rating: 0}.Validate(), ErrInvalidRating)
	assert.ErrorIs(t, Feedback{Rating: 3, StaffRating: &bad}.Validate(), ErrInvalidRating)
	assert.NoError(t, Feedback{Rating: 3}.Validate())
}

func TestOTPCheckUsable(t *testing.T) {
	otp := NewOTP("otp", "app", PurposeDropoff, []byte("h"), testNow)
	assert.NoError(t, otp.CheckUsable(testNow.Add(OTPTTL)))
	assert.ErrorIs(t, otp.CheckUsable(testNow.Add(16*time.Minute)), ErrOTPExpired)

	invalidated := otp.Clone()
	invalidated.InvalidatedAt = &testNow
	assert.ErrorIs(t, invalidated.CheckUsable(testNow), ErrOTPExpired)

	consumed := otp.Clone()
	consumed.ConsumedAt = &testNow
	assert.ErrorIs(t, consumed.CheckUsable(testNow.Add(time.Hour)), ErrOTPAlreadyConsumed)
}

func TestNewApplicationNumber(t *testing.T) {
	number, err := NewApplicationNumber(testNow)
	require.NoError(t, err)
	assert.Regexp(t, `^TCA-\d+-[0-9A-F]{6}$`, number)
}
