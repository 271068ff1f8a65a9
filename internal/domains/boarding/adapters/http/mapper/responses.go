package mapper

import (
	"time"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application/types"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
)

// ApplicationSummary is the list view of an application. It omits care instructions.
type ApplicationSummary struct {
	ID            string       `json:"id"`
	Number        string       `json:"applicationNumber"`
	Status        string       `json:"status"`
	CenterID      string       `json:"centerId,omitempty"`
	PetCount      int          `json:"petCount"`
	StartDate     time.Time    `json:"startDate"`
	EndDate       time.Time    `json:"endDate"`
	NumberOfDays  int          `json:"numberOfDays"`
	TotalAmount   domain.Money `json:"totalAmount,omitempty"`
	AdvancePaid   bool         `json:"advancePaid"`
	FinalPaid     bool         `json:"finalPaid"`
	SubmittedAt   time.Time    `json:"submittedAt"`
	LastUpdatedAt time.Time    `json:"updatedAt"`
}

// PetPricing is one computed pet line.
type PetPricing struct {
	PetRef            string       `json:"petRef"`
	BaseRatePerDay    domain.Money `json:"baseRatePerDay"`
	NumberOfDays      int          `json:"numberOfDays"`
	BaseAmount        domain.Money `json:"baseAmount"`
	SpecialCareAddons []Charge     `json:"specialCareAddons,omitempty"`
	TotalAmount       domain.Money `json:"totalAmount"`
}

// Pricing is the quote shown to owners and staff.
type Pricing struct {
	Pets              []PetPricing `json:"pets"`
	AdditionalCharges []Charge     `json:"additionalCharges,omitempty"`
	Discount          domain.Money `json:"discount"`
	TaxPercent        float64      `json:"taxPercent"`
	AdvancePercent    float64      `json:"advancePercent"`
	Subtotal          domain.Money `json:"subtotal"`
	TaxAmount         domain.Money `json:"taxAmount"`
	TotalAmount       domain.Money `json:"totalAmount"`
	AdvanceAmount     domain.Money `json:"advanceAmount"`
	RemainingAmount   domain.Money `json:"remainingAmount"`
	DeterminedAt      time.Time    `json:"determinedAt"`
	DeterminedBy      string       `json:"determinedBy"`
}

// PaymentRecord is one installment.
type PaymentRecord struct {
	Status        string       `json:"status"`
	Amount        domain.Money `json:"amount,omitempty"`
	PaidAt        *time.Time   `json:"paidAt,omitempty"`
	PaymentID     string       `json:"paymentId,omitempty"`
	TransactionID string       `json:"transactionId,omitempty"`
	InvoiceNumber string       `json:"invoiceNumber,omitempty"`
}

// Payments groups the installments of an application.
type Payments struct {
	Advance PaymentRecord  `json:"advance"`
	Final   PaymentRecord  `json:"final"`
	Refund  *PaymentRecord `json:"refund,omitempty"`
}

// FinalBillView is the settlement of a stay.
type FinalBillView struct {
	OriginalTotal      domain.Money `json:"originalTotal"`
	ExtraDays          int          `json:"extraDays"`
	ExtraDaysAmount    domain.Money `json:"extraDaysAmount"`
	AdditionalServices []Charge     `json:"additionalServices,omitempty"`
	Adjustments        []Charge     `json:"adjustments,omitempty"`
	FinalTotal         domain.Money `json:"finalTotal"`
	AdvanceAlreadyPaid domain.Money `json:"advanceAlreadyPaid"`
	FinalAmountDue     domain.Money `json:"finalAmountDue"`
	GeneratedAt        time.Time    `json:"generatedAt"`
}

// HandoverView never exposes the OTP, only its lifecycle.
type HandoverView struct {
	IssuedAt    time.Time  `json:"otpIssuedAt"`
	ExpiresAt   time.Time  `json:"otpExpiresAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CompletedBy string     `json:"completedBy,omitempty"`
}

// DecisionView records approval, rejection or cancellation.
type DecisionView struct {
	By       string    `json:"by"`
	At       time.Time `json:"at"`
	Reason   string    `json:"reason,omitempty"`
	Override bool      `json:"override,omitempty"`
}

// StatusChange is one audit entry.
type StatusChange struct {
	From    string    `json:"from,omitempty"`
	To      string    `json:"to"`
	Trigger string    `json:"trigger"`
	By      string    `json:"by,omitempty"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

// Application is the full view including care instructions.
type Application struct {
	ApplicationSummary
	OwnerID      string         `json:"ownerId"`
	Pets         []PetCare      `json:"pets"`
	Pricing      *Pricing       `json:"pricing,omitempty"`
	Payments     Payments       `json:"payments"`
	FinalBill    *FinalBillView `json:"finalBill,omitempty"`
	CheckIn      *HandoverView  `json:"checkIn,omitempty"`
	CheckOut     *HandoverView  `json:"checkOut,omitempty"`
	Feedback     *Feedback      `json:"feedback,omitempty"`
	Approval     *DecisionView  `json:"approval,omitempty"`
	Rejection    *DecisionView  `json:"rejection,omitempty"`
	Cancellation *DecisionView  `json:"cancellation,omitempty"`
	History      []StatusChange `json:"history"`
	Version      int64          `json:"version"`
}

// LedgerEntry is one accepted movement of money.
type LedgerEntry struct {
	ID            string       `json:"id"`
	Kind          string       `json:"kind"`
	Amount        domain.Money `json:"amount"`
	OrderID       string       `json:"orderId"`
	PaymentID     string       `json:"paymentId"`
	TransactionID string       `json:"transactionId,omitempty"`
	InvoiceNumber string       `json:"invoiceNumber"`
	RecordedAt    time.Time    `json:"recordedAt"`
}

// IssuedOTP is shown once to the owner.
type IssuedOTP struct {
	OTP       string    `json:"otp"`
	Purpose   string    `json:"purpose"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PaymentOrder is what the client needs to open the gateway checkout.
type PaymentOrder struct {
	OrderID  string       `json:"orderId"`
	Kind     string       `json:"kind"`
	Amount   domain.Money `json:"amount"`
	Currency string       `json:"currency"`
	Receipt  string       `json:"receipt"`
}

// StatusResponse is the minimal answer of cancel.
type StatusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// FromProjectionSummary maps the list view.
func FromProjectionSummary(p *types.ApplicationProjection) ApplicationSummary {
	app := p.Entity
	summary := ApplicationSummary{
		ID:            app.ID,
		Number:        app.Number,
		Status:        string(app.Status),
		CenterID:      app.CenterID,
		PetCount:      len(app.Pets),
		StartDate:     app.StartDate,
		EndDate:       app.EndDate,
		NumberOfDays:  app.NumberOfDays,
		AdvancePaid:   app.Payments.Advance.Completed(),
		FinalPaid:     app.Payments.Final.Completed(),
		SubmittedAt:   app.SubmittedAt,
		LastUpdatedAt: p.Metadata.UpdatedAt,
	}
	if app.Pricing != nil {
		summary.TotalAmount = app.Pricing.TotalAmount
	}
	return summary
}

// FromProjectionSummaries maps a list.
func FromProjectionSummaries(list []*types.ApplicationProjection) []ApplicationSummary {
	result := make([]ApplicationSummary, 0, len(list))
	for _, p := range list {
		if p == nil || p.Entity == nil {
			continue
		}
		result = append(result, FromProjectionSummary(p))
	}
	return result
}

// FromProjection maps the full view.
func FromProjection(p *types.ApplicationProjection) Application {
	app := p.Entity
	view := Application{
		ApplicationSummary: FromProjectionSummary(p),
		OwnerID:            app.OwnerID,
		Pets:               make([]PetCare, 0, len(app.Pets)),
		Payments: Payments{
			Advance: fromRecord(app.Payments.Advance),
			Final:   fromRecord(app.Payments.Final),
		},
		CheckIn:   fromHandover(app.CheckIn),
		CheckOut:  fromHandover(app.CheckOut),
		Approval:  fromDecision(app.Approval),
		Rejection: fromDecision(app.Rejection),
		History:   make([]StatusChange, 0, len(app.History)),
		Version:   p.Metadata.Version,
	}
	for _, pet := range app.Pets {
		view.Pets = append(view.Pets, PetCare{
			PetRef: pet.PetRef,
			SpecialInstructions: SpecialInstructions{
				Food:       pet.Instructions.Food,
				Medicine:   pet.Instructions.Medicine,
				Behavior:   pet.Instructions.Behavior,
				Allergies:  pet.Instructions.Allergies,
				OtherNotes: pet.Instructions.OtherNotes,
			},
		})
	}
	if app.Pricing != nil {
		view.Pricing = fromPricing(app.Pricing)
	}
	if app.Payments.Refund != nil {
		refund := fromRecord(*app.Payments.Refund)
		view.Payments.Refund = &refund
	}
	if bill := app.FinalBill; bill != nil {
		view.FinalBill = &FinalBillView{
			OriginalTotal:      bill.OriginalTotal,
			ExtraDays:          bill.ExtraDays,
			ExtraDaysAmount:    bill.ExtraDaysAmount,
			AdditionalServices: fromCharges(bill.AdditionalServices),
			Adjustments:        fromCharges(bill.Adjustments),
			FinalTotal:         bill.FinalTotal,
			AdvanceAlreadyPaid: bill.AdvanceAlreadyPaid,
			FinalAmountDue:     bill.FinalAmountDue,
			GeneratedAt:        bill.GeneratedAt,
		}
	}
	if f := app.Feedback; f != nil {
		view.Feedback = &Feedback{
			Rating:         f.Rating,
			Comment:        f.Comment,
			ServiceRating:  f.ServiceRating,
			StaffRating:    f.StaffRating,
			FacilityRating: f.FacilityRating,
		}
	}
	if c := app.Cancellation; c != nil {
		view.Cancellation = &DecisionView{By: c.By, At: c.At, Reason: c.Reason, Override: c.Override}
	}
	for _, change := range app.History {
		view.History = append(view.History, StatusChange{
			From:    string(change.From),
			To:      string(change.To),
			Trigger: string(change.Trigger),
			By:      change.By,
			Reason:  change.Reason,
			At:      change.At,
		})
	}
	return view
}

// FromLedgerEntries maps ledger entries.
func FromLedgerEntries(entries []*domain.LedgerEntry) []LedgerEntry {
	result := make([]LedgerEntry, 0, len(entries))
	for _, e := range entries {
		result = append(result, LedgerEntry{
			ID:            e.ID,
			Kind:          string(e.Kind),
			Amount:        e.Amount,
			OrderID:       e.OrderID,
			PaymentID:     e.PaymentID,
			TransactionID: e.TransactionID,
			InvoiceNumber: e.InvoiceNumber,
			RecordedAt:    e.RecordedAt,
		})
	}
	return result
}

// FromIssuedOTP maps a freshly issued code.
func FromIssuedOTP(issued *types.IssuedOTP) IssuedOTP {
	return IssuedOTP{OTP: issued.Code, Purpose: string(issued.Purpose), ExpiresAt: issued.ExpiresAt}
}

// FromPaymentOrder maps a gateway order.
func FromPaymentOrder(order *types.PaymentOrderResult) PaymentOrder {
	return PaymentOrder{
		OrderID:  order.OrderID,
		Kind:     string(order.Kind),
		Amount:   order.Amount,
		Currency: order.Currency,
		Receipt:  order.Receipt,
	}
}

func fromPricing(p *domain.Pricing) *Pricing {
	view := &Pricing{
		Pets:              make([]PetPricing, 0, len(p.Pets)),
		AdditionalCharges: fromCharges(p.AdditionalCharges),
		Discount:          p.Discount,
		TaxPercent:        p.TaxPercent,
		AdvancePercent:    p.AdvancePercent,
		Subtotal:          p.Subtotal,
		TaxAmount:         p.TaxAmount,
		TotalAmount:       p.TotalAmount,
		AdvanceAmount:     p.AdvanceAmount,
		RemainingAmount:   p.RemainingAmount,
		DeterminedAt:      p.DeterminedAt,
		DeterminedBy:      p.DeterminedBy,
	}
	for _, pet := range p.Pets {
		view.Pets = append(view.Pets, PetPricing{
			PetRef:            pet.PetRef,
			BaseRatePerDay:    pet.BaseRatePerDay,
			NumberOfDays:      pet.NumberOfDays,
			BaseAmount:        pet.BaseAmount,
			SpecialCareAddons: fromCharges(pet.SpecialCareAddons),
			TotalAmount:       pet.TotalAmount,
		})
	}
	return view
}

func fromRecord(r domain.PaymentRecord) PaymentRecord {
	return PaymentRecord{
		Status:        string(r.Status),
		Amount:        r.Amount,
		PaidAt:        r.PaidAt,
		PaymentID:     r.PaymentID,
		TransactionID: r.TransactionID,
		InvoiceNumber: r.InvoiceNumber,
	}
}

func fromHandover(h *domain.Handover) *HandoverView {
	if h == nil {
		return nil
	}
	return &HandoverView{IssuedAt: h.IssuedAt, ExpiresAt: h.ExpiresAt, CompletedAt: h.CompletedAt, CompletedBy: h.CompletedBy}
}

func fromDecision(d *domain.Decision) *DecisionView {
	if d == nil {
		return nil
	}
	return &DecisionView{By: d.By, At: d.At, Reason: d.Reason}
}

func fromCharges(charges []domain.Charge) []Charge {
	if len(charges) == 0 {
		return nil
	}
	result := make([]Charge, 0, len(charges))
	for _, charge := range charges {
		result = append(result, Charge{Description: charge.Description, Amount: charge.Amount})
	}
	return result
}
