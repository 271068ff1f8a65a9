package domain

import (
	"errors"
	"time"
)

var ErrFinalBillMissing = errors.New("final bill has not been generated")

// FinalBillInput collects what staff add on top of the original quote.
type FinalBillInput struct {
	ExtraDays int
	// ExtraDayRate defaults to the summed daily rate of the boarded pets.
	ExtraDayRate       *Money
	AdditionalServices []Charge
	// Adjustments may be negative (goodwill discounts).
	Adjustments []Charge
}

// FinalBill settles the stay once care has started.
type FinalBill struct {
	OriginalTotal      Money
	ExtraDays          int
	ExtraDaysAmount    Money
	AdditionalServices []Charge
	Adjustments        []Charge
	FinalTotal         Money
	AdvanceAlreadyPaid Money
	FinalAmountDue     Money
	GeneratedAt        time.Time
	GeneratedBy        string
}

// Clone returns a deep copy.
func (b *FinalBill) Clone() *FinalBill {
	if b == nil {
		return nil
	}
	clone := *b
	clone.AdditionalServices = cloneCharges(b.AdditionalServices)
	clone.Adjustments = cloneCharges(b.Adjustments)
	return &clone
}

// NewFinalBill computes the bill from the quoted pricing and the advance actually paid.
func NewFinalBill(pricing *Pricing, advancePaid Money, input FinalBillInput, by string, now time.Time) (*FinalBill, error) {
	if pricing == nil {
		return nil, ErrPricingMissing
	}
	if input.ExtraDays < 0 {
		return nil, ErrNegativeAmount
	}
	rate := pricing.DailyRate()
	if input.ExtraDayRate != nil {
		if *input.ExtraDayRate < 0 {
			return nil, ErrNegativeAmount
		}
		rate = *input.ExtraDayRate
	}
	services, err := sumCharges(input.AdditionalServices)
	if err != nil {
		return nil, err
	}
	var adjustments Money
	for _, adj := range input.Adjustments {
		adjustments += adj.Amount
	}

	bill := &FinalBill{
		OriginalTotal:      pricing.TotalAmount,
		ExtraDays:          input.ExtraDays,
		ExtraDaysAmount:    rate * Money(input.ExtraDays),
		AdditionalServices: cloneCharges(input.AdditionalServices),
		Adjustments:        cloneCharges(input.Adjustments),
		AdvanceAlreadyPaid: advancePaid,
		GeneratedAt:        now,
		GeneratedBy:        by,
	}
	bill.FinalTotal = bill.OriginalTotal + bill.ExtraDaysAmount + services + adjustments
	if bill.FinalTotal < 0 {
		bill.FinalTotal = 0
	}
	bill.FinalAmountDue = bill.FinalTotal - advancePaid
	if bill.FinalAmountDue < 0 {
		bill.FinalAmountDue = 0
	}
	return bill, nil
}
