package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Money is an amount in the smallest currency unit.
type Money int64

const (
	// DefaultTaxPercent applies when staff do not quote a tax rate.
	DefaultTaxPercent = 18.0
	// DefaultAdvancePercent is the share of the total collected before drop-off.
	DefaultAdvancePercent = 50.0
)

var (
	ErrInvalidPricing     = errors.New("pricing is invalid")
	ErrPricingAlreadySet  = errors.New("pricing has already been determined")
	ErrPricingMissing     = errors.New("pricing has not been determined")
	ErrMissingPetRate     = errors.New("every boarded pet needs a daily rate")
	ErrUnknownPetRate     = errors.New("rate quoted for a pet that is not part of the application")
	ErrNegativeAmount     = errors.New("amounts must not be negative")
	ErrDiscountTooLarge   = errors.New("discount exceeds the quoted amount")
	ErrInvalidPercentages = errors.New("percentages must be between 0 and 100")
	ErrZeroAdvance        = errors.New("an advance greater than zero is required")
)

// Charge is a named amount added to a quote or bill.
type Charge struct {
	Description string
	Amount      Money
}

// PetRate is the staff quote for a single pet.
type PetRate struct {
	PetRef            string
	BaseRatePerDay    Money
	SpecialCareAddons []Charge
}

// PetPricing is the computed line for a single pet.
type PetPricing struct {
	PetRef            string
	BaseRatePerDay    Money
	NumberOfDays      int
	BaseAmount        Money
	SpecialCareAddons []Charge
	TotalAmount       Money
}

// Quote is the staff input used to price an application.
type Quote struct {
	Rates             []PetRate
	AdditionalCharges []Charge
	Discount          Money
	// TaxPercent and AdvancePercent fall back to the defaults when nil.
	TaxPercent     *float64
	AdvancePercent *float64
}

// Pricing is the immutable price of an application.
type Pricing struct {
	Pets              []PetPricing
	AdditionalCharges []Charge
	Discount          Money
	TaxPercent        float64
	AdvancePercent    float64
	Subtotal          Money
	TaxAmount         Money
	TotalAmount       Money
	AdvanceAmount     Money
	RemainingAmount   Money
	DeterminedAt      time.Time
	DeterminedBy      string
	Locked            bool
}

// DailyRate is the sum of every pet's base daily rate.
func (p *Pricing) DailyRate() Money {
	if p == nil {
		return 0
	}
	var rate Money
	for _, pet := range p.Pets {
		rate += pet.BaseRatePerDay
	}
	return rate
}

// Validate checks the split invariant advance + remaining == total.
func (p *Pricing) Validate() error {
	if p == nil {
		return ErrPricingMissing
	}
	if p.TotalAmount <= 0 || p.AdvanceAmount < 0 || p.RemainingAmount < 0 {
		return fmt.Errorf("%w: amounts must be positive", ErrInvalidPricing)
	}
	if p.AdvanceAmount == 0 {
		return ErrZeroAdvance
	}
	if p.AdvanceAmount+p.RemainingAmount != p.TotalAmount {
		return fmt.Errorf("%w: advance %d + remaining %d != total %d", ErrInvalidPricing, p.AdvanceAmount, p.RemainingAmount, p.TotalAmount)
	}
	return nil
}

// Clone returns a deep copy.
func (p *Pricing) Clone() *Pricing {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Pets = make([]PetPricing, len(p.Pets))
	for i, pet := range p.Pets {
		pet.SpecialCareAddons = cloneCharges(pet.SpecialCareAddons)
		clone.Pets[i] = pet
	}
	clone.AdditionalCharges = cloneCharges(p.AdditionalCharges)
	return &clone
}

// PriceQuote computes the pricing of the given pets for numberOfDays.
func PriceQuote(pets []PetCare, numberOfDays int, quote Quote) (*Pricing, error) {
	if numberOfDays <= 0 {
		return nil, ErrInvalidDateRange
	}
	taxPercent := percentOrDefault(quote.TaxPercent, DefaultTaxPercent)
	advancePercent := percentOrDefault(quote.AdvancePercent, DefaultAdvancePercent)
	if taxPercent < 0 || taxPercent > 100 || advancePercent < 0 || advancePercent > 100 {
		return nil, ErrInvalidPercentages
	}
	if advancePercent == 0 {
		return nil, ErrZeroAdvance
	}
	if quote.Discount < 0 {
		return nil, ErrNegativeAmount
	}

	rates := make(map[string]PetRate, len(quote.Rates))
	for _, rate := range quote.Rates {
		ref := strings.TrimSpace(rate.PetRef)
		if !containsPet(pets, ref) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPetRate, ref)
		}
		rates[ref] = rate
	}

	pricing := &Pricing{
		Discount:       quote.Discount,
		TaxPercent:     taxPercent,
		AdvancePercent: advancePercent,
	}
	for _, pet := range pets {
		rate, ok := rates[pet.PetRef]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingPetRate, pet.PetRef)
		}
		if rate.BaseRatePerDay < 0 {
			return nil, ErrNegativeAmount
		}
		line := PetPricing{
			PetRef:            pet.PetRef,
			BaseRatePerDay:    rate.BaseRatePerDay,
			NumberOfDays:      numberOfDays,
			BaseAmount:        rate.BaseRatePerDay * Money(numberOfDays),
			SpecialCareAddons: cloneCharges(rate.SpecialCareAddons),
		}
		addons, err := sumCharges(line.SpecialCareAddons)
		if err != nil {
			return nil, err
		}
		line.TotalAmount = line.BaseAmount + addons
		pricing.Pets = append(pricing.Pets, line)
		pricing.Subtotal += line.TotalAmount
	}

	charges, err := sumCharges(quote.AdditionalCharges)
	if err != nil {
		return nil, err
	}
	pricing.AdditionalCharges = cloneCharges(quote.AdditionalCharges)

	taxable := pricing.Subtotal + charges - quote.Discount
	if taxable < 0 {
		return nil, ErrDiscountTooLarge
	}
	pricing.TotalAmount = applyPercent(taxable, 100+taxPercent)
	pricing.TaxAmount = pricing.TotalAmount - taxable
	pricing.AdvanceAmount = applyPercent(pricing.TotalAmount, advancePercent)
	pricing.RemainingAmount = pricing.TotalAmount - pricing.AdvanceAmount
	if err := pricing.Validate(); err != nil {
		return nil, err
	}
	return pricing, nil
}

// applyPercent returns round-half-up(amount * percent / 100) using basis points.
func applyPercent(amount Money, percent float64) Money {
	bps := int64(math.Round(percent * 100))
	return Money((int64(amount)*bps + 5000) / 10000)
}

func percentOrDefault(value *float64, fallback float64) float64 {
	if value == nil {
		return fallback
	}
	return *value
}

func sumCharges(charges []Charge) (Money, error) {
	var total Money
	for _, charge := range charges {
		if charge.Amount < 0 {
			return 0, ErrNegativeAmount
		}
		total += charge.Amount
	}
	return total, nil
}

func cloneCharges(charges []Charge) []Charge {
	if len(charges) == 0 {
		return nil
	}
	return append([]Charge(nil), charges...)
}

func containsPet(pets []PetCare, ref string) bool {
	for _, pet := range pets {
		if pet.PetRef == ref {
			return true
		}
	}
	return false
}
