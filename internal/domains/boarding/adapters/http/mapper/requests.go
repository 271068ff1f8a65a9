package mapper

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application/types"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// SpecialInstructions is the free-text care guidance for one pet.
type SpecialInstructions struct {
	Food       string `json:"food,omitempty" validate:"max=2000"`
	Medicine   string `json:"medicine,omitempty" validate:"max=2000"`
	Behavior   string `json:"behavior,omitempty" validate:"max=2000"`
	Allergies  string `json:"allergies,omitempty" validate:"max=2000"`
	OtherNotes string `json:"otherNotes,omitempty" validate:"max=2000"`
}

// PetCare is one pet in a submission.
type PetCare struct {
	PetRef              string              `json:"petRef" validate:"required,max=128"`
	SpecialInstructions SpecialInstructions `json:"specialInstructions"`
}

// SubmitApplication is the owner's booking request.
type SubmitApplication struct {
	CenterID  string    `json:"centerId,omitempty" validate:"max=128"`
	Pets      []PetCare `json:"pets" validate:"required,min=1,max=20,dive"`
	StartDate time.Time `json:"startDate" validate:"required"`
	EndDate   time.Time `json:"endDate" validate:"required"`
}

// Charge is a described amount in minor units.
type Charge struct {
	Description string       `json:"description" validate:"required,max=256"`
	Amount      domain.Money `json:"amount"`
}

// PetRate is the staff quote for one pet.
type PetRate struct {
	PetRef            string       `json:"petRef" validate:"required"`
	BaseRatePerDay    domain.Money `json:"baseRatePerDay" validate:"gte=0"`
	SpecialCareAddons []Charge     `json:"specialCareAddons,omitempty" validate:"dive"`
}

// SetPricing is the staff quote.
type SetPricing struct {
	Pets              []PetRate    `json:"pets" validate:"required,min=1,dive"`
	AdditionalCharges []Charge     `json:"additionalCharges,omitempty" validate:"dive"`
	Discount          domain.Money `json:"discount,omitempty" validate:"gte=0"`
	TaxPercent        *float64     `json:"taxPercent,omitempty" validate:"omitempty,gte=0,lte=100"`
	AdvancePercent    *float64     `json:"advancePercent,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// Decision carries the reason for reject, override-cancel and refund.
type Decision struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// Cancel is an owner cancellation.
type Cancel struct {
	Reason string `json:"reason,omitempty" validate:"max=1000"`
}

// FinalBill is the staff settlement of an active stay.
type FinalBill struct {
	ExtraDays          int           `json:"extraDays,omitempty" validate:"gte=0,lte=365"`
	ExtraDayRate       *domain.Money `json:"extraDayRate,omitempty" validate:"omitempty,gte=0"`
	AdditionalServices []Charge      `json:"additionalServices,omitempty" validate:"dive"`
	Adjustments        []Charge      `json:"adjustments,omitempty" validate:"dive"`
}

// Feedback is the owner's rating of a completed stay.
type Feedback struct {
	Rating         int    `json:"rating" validate:"required,min=1,max=5"`
	Comment        string `json:"comment,omitempty" validate:"max=2000"`
	ServiceRating  *int   `json:"serviceRating,omitempty" validate:"omitempty,min=1,max=5"`
	StaffRating    *int   `json:"staffRating,omitempty" validate:"omitempty,min=1,max=5"`
	FacilityRating *int   `json:"facilityRating,omitempty" validate:"omitempty,min=1,max=5"`
}

// Payment is the proof of payment returned by the gateway checkout.
type Payment struct {
	OrderID   string       `json:"orderId" validate:"required"`
	PaymentID string       `json:"paymentId" validate:"required"`
	Signature string       `json:"signature" validate:"required,hexadecimal"`
	Amount    domain.Money `json:"amount" validate:"gt=0"`
}

// HandoverOTPRequest asks for a drop-off or pick-up code.
type HandoverOTPRequest struct {
	ApplicationID string `json:"applicationId" validate:"required"`
	Purpose       string `json:"purpose" validate:"required,oneof=dropoff pickup"`
}

// HandoverVerifyRequest is the code staff received from the owner.
type HandoverVerifyRequest struct {
	ApplicationID string `json:"applicationId" validate:"required"`
	Purpose       string `json:"purpose" validate:"required,oneof=dropoff pickup"`
	OTP           string `json:"otp" validate:"required,numeric,len=6"`
}

// Validate checks struct tags and returns the offending fields keyed by JSON name.
func Validate(payload any) map[string]string {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return map[string]string{"body": err.Error()}
	}
	result := make(map[string]string, len(fieldErrors))
	for _, fe := range fieldErrors {
		result[fieldPath(fe.Namespace())] = fe.Tag()
	}
	return result
}

// fieldPath drops the leading struct name from a validator namespace.
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

// ToSubmitInput maps a submission.
func ToSubmitInput(payload SubmitApplication, idempotencyKey string) types.SubmitApplicationInput {
	pets := make([]domain.PetCare, 0, len(payload.Pets))
	for _, pet := range payload.Pets {
		pets = append(pets, domain.PetCare{
			PetRef: pet.PetRef,
			Instructions: domain.SpecialInstructions{
				Food:       pet.SpecialInstructions.Food,
				Medicine:   pet.SpecialInstructions.Medicine,
				Behavior:   pet.SpecialInstructions.Behavior,
				Allergies:  pet.SpecialInstructions.Allergies,
				OtherNotes: pet.SpecialInstructions.OtherNotes,
			},
		})
	}
	return types.SubmitApplicationInput{
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
		CenterID:       payload.CenterID,
		Pets:           pets,
		StartDate:      payload.StartDate,
		EndDate:        payload.EndDate,
	}
}

// ToPricingInput maps a staff quote.
func ToPricingInput(id string, payload SetPricing) types.SetPricingInput {
	rates := make([]domain.PetRate, 0, len(payload.Pets))
	for _, rate := range payload.Pets {
		rates = append(rates, domain.PetRate{
			PetRef:            rate.PetRef,
			BaseRatePerDay:    rate.BaseRatePerDay,
			SpecialCareAddons: toCharges(rate.SpecialCareAddons),
		})
	}
	return types.SetPricingInput{
		ApplicationID:     id,
		Rates:             rates,
		AdditionalCharges: toCharges(payload.AdditionalCharges),
		Discount:          payload.Discount,
		TaxPercent:        payload.TaxPercent,
		AdvancePercent:    payload.AdvancePercent,
	}
}

// ToFinalBillInput maps a settlement.
func ToFinalBillInput(id string, payload FinalBill) types.FinalBillInput {
	return types.FinalBillInput{
		ApplicationID:      id,
		ExtraDays:          payload.ExtraDays,
		ExtraDayRate:       payload.ExtraDayRate,
		AdditionalServices: toCharges(payload.AdditionalServices),
		Adjustments:        toCharges(payload.Adjustments),
	}
}

// ToFeedbackInput maps a rating.
func ToFeedbackInput(id string, payload Feedback) types.FeedbackInput {
	return types.FeedbackInput{
		ApplicationID:  id,
		Rating:         payload.Rating,
		Comment:        payload.Comment,
		ServiceRating:  payload.ServiceRating,
		StaffRating:    payload.StaffRating,
		FacilityRating: payload.FacilityRating,
	}
}

// ToPaymentInput maps a proof of payment for the given installment.
func ToPaymentInput(id string, kind domain.PaymentKind, payload Payment) types.RecordPaymentInput {
	return types.RecordPaymentInput{
		ApplicationID: id,
		Kind:          string(kind),
		OrderID:       payload.OrderID,
		PaymentID:     payload.PaymentID,
		Signature:     payload.Signature,
		Amount:        payload.Amount,
	}
}

func toCharges(charges []Charge) []domain.Charge {
	if len(charges) == 0 {
		return nil
	}
	result := make([]domain.Charge, 0, len(charges))
	for _, charge := range charges {
		result = append(result, domain.Charge{Description: charge.Description, Amount: charge.Amount})
	}
	return result
}
