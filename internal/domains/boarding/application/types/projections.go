package types

import (
	"time"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/shared/projection"
)

// ApplicationProjection transports an aggregate together with its persistence metadata.
type ApplicationProjection = projection.Projection[*domain.Application]

// IssuedOTP is returned once to the owner who requested it.
type IssuedOTP struct {
	ApplicationID string
	Purpose       domain.Purpose
	Code          string
	ExpiresAt     time.Time
}

// PaymentOrderResult is the gateway order for the amount due.
type PaymentOrderResult struct {
	ApplicationID string
	Kind          domain.PaymentKind
	OrderID       string
	Amount        domain.Money
	Currency      string
	Receipt       string
}
