package careserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/http/mapper"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application/types"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
)

// PaymentAPI exposes payment recording, orders and refunds.
type PaymentAPI struct {
	service   ports.Service
	workflows ports.PaymentWorkflowOrchestrator
}

// NewPaymentAPI creates a PaymentAPI. Payments go through workflows when set.
func NewPaymentAPI(service ports.Service, workflows ports.PaymentWorkflowOrchestrator) PaymentAPI {
	return PaymentAPI{service: service, workflows: workflows}
}

// Get /api/v1/payments/:applicationId
// List the ledger entries of an application
func (api *PaymentAPI) ListPayments(c *gin.Context) {
	id, ok := pathID(c, "applicationId")
	if !ok {
		return
	}
	entries, err := api.service.ListPayments(c.Request.Context(), types.ApplicationIdentifier{ID: id})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.FromLedgerEntries(entries))
}

// Post /api/v1/payments/:applicationId/:kind
// Record the advance or final payment, or refund the advance (kind=refund, admin)
func (api *PaymentAPI) RecordPayment(c *gin.Context) {
	id, ok := pathID(c, "applicationId")
	if !ok {
		return
	}
	kind, ok := pathString(c, "kind")
	if !ok {
		return
	}
	if domain.PaymentKind(kind) == domain.PaymentRefund {
		api.refund(c, id)
		return
	}
	parsed, err := domain.ParsePaymentKind(kind)
	if err != nil {
		respondProblemNotFound(c, kind)
		return
	}
	var payload mapper.Payment
	if !bindBody(c, &payload, false) {
		return
	}
	saved, err := api.record(c, mapper.ToPaymentInput(id, parsed, payload))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.FromProjection(saved))
}

func (api *PaymentAPI) record(c *gin.Context, input types.RecordPaymentInput) (*types.ApplicationProjection, error) {
	if api.workflows != nil {
		return api.workflows.RecordPayment(c.Request.Context(), input)
	}
	return application.RecordPayment(c.Request.Context(), api.service, input)
}

func (api *PaymentAPI) refund(c *gin.Context, id string) {
	var payload mapper.Decision
	if !bindBody(c, &payload, true) {
		return
	}
	refunded, err := api.service.RefundAdvance(c.Request.Context(), types.DecisionInput{ApplicationID: id, Reason: payload.Reason})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.FromProjection(refunded))
}

// Post /api/v1/payments/:applicationId/:kind/order
// Create a gateway order for the amount due
func (api *PaymentAPI) CreateOrder(c *gin.Context) {
	id, ok := pathID(c, "applicationId")
	if !ok {
		return
	}
	kind, ok := pathString(c, "kind")
	if !ok {
		return
	}
	order, err := api.service.CreatePaymentOrder(c.Request.Context(), types.CreateOrderInput{ApplicationID: id, Kind: kind})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mapper.FromPaymentOrder(order))
}
