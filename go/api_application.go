package careserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/http/mapper"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application/types"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
)

// IdempotencyKeyHeader makes submissions safe to retry.
const IdempotencyKeyHeader = "Idempotency-Key"

// ApplicationAPI exposes the application lifecycle.
type ApplicationAPI struct {
	service ports.Service
}

// NewApplicationAPI creates an ApplicationAPI backed by the provided service.
func NewApplicationAPI(service ports.Service) ApplicationAPI {
	return ApplicationAPI{service: service}
}

// Post /api/v1/applications
// Submit a boarding application
func (api *ApplicationAPI) SubmitApplication(c *gin.Context) {
	var payload mapper.SubmitApplication
	if !bindBody(c, &payload, false) {
		return
	}
	saved, err := api.service.SubmitApplication(c.Request.Context(), mapper.ToSubmitInput(payload, c.GetHeader(IdempotencyKeyHeader)))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mapper.FromProjection(saved))
}

// Get /api/v1/applications
// List every application (staff)
func (api *ApplicationAPI) ListApplications(c *gin.Context) {
	statuses, ok := statusFilter(c)
	if !ok {
		return
	}
	result, err := api.service.ListApplications(c.Request.Context(), types.ListApplicationsInput{Statuses: statuses})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.FromProjectionSummaries(result))
}

// Get /api/v1/applications/mine
// List the caller's applications
func (api *ApplicationAPI) ListMyApplications(c *gin.Context) {
	statuses, ok := statusFilter(c)
	if !ok {
		return
	}
	result, err := api.service.ListMine(c.Request.Context(), types.ListApplicationsInput{Statuses: statuses})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.FromProjectionSummaries(result))
}

// Get /api/v1/applications/:id
// Find an application by id
func (api *ApplicationAPI) GetApplication(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	found, err := api.service.GetApplication(c.Request.Context(), types.ApplicationIdentifier{ID: id})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.FromProjection(found))
}

// Post /api/v1/applications/:id/pricing
// Quote a submitted application
func (api *ApplicationAPI) SetPricing(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload mapper.SetPricing
	if !bindBody(c, &payload, false) {
		return
	}
	api.respond(c, func() (*types.ApplicationProjection, error) {
		return api.service.SetPricing(c.Request.Context(), mapper.ToPricingInput(id, payload))
	})
}

// Post /api/v1/applications/:id/reject-pricing
// Decline the quote
func (api *ApplicationAPI) RejectPricing(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	api.respond(c, func() (*types.ApplicationProjection, error) {
		return api.service.RejectPricing(c.Request.Context(), types.ApplicationIdentifier{ID: id})
	})
}

// Post /api/v1/applications/:id/approve
// Approve a paid application
func (api *ApplicationAPI) Approve(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	api.respond(c, func() (*types.ApplicationProjection, error) {
		return api.service.Approve(c.Request.Context(), types.ApplicationIdentifier{ID: id})
	})
}

// Post /api/v1/applications/:id/reject
// Reject an application with a reason
func (api *ApplicationAPI) Reject(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload mapper.Decision
	if !bindBody(c, &payload, false) {
		return
	}
	api.respond(c, func() (*types.ApplicationProjection, error) {
		return api.service.Reject(c.Request.Context(), types.DecisionInput{ApplicationID: id, Reason: payload.Reason})
	})
}

// Post /api/v1/applications/:id/final-bill
// Settle an active stay
func (api *ApplicationAPI) GenerateFinalBill(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload mapper.FinalBill
	if !bindBody(c, &payload, true) {
		return
	}
	api.respond(c, func() (*types.ApplicationProjection, error) {
		return api.service.GenerateFinalBill(c.Request.Context(), mapper.ToFinalBillInput(id, payload))
	})
}

// Post /api/v1/applications/:id/feedback
// Rate a completed stay
func (api *ApplicationAPI) SubmitFeedback(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload mapper.Feedback
	if !bindBody(c, &payload, false) {
		return
	}
	api.respond(c, func() (*types.ApplicationProjection, error) {
		return api.service.SubmitFeedback(c.Request.Context(), mapper.ToFeedbackInput(id, payload))
	})
}

// Post /api/v1/applications/:id/cancel
// Cancel an application before drop-off
func (api *ApplicationAPI) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload mapper.Cancel
	if !bindBody(c, &payload, true) {
		return
	}
	cancelled, err := api.service.Cancel(c.Request.Context(), types.CancelInput{ApplicationID: id, Reason: payload.Reason})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.StatusResponse{ID: cancelled.Entity.ID, Status: string(cancelled.Entity.Status)})
}

// Post /api/v1/applications/:id/override-cancel
// Cancel any non-terminal application (admin, audited)
func (api *ApplicationAPI) OverrideCancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var payload mapper.Decision
	if !bindBody(c, &payload, false) {
		return
	}
	api.respond(c, func() (*types.ApplicationProjection, error) {
		return api.service.OverrideCancel(c.Request.Context(), types.DecisionInput{ApplicationID: id, Reason: payload.Reason})
	})
}

func (api *ApplicationAPI) respond(c *gin.Context, call func() (*types.ApplicationProjection, error)) {
	updated, err := call()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.FromProjection(updated))
}
