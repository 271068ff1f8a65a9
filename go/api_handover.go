package careserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/adapters/http/mapper"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application/types"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
)

// HandoverAPI exposes the OTP handover protocol.
type HandoverAPI struct {
	service ports.Service
}

// NewHandoverAPI creates a HandoverAPI backed by the provided service.
func NewHandoverAPI(service ports.Service) HandoverAPI {
	return HandoverAPI{service: service}
}

// Post /api/v1/handover/otp
// Issue a drop-off or pick-up code to the owner
func (api *HandoverAPI) RequestOTP(c *gin.Context) {
	var payload mapper.HandoverOTPRequest
	if !bindBody(c, &payload, false) {
		return
	}
	issued, err := api.service.RequestHandoverOTP(c.Request.Context(), types.HandoverOTPInput{
		ApplicationID: payload.ApplicationID,
		Purpose:       payload.Purpose,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusCreated, mapper.FromIssuedOTP(issued))
}

// Post /api/v1/handover/verify
// Confirm custody transfer with the owner's code
func (api *HandoverAPI) VerifyHandover(c *gin.Context) {
	var payload mapper.HandoverVerifyRequest
	if !bindBody(c, &payload, false) {
		return
	}
	updated, err := api.service.ConfirmHandover(c.Request.Context(), types.ConfirmHandoverInput{
		ApplicationID: payload.ApplicationID,
		Purpose:       payload.Purpose,
		Code:          payload.OTP,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, mapper.FromProjection(updated))
}
