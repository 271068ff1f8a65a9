package careserver

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	apierrors "github.com/Apurer/temporary-care-api/internal/shared/errors"
)

var boardingResponder = apierrors.NewChainedResponder("", boardingProblem)

// respondProblem maps a ProblemDetail through the shared responder.
func respondProblem(c *gin.Context, problem apierrors.ProblemDetail) {
	apierrors.Respond(c, problem)
}

// respondServiceError answers with the problem matching err's error code.
func respondServiceError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	boardingResponder.RespondError(c, err)
}

var problemByCode = map[string]apierrors.ProblemDetail{
	application.CodeInvalidInput:         apierrors.ErrValidation,
	application.CodeNotFound:             apierrors.ErrNotFound,
	application.CodeForbidden:            apierrors.ErrForbidden,
	application.CodeUnauthenticated:      apierrors.ErrUnauthorized,
	application.CodeConcurrentUpdate:     apierrors.ErrConflict,
	application.CodeInvalidTransition:    apierrors.ErrConflict,
	application.CodeNotCancellable:       apierrors.ErrConflict,
	application.CodeAlreadyRecorded:      apierrors.ErrConflict,
	application.CodePricingAlreadySet:    apierrors.ErrConflict,
	application.CodePricingMissing:       apierrors.ErrConflict,
	application.CodeFinalBillMissing:     apierrors.ErrConflict,
	application.CodeFeedbackSubmitted:    apierrors.ErrConflict,
	application.CodeIdempotencyConflict:  apierrors.ErrConflict,
	application.CodePaymentDeclined:      apierrors.ErrPaymentRequired,
	application.CodeAmountMismatch:       apierrors.ErrUnprocessable,
	application.CodeOTPExpired:           apierrors.ErrUnprocessable,
	application.CodeOTPAlreadyConsumed:   apierrors.ErrUnprocessable,
	application.CodeOTPMismatch:          apierrors.ErrUnprocessable,
	application.CodeOTPNotIssued:         apierrors.ErrUnprocessable,
	application.CodeHandoverNotRequested: apierrors.ErrUnprocessable,
	application.CodeOTPLockedOut:         apierrors.ErrTooManyRequests,
}

// boardingProblem maps application errors. Unknown errors fall through to a 500
// that does not leak their message.
func boardingProblem(err error) (apierrors.ProblemDetail, bool) {
	code := application.ErrorCode(err)
	problem, ok := problemByCode[code]
	if !ok {
		return apierrors.ProblemDetail{}, false
	}
	problem = problem.WithDetail(err.Error()).WithCode(code)
	if code == application.CodeOTPLockedOut {
		problem = problem.WithRetryAfter(retryAfter(err))
	}
	return problem, true
}

func retryAfter(err error) time.Duration {
	var locked *domain.LockedOutError
	if errors.As(err, &locked) {
		if d := locked.RetryAfter(time.Now()); d > 0 {
			return d
		}
	}
	return domain.LockoutWindow
}

func badRequest(c *gin.Context, err error) {
	respondProblem(c, apierrors.ErrBadRequest.WithDetail(err.Error()))
}

func validationFailed(c *gin.Context, fields map[string]string) {
	respondProblem(c, apierrors.NewValidationProblem(fields).WithCode(application.CodeInvalidInput))
}

func respondProblemNotFound(c *gin.Context, kind string) {
	respondProblem(c, apierrors.NewNotFoundProblem("payment kind", kind))
}
