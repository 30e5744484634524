package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	darajadomain "github.com/wakilihq/paygate/internal/daraja/domain"
	"github.com/wakilihq/paygate/internal/paysession"
	verificationdomain "github.com/wakilihq/paygate/internal/verification/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest   = errors.New("invalid_request")
	ErrNoActiveArtifact = errors.New("no_active_artifact")
)

// ErrorHandlingMiddleware maps domain errors onto HTTP responses after the
// handler chain runs.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: "invalid request",
		}
	case errors.Is(err, darajadomain.ErrInvalidPhone):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_phone",
			Message: "phone number is not a valid mobile number",
		}
	case errors.Is(err, darajadomain.ErrInvalidAmount):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_amount",
			Message: "amount must be a positive whole number",
		}
	case errors.Is(err, ErrNoActiveArtifact):
		return http.StatusConflict, errorPayload{
			Type:    "no_active_artifact",
			Message: "generate a document before initiating payment",
		}
	case errors.Is(err, paysession.ErrStaleBinding):
		return http.StatusConflict, errorPayload{
			Type:    "stale_binding",
			Message: "payment does not belong to the current document",
		}
	case errors.Is(err, verificationdomain.ErrPaymentRequired):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "payment_required",
			Message: "complete payment before downloading",
		}
	case errors.Is(err, verificationdomain.ErrPaymentExpired):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "payment_expired",
			Message: "payment session expired, please make a new payment",
		}
	case errors.Is(err, verificationdomain.ErrPaymentFailed):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "payment_not_completed",
			Message: "payment was not completed",
		}
	case errors.Is(err, verificationdomain.ErrInconclusive):
		return http.StatusConflict, errorPayload{
			Type:    "verification_inconclusive",
			Message: "could not confirm payment yet, please retry",
		}
	case errors.Is(err, darajadomain.ErrAuth),
		errors.Is(err, darajadomain.ErrGateway),
		errors.Is(err, darajadomain.ErrNetwork):
		return http.StatusBadGateway, errorPayload{
			Type:    "gateway_error",
			Message: "payment gateway is unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}
