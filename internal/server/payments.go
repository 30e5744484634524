package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	darajadomain "github.com/wakilihq/paygate/internal/daraja/domain"
	"github.com/wakilihq/paygate/internal/paysession"
	"go.uber.org/zap"
)

type initiatePaymentRequest struct {
	Phone            string `json:"phone"`
	Amount           int64  `json:"amount"`
	Description      string `json:"description"`
	AccountReference string `json:"account_reference"`
}

// InitiatePayment pushes a payment prompt to the payer and binds the gateway's
// acknowledgment to the session's current artifact.
func (s *Server) InitiatePayment(c *gin.Context) {
	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	sid := sessionID(c)
	artifactID, ok := s.store.CurrentArtifactID(sid)
	if !ok {
		AbortWithError(c, ErrNoActiveArtifact)
		return
	}

	result, err := s.darajaSvc.InitiatePush(c.Request.Context(), darajadomain.PushRequest{
		Phone:            req.Phone,
		Amount:           req.Amount,
		Description:      req.Description,
		AccountReference: req.AccountReference,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.store.BindPayment(sid, paysession.BindRequest{
		ArtifactID:        artifactID,
		CheckoutRequestID: result.CheckoutRequestID,
		EncryptedPhone:    result.EncryptedPhone,
		PhoneHash:         result.PhoneHash,
		AccountReference:  result.AccountReference,
		Amount:            req.Amount,
	}); err != nil {
		AbortWithError(c, err)
		return
	}

	s.log.Info("payment bound to artifact",
		zap.String("artifact_id", artifactID),
		zap.String("checkout_request_id", result.CheckoutRequestID),
		zap.String("phone_hash", result.PhoneHash),
	)

	c.JSON(http.StatusAccepted, gin.H{
		"artifact_id":         artifactID,
		"checkout_request_id": result.CheckoutRequestID,
		"account_reference":   result.AccountReference,
		"message":             "check your phone for the payment prompt",
	})
}
