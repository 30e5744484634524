package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// stkCallbackBody is the gateway's asynchronous push notification. Only the
// identifying fields are decoded; the metadata items may carry the payer's
// number and are never logged.
type stkCallbackBody struct {
	Body struct {
		STKCallback struct {
			MerchantRequestID string      `json:"MerchantRequestID"`
			CheckoutRequestID string      `json:"CheckoutRequestID"`
			ResultCode        json.Number `json:"ResultCode"`
			ResultDesc        string      `json:"ResultDesc"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// HandleDarajaCallback ingests the gateway's push notification. The
// acknowledgment is about receipt, not business outcome, so any well-formed
// body gets a success response. Polling stays authoritative; the result code
// is only recorded as a hint for the next poll.
func (s *Server) HandleDarajaCallback(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil || len(bytes.TrimSpace(payload)) == 0 {
		s.metrics.IncCallback("error")
		c.JSON(http.StatusBadRequest, gin.H{"status": "error"})
		return
	}

	var body stkCallbackBody
	if err := json.Unmarshal(payload, &body); err != nil {
		s.metrics.IncCallback("error")
		s.log.Warn("malformed gateway callback", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"status": "error"})
		return
	}

	cb := body.Body.STKCallback
	s.log.Info("gateway callback received",
		zap.String("merchant_request_id", cb.MerchantRequestID),
		zap.String("checkout_request_id", cb.CheckoutRequestID),
		zap.String("result_code", cb.ResultCode.String()),
		zap.String("result_desc", cb.ResultDesc),
	)

	if cb.CheckoutRequestID != "" {
		s.verifySvc.RecordHint(cb.CheckoutRequestID, cb.ResultCode.String())
	}

	s.metrics.IncCallback("received")
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
