package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wakilihq/paygate/internal/clock"
	"github.com/wakilihq/paygate/internal/config"
	darajadomain "github.com/wakilihq/paygate/internal/daraja/domain"
	"github.com/wakilihq/paygate/internal/paysession"
	"github.com/wakilihq/paygate/internal/telemetry"
	"github.com/wakilihq/paygate/internal/verification/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Store   *paysession.Store
	Gateway darajadomain.Service
	Clock   clock.Clock
	Metrics *telemetry.Metrics `optional:"true"`
}

type service struct {
	cfg     config.VerifyConfig
	log     *zap.Logger
	store   *paysession.Store
	gateway darajadomain.StatusQuerier
	clock   clock.Clock
	metrics *telemetry.Metrics

	hintMu sync.Mutex
	hints  map[string]string
}

// New builds the verification state machine.
func New(p Params) (domain.Service, error) {
	if p.Log == nil || p.Store == nil || p.Gateway == nil || p.Clock == nil {
		return nil, fmt.Errorf("verification: missing dependency")
	}
	return newService(p.Cfg.Verify, p.Log, p.Store, p.Gateway, p.Clock, p.Metrics), nil
}

func newService(cfg config.VerifyConfig, log *zap.Logger, store *paysession.Store, gateway darajadomain.StatusQuerier, clk clock.Clock, metrics *telemetry.Metrics) *service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 5 * time.Second
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 30 * time.Minute
	}
	return &service{
		cfg:     cfg,
		log:     log.Named("verification"),
		store:   store,
		gateway: gateway,
		clock:   clk,
		metrics: metrics,
		hints:   make(map[string]string),
	}
}

func (s *service) IsDownloadAuthorized(sessionID, artifactID string) bool {
	rec, ok := s.store.Record(sessionID)
	if !ok || rec.ArtifactID != artifactID {
		return false
	}
	if s.expired(rec) {
		s.store.ClearRecord(sessionID)
		s.log.Info("verified payment expired, clearing record",
			zap.String("phone_hash", rec.PhoneHash),
			zap.String("artifact_id", rec.ArtifactID),
		)
		return false
	}
	return rec.Verified
}

func (s *service) EnsureAuthorized(ctx context.Context, sessionID, artifactID string) error {
	rec, ok := s.store.Record(sessionID)
	if !ok || rec.ArtifactID != artifactID {
		return domain.ErrPaymentRequired
	}
	if s.expired(rec) {
		s.store.ClearRecord(sessionID)
		s.metrics.IncVerification("expired")
		return domain.ErrPaymentExpired
	}
	if rec.Verified {
		return nil
	}

	log := s.log.With(
		zap.String("phone_hash", rec.PhoneHash),
		zap.String("checkout_request_id", rec.CheckoutRequestID),
	)

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		outcome, err := s.resolveOutcome(ctx, rec.CheckoutRequestID)
		if err != nil {
			log.Warn("status query failed", zap.Int("attempt", attempt), zap.Error(err))
		} else {
			switch outcome.State {
			case darajadomain.OutcomeSuccess:
				s.store.MarkVerified(sessionID, artifactID)
				s.metrics.IncVerification("verified")
				log.Info("payment verified", zap.Int("attempt", attempt))
				return nil
			case darajadomain.OutcomeCancelled, darajadomain.OutcomeTimeout:
				s.metrics.IncVerification("failed")
				log.Info("payment not completed",
					zap.String("state", string(outcome.State)),
					zap.String("code", outcome.Code),
				)
				return fmt.Errorf("%w: %s", domain.ErrPaymentFailed, outcome.State)
			default:
				log.Debug("payment still pending",
					zap.Int("attempt", attempt),
					zap.String("state", string(outcome.State)),
					zap.String("code", outcome.Code),
				)
			}
		}

		if attempt < s.cfg.MaxAttempts {
			if err := s.wait(ctx); err != nil {
				return err
			}
		}
	}

	s.metrics.IncVerification("inconclusive")
	return domain.ErrInconclusive
}

func (s *service) RecordHint(checkoutRequestID, resultCode string) {
	if checkoutRequestID == "" || resultCode == "" {
		return
	}
	s.hintMu.Lock()
	defer s.hintMu.Unlock()
	s.hints[checkoutRequestID] = resultCode
}

// resolveOutcome consumes a callback hint when one arrived, saving a network
// round trip; otherwise it queries the gateway. In-flight queries run detached
// from the caller's cancellation so an abandoned wait still ends with the
// record reflecting the true outcome.
func (s *service) resolveOutcome(ctx context.Context, checkoutRequestID string) (darajadomain.Outcome, error) {
	if code, ok := s.takeHint(checkoutRequestID); ok {
		return outcomeFromCode(code), nil
	}
	return s.gateway.QueryStatus(context.WithoutCancel(ctx), checkoutRequestID)
}

func (s *service) takeHint(checkoutRequestID string) (string, bool) {
	s.hintMu.Lock()
	defer s.hintMu.Unlock()
	code, ok := s.hints[checkoutRequestID]
	if ok {
		delete(s.hints, checkoutRequestID)
	}
	return code, ok
}

func outcomeFromCode(code string) darajadomain.Outcome {
	switch code {
	case "0":
		return darajadomain.Outcome{State: darajadomain.OutcomeSuccess, Code: code}
	case "1032":
		return darajadomain.Outcome{State: darajadomain.OutcomeCancelled, Code: code}
	case "1037":
		return darajadomain.Outcome{State: darajadomain.OutcomeTimeout, Code: code}
	default:
		return darajadomain.Outcome{State: darajadomain.OutcomeUnknown, Code: code}
	}
}

func (s *service) wait(ctx context.Context) error {
	timer := time.NewTimer(s.cfg.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *service) expired(rec paysession.PaymentRecord) bool {
	return s.clock.Now().Sub(rec.CreatedAt) > s.cfg.Expiry
}
