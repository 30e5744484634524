package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/wakilihq/paygate/internal/clock"
	"github.com/wakilihq/paygate/internal/config"
	"github.com/wakilihq/paygate/internal/daraja/domain"
	"github.com/wakilihq/paygate/internal/masking"
	"github.com/wakilihq/paygate/internal/telemetry"
	"github.com/wakilihq/paygate/internal/vault"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	timestampLayout = "20060102150405"
	minTokenLen     = 10

	// Token lifetime the gateway reports when expires_in is absent.
	defaultTokenLifetime = 3599 * time.Second
	// Refresh this far ahead of the reported expiry.
	tokenExpiryMargin = 60 * time.Second

	// Gateway error code for "the transaction is being processed".
	pendingErrorCode = "500.001.1001"

	resultCodeSuccess   = "0"
	resultCodeCancelled = "1032"
	resultCodeTimeout   = "1037"

	defaultDescription = "Document generation payment"

	referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Vault   *vault.Vault
	Clock   clock.Clock
	Metrics *telemetry.Metrics `optional:"true"`
}

type service struct {
	cfg     config.DarajaConfig
	log     *zap.Logger
	vault   *vault.Vault
	clock   clock.Clock
	metrics *telemetry.Metrics
	client  *http.Client

	mu    sync.Mutex
	token domain.TokenCache
}

// New builds the gateway client.
func New(p Params) (domain.Service, error) {
	if p.Log == nil || p.Vault == nil || p.Clock == nil {
		return nil, domain.ErrGateway
	}
	s := &service{
		cfg:     p.Cfg.Daraja,
		log:     p.Log.Named("daraja"),
		vault:   p.Vault,
		clock:   p.Clock,
		metrics: p.Metrics,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	s.log.Info("gateway client configured",
		zap.String("shortcode", s.cfg.Shortcode),
		zap.String("consumer_key", masking.MaskSecret(s.cfg.ConsumerKey)),
	)
	return s, nil
}

// SanitizePhone normalizes raw input to the 254XXXXXXXXX wire format.
func (s *service) SanitizePhone(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-':
			return -1
		default:
			return r
		}
	}, strings.TrimSpace(raw))

	cleaned = strings.TrimPrefix(cleaned, "+")
	if cleaned == "" {
		return "", fmt.Errorf("%w: empty number", domain.ErrInvalidPhone)
	}
	for _, r := range cleaned {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: non-numeric input", domain.ErrInvalidPhone)
		}
	}

	var normalized string
	switch {
	case len(cleaned) == 10 && strings.HasPrefix(cleaned, "0"):
		normalized = "254" + cleaned[1:]
	case len(cleaned) == 9:
		normalized = "254" + cleaned
	case len(cleaned) == 12 && strings.HasPrefix(cleaned, "254"):
		normalized = cleaned
	default:
		return "", fmt.Errorf("%w: unrecognized format", domain.ErrInvalidPhone)
	}

	if len(normalized) != 12 || !strings.HasPrefix(normalized, "254") {
		return "", fmt.Errorf("%w: normalization failed", domain.ErrInvalidPhone)
	}
	return normalized, nil
}

// InitiatePush sends the push payment request. The payer's number is encrypted
// immediately after sanitization and only rematerialized while serializing the
// outbound payload.
func (s *service) InitiatePush(ctx context.Context, req domain.PushRequest) (*domain.PushResult, error) {
	normalized, err := s.SanitizePhone(req.Phone)
	if err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidAmount)
	}

	reference := strings.TrimSpace(req.AccountReference)
	if reference == "" {
		reference = s.newAccountReference()
	}
	if len(reference) > domain.MaxReferenceLen {
		reference = reference[:domain.MaxReferenceLen]
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = defaultDescription
	}

	maskedPhone := masking.MaskPhone(normalized)
	phoneHash := vault.Hash(normalized)

	encryptedPhone, err := s.vault.Encrypt(normalized)
	if err != nil {
		return nil, err
	}
	encryptedRef, err := s.vault.Encrypt(reference)
	if err != nil {
		return nil, err
	}
	normalized = ""

	s.log.Info("initiating stk push",
		zap.String("phone", maskedPhone),
		zap.String("phone_hash", phoneHash),
		zap.Int64("amount", req.Amount),
		zap.String("account_reference", reference),
	)

	payload, err := s.buildPushPayload(encryptedPhone, encryptedRef, req.Amount, description)
	if err != nil {
		return nil, err
	}

	body, status, err := s.doAuthorized(ctx, "stk_push", s.cfg.PushURL, payload)
	if err != nil {
		s.metrics.IncSTKPush("error")
		return nil, err
	}

	var resp stkPushResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		s.metrics.IncSTKPush("error")
		return nil, fmt.Errorf("%w: malformed push response", domain.ErrGateway)
	}

	if status < 200 || status >= 300 || resp.ResponseCode != "0" {
		s.metrics.IncSTKPush("rejected")
		s.log.Warn("stk push rejected",
			zap.String("phone_hash", phoneHash),
			zap.String("error_code", resp.ErrorCode),
			zap.String("error_message", resp.ErrorMessage),
		)
		message := resp.ErrorMessage
		if message == "" {
			message = resp.ResponseDescription
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrGateway, message)
	}

	s.metrics.IncSTKPush("accepted")
	s.log.Info("stk push accepted",
		zap.String("phone_hash", phoneHash),
		zap.String("checkout_request_id", resp.CheckoutRequestID),
	)

	return &domain.PushResult{
		CheckoutRequestID:   resp.CheckoutRequestID,
		MerchantRequestID:   resp.MerchantRequestID,
		ResponseDescription: resp.ResponseDescription,
		EncryptedPhone:      encryptedPhone,
		PhoneHash:           phoneHash,
		AccountReference:    reference,
	}, nil
}

// QueryStatus asks the gateway for the outcome of a previously initiated push.
func (s *service) QueryStatus(ctx context.Context, checkoutRequestID string) (domain.Outcome, error) {
	if strings.TrimSpace(checkoutRequestID) == "" {
		return domain.Outcome{}, fmt.Errorf("%w: missing checkout request id", domain.ErrGateway)
	}

	timestamp := s.clock.Now().Format(timestampLayout)
	payload := stkQueryPayload{
		BusinessShortCode: s.cfg.Shortcode,
		Password:          s.password(timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}

	body, status, err := s.doAuthorized(ctx, "stk_query", s.cfg.QueryURL, payload)
	if err != nil {
		s.metrics.IncStatusQuery("error")
		return domain.Outcome{}, err
	}

	var resp stkQueryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		s.metrics.IncStatusQuery("error")
		return domain.Outcome{}, fmt.Errorf("%w: malformed query response", domain.ErrGateway)
	}

	if status < 200 || status >= 300 {
		if resp.ErrorCode == pendingErrorCode {
			outcome := domain.Outcome{State: domain.OutcomePending, Code: resp.ErrorCode, Description: resp.ErrorMessage}
			s.metrics.IncStatusQuery(string(outcome.State))
			return outcome, nil
		}
		s.metrics.IncStatusQuery("error")
		return domain.Outcome{}, fmt.Errorf("%w: %s", domain.ErrGateway, resp.ErrorCode)
	}

	outcome := mapResultCode(resp)
	s.metrics.IncStatusQuery(string(outcome.State))
	return outcome, nil
}

func mapResultCode(resp stkQueryResponse) domain.Outcome {
	switch resp.ResultCode {
	case resultCodeSuccess:
		return domain.Outcome{State: domain.OutcomeSuccess, Code: resp.ResultCode, Description: resp.ResultDesc}
	case resultCodeCancelled:
		return domain.Outcome{State: domain.OutcomeCancelled, Code: resp.ResultCode, Description: resp.ResultDesc}
	case resultCodeTimeout:
		return domain.Outcome{State: domain.OutcomeTimeout, Code: resp.ResultCode, Description: resp.ResultDesc}
	default:
		return domain.Outcome{State: domain.OutcomeUnknown, Code: resp.ResultCode, Description: resp.ResultDesc}
	}
}

// buildPushPayload decrypts the payer data at the last possible moment.
func (s *service) buildPushPayload(encryptedPhone, encryptedRef string, amount int64, description string) (stkPushPayload, error) {
	phone, err := s.vault.Decrypt(encryptedPhone)
	if err != nil {
		return stkPushPayload{}, err
	}
	reference, err := s.vault.Decrypt(encryptedRef)
	if err != nil {
		return stkPushPayload{}, err
	}

	timestamp := s.clock.Now().Format(timestampLayout)
	return stkPushPayload{
		BusinessShortCode: s.cfg.Shortcode,
		Password:          s.password(timestamp),
		Timestamp:         timestamp,
		TransactionType:   domain.TransactionType,
		Amount:            amount,
		PartyA:            phone,
		PartyB:            s.cfg.TillNumber,
		PhoneNumber:       phone,
		CallBackURL:       s.cfg.CallbackURL,
		TransactionDesc:   description,
		AccountReference:  reference,
	}, nil
}

func (s *service) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(s.cfg.Shortcode + s.cfg.Passkey + timestamp))
}

// newAccountReference builds a 12-char reference from the clock and a random
// suffix, unique enough without a central counter.
func (s *service) newAccountReference() string {
	timestampPart := strconv.FormatInt(s.clock.Now().Unix(), 10)
	if len(timestampPart) > 4 {
		timestampPart = timestampPart[len(timestampPart)-4:]
	}

	var b strings.Builder
	b.WriteString(timestampPart)
	for b.Len() < domain.MaxReferenceLen {
		b.WriteByte(referenceAlphabet[rand.IntN(len(referenceAlphabet))])
	}
	return b.String()
}

// accessToken returns the cached token, fetching a fresh one when missing or
// expired. The mutex makes the refresh single-flight: concurrent callers wait
// and reuse the winner's token.
func (s *service) accessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token.Valid(s.clock.Now()) {
		return s.token.Value, nil
	}
	return s.fetchTokenLocked(ctx)
}

// refreshToken discards a token the gateway rejected and fetches a new one.
// When another caller already replaced the stale value, its token is reused.
func (s *service) refreshToken(ctx context.Context, stale string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token.Value != stale && s.token.Valid(s.clock.Now()) {
		return s.token.Value, nil
	}
	s.token = domain.TokenCache{}
	return s.fetchTokenLocked(ctx)
}

func (s *service) fetchTokenLocked(ctx context.Context) (string, error) {
	tokenURL, err := url.Parse(s.cfg.TokenURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid token endpoint", domain.ErrAuth)
	}
	query := tokenURL.Query()
	query.Set("grant_type", "client_credentials")
	tokenURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tokenURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrAuth, err)
	}
	req.SetBasicAuth(s.cfg.ConsumerKey, s.cfg.ConsumerSecret)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := s.client.Do(req)
	s.metrics.ObserveGateway("token", time.Since(start))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("%w: token endpoint returned %d", domain.ErrAuth, res.StatusCode)
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: malformed token response", domain.ErrAuth)
	}
	if len(resp.AccessToken) < minTokenLen {
		return "", fmt.Errorf("%w: %w", domain.ErrAuth, domain.ErrMalformedToken)
	}

	lifetime := defaultTokenLifetime
	if seconds, err := resp.ExpiresIn.Int64(); err == nil && seconds > 0 {
		lifetime = time.Duration(seconds) * time.Second
	}
	if lifetime > tokenExpiryMargin {
		lifetime -= tokenExpiryMargin
	}

	s.token = domain.TokenCache{
		Value:     resp.AccessToken,
		ExpiresAt: s.clock.Now().Add(lifetime),
	}
	s.metrics.IncTokenRefresh()
	s.log.Debug("access token refreshed", zap.Time("expires_at", s.token.ExpiresAt))
	return s.token.Value, nil
}

// doAuthorized posts the payload with a bearer token, refreshing and retrying
// exactly once when the gateway rejects the credentials.
func (s *service) doAuthorized(ctx context.Context, operation, endpoint string, payload any) ([]byte, int, error) {
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, 0, err
	}

	body, status, err := s.post(ctx, operation, endpoint, token, payload)
	if err != nil {
		return nil, 0, err
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		token, err = s.refreshToken(ctx, token)
		if err != nil {
			return nil, 0, err
		}
		body, status, err = s.post(ctx, operation, endpoint, token, payload)
		if err != nil {
			return nil, 0, err
		}
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return nil, 0, fmt.Errorf("%w: gateway rejected refreshed token", domain.ErrAuth)
		}
	}

	return body, status, nil
}

func (s *service) post(ctx context.Context, operation, endpoint, token string, payload any) ([]byte, int, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := s.client.Do(req)
	s.metrics.ObserveGateway(operation, time.Since(start))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	return body, res.StatusCode, nil
}
