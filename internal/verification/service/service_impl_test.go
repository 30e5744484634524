package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/wakilihq/paygate/internal/clock"
	"github.com/wakilihq/paygate/internal/config"
	darajadomain "github.com/wakilihq/paygate/internal/daraja/domain"
	"github.com/wakilihq/paygate/internal/paysession"
	"github.com/wakilihq/paygate/internal/verification/domain"
	"go.uber.org/zap"
)

type fakeQuerier struct {
	calls   int
	respond func(call int) (darajadomain.Outcome, error)
}

func (f *fakeQuerier) QueryStatus(ctx context.Context, checkoutRequestID string) (darajadomain.Outcome, error) {
	_ = ctx
	_ = checkoutRequestID
	f.calls++
	return f.respond(f.calls)
}

func testConfig() config.VerifyConfig {
	return config.VerifyConfig{
		MaxAttempts: 5,
		Delay:       time.Millisecond,
		Expiry:      30 * time.Minute,
	}
}

func setup(t *testing.T, querier darajadomain.StatusQuerier) (*service, *paysession.Store, *clock.FakeClock, string) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := paysession.New(node, clk)

	artifactID := store.StartNewArtifact("s1")
	if err := store.BindPayment("s1", paysession.BindRequest{
		ArtifactID:        artifactID,
		CheckoutRequestID: "ws_CO_123",
		PhoneHash:         "ab12cd34",
		Amount:            100,
	}); err != nil {
		t.Fatalf("bind: %v", err)
	}

	svc := newService(testConfig(), zap.NewNop(), store, querier, clk, nil)
	return svc, store, clk, artifactID
}

func TestEnsureAuthorizedSuccessOnThirdAttempt(t *testing.T) {
	querier := &fakeQuerier{respond: func(call int) (darajadomain.Outcome, error) {
		if call < 3 {
			return darajadomain.Outcome{State: darajadomain.OutcomePending}, nil
		}
		return darajadomain.Outcome{State: darajadomain.OutcomeSuccess, Code: "0"}, nil
	}}
	svc, _, _, artifactID := setup(t, querier)

	if err := svc.EnsureAuthorized(context.Background(), "s1", artifactID); err != nil {
		t.Fatalf("expected authorization, got %v", err)
	}
	if querier.calls != 3 {
		t.Fatalf("expected 3 queries, got %d", querier.calls)
	}

	// Cached: no further network calls.
	if err := svc.EnsureAuthorized(context.Background(), "s1", artifactID); err != nil {
		t.Fatalf("expected cached authorization, got %v", err)
	}
	if querier.calls != 3 {
		t.Fatalf("cached check issued %d extra queries", querier.calls-3)
	}
	if !svc.IsDownloadAuthorized("s1", artifactID) {
		t.Fatal("download gate closed after verification")
	}
}

func TestEnsureAuthorizedCancelledStopsImmediately(t *testing.T) {
	querier := &fakeQuerier{respond: func(call int) (darajadomain.Outcome, error) {
		return darajadomain.Outcome{State: darajadomain.OutcomeCancelled, Code: "1032"}, nil
	}}
	svc, _, _, artifactID := setup(t, querier)

	err := svc.EnsureAuthorized(context.Background(), "s1", artifactID)
	if !errors.Is(err, domain.ErrPaymentFailed) {
		t.Fatalf("expected ErrPaymentFailed, got %v", err)
	}
	if querier.calls != 1 {
		t.Fatalf("terminal outcome should not be retried, got %d calls", querier.calls)
	}
}

func TestEnsureAuthorizedTransientErrorsExhaustBudget(t *testing.T) {
	querier := &fakeQuerier{respond: func(call int) (darajadomain.Outcome, error) {
		return darajadomain.Outcome{}, fmt.Errorf("%w: connection refused", darajadomain.ErrNetwork)
	}}
	svc, _, _, artifactID := setup(t, querier)

	err := svc.EnsureAuthorized(context.Background(), "s1", artifactID)
	if !errors.Is(err, domain.ErrInconclusive) {
		t.Fatalf("expected ErrInconclusive, got %v", err)
	}
	if querier.calls != 5 {
		t.Fatalf("expected exactly 5 attempts, got %d", querier.calls)
	}
}

func TestEnsureAuthorizedNoRecord(t *testing.T) {
	querier := &fakeQuerier{respond: func(call int) (darajadomain.Outcome, error) {
		t.Fatal("no network call expected")
		return darajadomain.Outcome{}, nil
	}}
	svc, store, _, _ := setup(t, querier)
	store.ClearRecord("s1")

	err := svc.EnsureAuthorized(context.Background(), "s1", "doc_whatever")
	if !errors.Is(err, domain.ErrPaymentRequired) {
		t.Fatalf("expected ErrPaymentRequired, got %v", err)
	}
}

func TestEnsureAuthorizedArtifactMismatch(t *testing.T) {
	querier := &fakeQuerier{respond: func(call int) (darajadomain.Outcome, error) {
		t.Fatal("no network call expected")
		return darajadomain.Outcome{}, nil
	}}
	svc, _, _, _ := setup(t, querier)

	err := svc.EnsureAuthorized(context.Background(), "s1", "doc_other")
	if !errors.Is(err, domain.ErrPaymentRequired) {
		t.Fatalf("expected ErrPaymentRequired, got %v", err)
	}
}

func TestVerifiedRecordExpires(t *testing.T) {
	querier := &fakeQuerier{respond: func(call int) (darajadomain.Outcome, error) {
		return darajadomain.Outcome{State: darajadomain.OutcomeSuccess, Code: "0"}, nil
	}}
	svc, store, clk, artifactID := setup(t, querier)

	if err := svc.EnsureAuthorized(context.Background(), "s1", artifactID); err != nil {
		t.Fatalf("verify: %v", err)
	}

	clk.Advance(31 * time.Minute)

	if svc.IsDownloadAuthorized("s1", artifactID) {
		t.Fatal("31-minute-old payment still authorized")
	}
	if _, ok := store.Record("s1"); ok {
		t.Fatal("expired record not cleared")
	}

	err := svc.EnsureAuthorized(context.Background(), "s1", artifactID)
	if !errors.Is(err, domain.ErrPaymentRequired) {
		t.Fatalf("expected ErrPaymentRequired after clearing, got %v", err)
	}
}

func TestEnsureAuthorizedExpiredBeforeVerification(t *testing.T) {
	querier := &fakeQuerier{respond: func(call int) (darajadomain.Outcome, error) {
		t.Fatal("expired record should not reach the gateway")
		return darajadomain.Outcome{}, nil
	}}
	svc, store, clk, artifactID := setup(t, querier)

	clk.Advance(31 * time.Minute)

	err := svc.EnsureAuthorized(context.Background(), "s1", artifactID)
	if !errors.Is(err, domain.ErrPaymentExpired) {
		t.Fatalf("expected ErrPaymentExpired, got %v", err)
	}
	if _, ok := store.Record("s1"); ok {
		t.Fatal("expired record not cleared")
	}
}

func TestCallbackHintShortCircuitsPolling(t *testing.T) {
	querier := &fakeQuerier{respond: func(call int) (darajadomain.Outcome, error) {
		t.Fatal("hint should satisfy the first attempt")
		return darajadomain.Outcome{}, nil
	}}
	svc, _, _, artifactID := setup(t, querier)

	svc.RecordHint("ws_CO_123", "0")

	if err := svc.EnsureAuthorized(context.Background(), "s1", artifactID); err != nil {
		t.Fatalf("expected hint-driven authorization, got %v", err)
	}
	if querier.calls != 0 {
		t.Fatalf("hint should have saved the round trip, got %d calls", querier.calls)
	}
}

func TestCallbackHintFailureIsTerminal(t *testing.T) {
	querier := &fakeQuerier{respond: func(call int) (darajadomain.Outcome, error) {
		t.Fatal("hint should satisfy the first attempt")
		return darajadomain.Outcome{}, nil
	}}
	svc, _, _, artifactID := setup(t, querier)

	svc.RecordHint("ws_CO_123", "1037")

	err := svc.EnsureAuthorized(context.Background(), "s1", artifactID)
	if !errors.Is(err, domain.ErrPaymentFailed) {
		t.Fatalf("expected ErrPaymentFailed, got %v", err)
	}
}

func TestEnsureAuthorizedCancellableBetweenAttempts(t *testing.T) {
	querier := &fakeQuerier{respond: func(call int) (darajadomain.Outcome, error) {
		return darajadomain.Outcome{State: darajadomain.OutcomePending}, nil
	}}
	svc, _, _, artifactID := setup(t, querier)
	svc.cfg.Delay = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.EnsureAuthorized(ctx, "s1", artifactID)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if querier.calls != 1 {
		t.Fatalf("in-flight query should complete once, got %d", querier.calls)
	}
}
