package logic

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"sigex/internal/svc"
	"sigex/internal/types"
	"sigex/pkg/dispatch"
	executorpkg "sigex/pkg/executor"
	"sigex/pkg/signal"
)

type WebhookLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewWebhookLogic(ctx context.Context, svcCtx *svc.ServiceContext) *WebhookLogic {
	return &WebhookLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Handle runs one TradingView alert through secret verification,
// normalization, dedupe, and enqueue. It returns the response body and the
// HTTP status to write: 200 accepted/dry-run/duplicate, 400 undecodable,
// 401 bad secret, 422 invalid fields, 503 queue full.
func (l *WebhookLogic) Handle(body []byte, headerSecret string) (*types.WebhookResponse, int) {
	cfg := l.svcCtx.ExecutionConfig
	if cfg == nil || l.svcCtx.Dispatcher == nil {
		l.Error("webhook rejected: execution pipeline not configured")
		return &types.WebhookResponse{Status: "error", Reason: "execution pipeline not configured"},
			http.StatusInternalServerError
	}

	payload, err := signal.Decode(body)
	if err != nil {
		l.Infof("webhook rejected: %v", err)
		return &types.WebhookResponse{Status: "rejected", Reason: err.Error()}, http.StatusBadRequest
	}

	provided := headerSecret
	if provided == "" {
		if fromPayload, ok := payload["secret"].(string); ok {
			provided = fromPayload
		}
	}
	if resp, status := l.verifySecret(provided, cfg.WebhookSecret); resp != nil {
		return resp, status
	}
	// The secret never reaches normalization, the dedupe digest, or logs.
	delete(payload, "secret")

	sig, err := signal.FromPayload(payload, cfg.SymbolWhitelist...)
	if err != nil {
		l.Infof("webhook rejected: %v", err)
		return &types.WebhookResponse{Status: "rejected", Reason: err.Error()},
			http.StatusUnprocessableEntity
	}

	if key := signal.DedupeKey(sig); l.svcCtx.Dedupe != nil && l.svcCtx.Dedupe.Seen(key) {
		l.Infof("duplicate alert suppressed: %s", key)
		return &types.WebhookResponse{Status: "duplicate"}, http.StatusOK
	}

	req := executorpkg.RequestFromSignal(sig)
	now := time.Now()
	req.ClientOrderID = signal.ClientOrderID(cfg.CloidPrefix, sig.AlertID, sig.Raw, now)

	task := dispatch.Task{Signal: sig, Request: req, EnqueuedAt: now}
	if err := l.svcCtx.Dispatcher.Enqueue(task); err != nil {
		if errors.Is(err, dispatch.ErrQueueFull) {
			l.Errorf("webhook rejected: %v", err)
			return &types.WebhookResponse{Status: "rejected", Reason: "queue full"},
				http.StatusServiceUnavailable
		}
		l.Errorf("webhook rejected: %v", err)
		return &types.WebhookResponse{Status: "rejected", Reason: err.Error()},
			http.StatusUnprocessableEntity
	}

	status := "accepted"
	if cfg.Trade.DryRun {
		status = "dry-run"
	}
	l.Infof("alert %s: %s %s cloid=%s", status, sig.Symbol, sig.Action, req.ClientOrderID)
	return &types.WebhookResponse{Status: status, ClientOrderID: req.ClientOrderID}, http.StatusOK
}

func (l *WebhookLogic) verifySecret(provided, expected string) (*types.WebhookResponse, int) {
	if expected == "" {
		l.Error("webhook secret is not configured")
		return &types.WebhookResponse{Status: "error", Reason: "webhook secret not configured"},
			http.StatusInternalServerError
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
		l.Infof("webhook rejected: invalid secret")
		return &types.WebhookResponse{Status: "rejected", Reason: "invalid webhook secret"},
			http.StatusUnauthorized
	}
	return nil, 0
}
