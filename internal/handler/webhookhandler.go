package handler

import (
	"io"
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"sigex/internal/logic"
	"sigex/internal/svc"
	"sigex/internal/types"
)

// SecretHeader carries the shared webhook secret when the alert template
// keeps it out of the body.
const SecretHeader = "X-Tradingview-Secret"

// maxAlertBody bounds webhook reads; TradingView alerts are tiny.
const maxAlertBody = 64 << 10

func WebhookHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxAlertBody))
		if err != nil {
			httpx.WriteJson(w, http.StatusBadRequest,
				&types.WebhookResponse{Status: "rejected", Reason: "unreadable request body"})
			return
		}

		l := logic.NewWebhookLogic(r.Context(), svcCtx)
		resp, status := l.Handle(body, r.Header.Get(SecretHeader))
		httpx.WriteJson(w, status, resp)
	}
}
