package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest"

	"sigex/internal/svc"
)

// RegisterHandlers wires the webhook ingress and the ops surface.
func RegisterHandlers(server *rest.Server, serverCtx *svc.ServiceContext) {
	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodPost,
				Path:    "/webhook/tradingview",
				Handler: WebhookHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/healthz",
				Handler: HealthHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/orders/recent",
				Handler: RecentOrdersHandler(serverCtx),
			},
		},
	)
}
