package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"sigex/internal/logic"
	"sigex/internal/svc"
)

func HealthHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := logic.NewHealthLogic(r.Context(), svcCtx)
		httpx.OkJsonCtx(r.Context(), w, l.Health())
	}
}
