package handler

import (
	"net/http"

	"github.com/zeromicro/go-zero/rest/httpx"

	"sigex/internal/logic"
	"sigex/internal/svc"
	"sigex/internal/types"
)

func RecentOrdersHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.RecentOrdersRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		l := logic.NewRecentOrdersLogic(r.Context(), svcCtx)
		resp, err := l.RecentOrders(&req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}
		httpx.OkJsonCtx(r.Context(), w, resp)
	}
}
