package logic

import (
	"context"

	"github.com/zeromicro/go-zero/core/logx"

	"sigex/internal/svc"
	"sigex/internal/types"
)

type HealthLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewHealthLogic(ctx context.Context, svcCtx *svc.ServiceContext) *HealthLogic {
	return &HealthLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// Health reports liveness plus queue and breaker state.
func (l *HealthLogic) Health() *types.HealthResponse {
	resp := &types.HealthResponse{Status: "ok", Env: l.svcCtx.Config.Env}

	if cfg := l.svcCtx.ExecutionConfig; cfg != nil {
		resp.DryRun = cfg.Trade.DryRun
	}
	if d := l.svcCtx.Dispatcher; d != nil {
		stats := d.QueueStats()
		resp.Queue = &types.QueueStatus{
			Depth:    stats.QueueDepth,
			Capacity: stats.QueueCapacity,
			Workers:  stats.Workers,
		}
	}
	if e := l.svcCtx.Executor; e != nil {
		state, failures := e.BreakerState()
		resp.Breaker = &types.BreakerStatus{State: state, Failures: failures}
	}
	if dd := l.svcCtx.Dedupe; dd != nil {
		resp.DedupeEntries = dd.Len()
	}
	if j := l.svcCtx.Journal; j != nil {
		resp.Journal = j.Path()
	}
	return resp
}
