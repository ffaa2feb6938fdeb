package providers

import "context"

type contextKey string

const callInfoKey contextKey = "provider_call_info"

// CallInfo reports what the governed path did for one call
type CallInfo struct {
	CacheHit bool
	Cost     float64
}

// WithCallInfo attaches a fresh CallInfo to ctx
func WithCallInfo(ctx context.Context) (context.Context, *CallInfo) {
	info := &CallInfo{}
	return context.WithValue(ctx, callInfoKey, info), info
}

// CallInfoFromContext returns the attached CallInfo, or nil
func CallInfoFromContext(ctx context.Context) *CallInfo {
	info, _ := ctx.Value(callInfoKey).(*CallInfo)
	return info
}
