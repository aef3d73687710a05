package runtime

import (
	"context"

	"github.com/dop251/goja"
)

// CallInfo describes the script call a host body is serving.
type CallInfo struct {
	Bridge *Bridge
	This   goja.Value
	Module string
	Name   string
}

type callInfoKey struct{}

func withCall(ctx context.Context, info *CallInfo) context.Context {
	return context.WithValue(ctx, callInfoKey{}, info)
}

// CallInfoFrom returns the call information stored in ctx.
func CallInfoFrom(ctx context.Context) (*CallInfo, bool) {
	info, ok := ctx.Value(callInfoKey{}).(*CallInfo)
	return info, ok
}

// BridgeFrom returns the bridge serving the call in ctx.
func BridgeFrom(ctx context.Context) *Bridge {
	if info, ok := CallInfoFrom(ctx); ok {
		return info.Bridge
	}
	return nil
}
