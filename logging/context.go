package logging

import (
	"context"

	"go.viam.com/utils"
)

type debugKeyCtxKey struct{}

// EnableDebugMode marks ctx so CDebugw logs regardless of the logger's level. The key tags
// every such line; an empty key is replaced by a random one.
func EnableDebugMode(ctx context.Context, key string) context.Context {
	if key == "" {
		key = utils.RandomAlphaString(6)
	}
	return context.WithValue(ctx, debugKeyCtxKey{}, key)
}

// DebugKey returns the key ctx was marked with, if any.
func DebugKey(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	key, ok := ctx.Value(debugKeyCtxKey{}).(string)
	return key, ok && key != ""
}
