package ports

import "context"

// Logger is the structured logging interface injected into drivers and adapters.
// Fields are key/value pairs attached to the entry.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	// Error logs err alongside msg at Error level.
	Error(ctx context.Context, err error, msg string, fields ...map[string]interface{})
}
