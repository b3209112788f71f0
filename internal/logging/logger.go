// Package logging defines the structured logger used by the server and the
// client. The variadic args are key/value pairs:
//
//	log.Info(ctx, "sync round finished", "applied", n, "cursor", cursor)
package logging

import "context"

type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given pairs.
	With(args ...any) Logger
}
