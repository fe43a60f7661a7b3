package ports

import "context"

type Span interface {
	SetAttribute(key string, value any)
	RecordError(err error)
	End()
}

type Tracer interface {
	Start(ctx context.Context, name string, attrs map[string]any) (context.Context, Span)
}
