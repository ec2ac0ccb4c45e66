package mallocator

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// NewOTelTracerBackend builds a tracer backend whose callback turns
// every traced operation into a short-lived span instead of (or in
// addition to, via a wrapping TracerFunc) a plain callback — useful for
// correlating allocation bursts with a request trace already in
// flight elsewhere in the same process.
func NewOTelTracerBackend(name string, tracer trace.Tracer) *TracerBackend {
	return NewTracerBackend(name, func(e TracerEvent) {
		_, span := tracer.Start(context.Background(), e.Op.String())
		defer span.End()

		attrs := []attribute.KeyValue{
			attribute.String("mallocator.name", e.Name),
			attribute.Int64("mallocator.ptr", int64(uintptr(e.Ptr))),
		}
		switch e.Op {
		case TracerAlloc, TracerFree:
			attrs = append(attrs, attribute.Int64("mallocator.size", int64(e.Size)))
		case TracerCalloc:
			attrs = append(attrs,
				attribute.Int64("mallocator.n", int64(e.N)),
				attribute.Int64("mallocator.size", int64(e.Size)))
		case TracerRealloc:
			attrs = append(attrs,
				attribute.Int64("mallocator.old_size", int64(e.OldSize)),
				attribute.Int64("mallocator.new_size", int64(e.NewSize)))
		}
		span.SetAttributes(attrs...)
	})
}
