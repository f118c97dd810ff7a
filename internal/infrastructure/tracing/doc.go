/*
Package tracing provides lightweight request tracing.

Every HTTP request and every command on a host stream connection gets a
span with a ULID trace id. Spans are logged through zap when they finish;
there is no exporter.

# Usage

	tracer := tracing.New("nuitester", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	err := tracer.Trace(ctx, "ws.invoke", func(ctx context.Context) error {
		_, err := w.Invoke(name, data)
		return err
	})

# Propagation

X-Trace-ID and X-Span-ID request headers continue an existing trace; the
response carries the ids of the server span.
*/
package tracing
