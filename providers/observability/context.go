package observability

import "context"

type contextKey struct{}

// ContextWithObserver returns a context carrying observer. A client notifies
// it in addition to its own configured observer.
func ContextWithObserver(ctx context.Context, observer Observer) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, contextKey{}, observer)
}

// ObserverFromContext returns the observer stored by ContextWithObserver, or
// nil when there is none.
func ObserverFromContext(ctx context.Context) Observer {
	if ctx == nil {
		return nil
	}
	observer, _ := ctx.Value(contextKey{}).(Observer)
	return observer
}
