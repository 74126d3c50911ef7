package mid

import (
	"context"
	"net/http"

	"github.com/ardanlabs/powledger/foundation/metrics"
	"github.com/ardanlabs/powledger/foundation/web"
)

// Metrics updates program counters.
func Metrics() web.Middleware {
	var m metrics.HTTP

	// This is the actual middleware function to be executed.
	mw := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			// Call the next handler.
			err := handler(ctx, w, r)

			// Record the request against the route it matched.
			if v, verr := web.GetValues(ctx); verr == nil {
				m.ObserveRequest(r.Method, v.Route, v.StatusCode, v.Now)
			}

			// Increment the errors counter if an error occurred on this request.
			if err != nil {
				m.ObserveError()
			}

			// Return the error so it can be handled further up the chain.
			return err
		}

		return h
	}

	return mw
}
