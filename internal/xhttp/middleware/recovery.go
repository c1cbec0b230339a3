package middleware

import (
	"fmt"
	"net/http"

	"github.com/artemis-health/artemis/internal/xerrors"
	"github.com/artemis-health/artemis/internal/xslog"
)

// Recovery turns a handler panic into a JSON 500 in the same shape as every
// other API error.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			ctx := r.Context()
			xslog.FromContext(ctx).ErrorContext(ctx, "panic recovered",
				xslog.RequestGroup(r),
				xslog.ErrorGroupWithStack(rec),
			)
			xerrors.WriteError(ctx, w, xerrors.Internal(xerrors.WithCause(fmt.Errorf("panic: %v", rec))))
		}()
		next.ServeHTTP(w, r)
	})
}
