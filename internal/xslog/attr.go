package xslog

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/artemis-health/artemis/internal/version"
	"github.com/artemis-health/artemis/internal/xhttp"
)

const (
	keyError = "error"
)

func Error(err error) slog.Attr {
	return slog.String(keyError, err.Error())
}

func RequestID(requestID string) slog.Attr {
	const requestIDKey = "request_id"
	return slog.String(requestIDKey, requestID)
}

func Stack() slog.Attr {
	const stackKey = "stack"
	return slog.String(stackKey, string(debug.Stack()))
}

func HTTPStatus(status int) slog.Attr {
	const statusKey = "status"
	return slog.Int(statusKey, status)
}

func Duration(duration time.Duration) slog.Attr {
	const durationKey = "duration"
	return slog.Duration(durationKey, duration)
}

func RequestMethod(r *http.Request) slog.Attr {
	const methodKey = "method"
	return slog.String(methodKey, r.Method)
}

func RequestPath(r *http.Request) slog.Attr {
	const pathKey = "path"
	return slog.String(pathKey, r.URL.Path)
}

func IP(ip string) slog.Attr {
	const ipKey = "ip"
	return slog.String(ipKey, ip)
}

func RequestIP(r *http.Request) slog.Attr {
	return IP(xhttp.GetRequestIP(r))
}

func Version() slog.Attr {
	const versionKey = "version"
	return slog.String(versionKey, version.Get())
}

func Count(count int) slog.Attr {
	const countKey = "count"
	return slog.Int(countKey, count)
}

func Start(t time.Time) slog.Attr {
	const startKey = "start"
	return slog.Time(startKey, t)
}

func End(t time.Time) slog.Attr {
	const endKey = "end"
	return slog.Time(endKey, t)
}

func Provider[T ~string](p T) slog.Attr {
	const providerKey = "provider"
	return slog.String(providerKey, string(p))
}

func DataType[T ~string](d T) slog.Attr {
	const dataTypeKey = "data_type"
	return slog.String(dataTypeKey, string(d))
}

func UserID(id string) slog.Attr {
	const userIDKey = "user_id"
	return slog.String(userIDKey, id)
}

func Outcome[T ~string](o T) slog.Attr {
	const outcomeKey = "outcome"
	return slog.String(outcomeKey, string(o))
}

func RetryAfter(d time.Duration) slog.Attr {
	const retryAfterKey = "retry_after"
	return slog.Duration(retryAfterKey, d)
}

func Attempt(n int) slog.Attr {
	const attemptKey = "attempt"
	return slog.Int(attemptKey, n)
}

func ClientID(id string) slog.Attr {
	const clientIDKey = "client_id"
	return slog.String(clientIDKey, id)
}
