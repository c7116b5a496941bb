package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/OvertAmbrosio/affiliation-request-demo/internal/logging"
)

const moduleName = "middleware.idempotency"

// Headers every mutating call must carry, plus the marker set on replays.
const (
	HeaderRequestID = "Ax-Request-Id"
	HeaderRequestAt = "Ax-Request-At"
	HeaderActor     = "Ax-Actor-Id"
	HeaderReplayed  = "Idempotent-Replayed"
)

type respRecorder struct {
	w    http.ResponseWriter
	buf  *bytes.Buffer
	code int
}

func (r *respRecorder) Header() http.Header { return r.w.Header() }
func (r *respRecorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.w.Write(b)
}
func (r *respRecorder) WriteHeader(statusCode int) { r.code = statusCode; r.w.WriteHeader(statusCode) }

// IdempotencyMiddleware replays the stored response of a repeated mutating call.
// key = method + route + actor + request id.
// Ax-Request-At **must** be epoch (seconds or ms) OR RFC3339/RFC3339Nano **with** timezone (Z or ±HH:MM).
//
// 5xx responses are not stored: the key is released so the caller can retry a
// provider or database failure with the same request id.
func IdempotencyMiddleware(rdb *redis.Client, ttl time.Duration, log logrus.FieldLogger) echo.MiddlewareFunc {
	if log == nil {
		log = logging.Discard()
	}
	st := store{rdb: rdb, ttl: ttl}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !mutating(req.Method) {
				return next(c)
			}

			hdr, err := readHeaders(req.Header, nowUTC())
			if err != nil {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
			}

			var body []byte
			if req.Body != nil {
				body, _ = io.ReadAll(req.Body)
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
			bhash := bodyHash(body)

			key := buildKey(req.Method, c.Path(), hdr.actor, hdr.requestID)
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()

			ok, err := st.reserve(ctx, key, idempEntry{
				InProgress:  true,
				BodySHA256:  bhash,
				RequestID:   hdr.requestID,
				RequestAtMS: hdr.at.UnixMilli(),
				CreatedAt:   nowUTC(),
			})
			if err != nil {
				logging.LogError(log, moduleName, "IdempotencyMiddleware", "reserve key", key, err)
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "idempotency store unavailable"})
			}
			if !ok {
				return replay(ctx, c, st, key, bhash, log)
			}

			rec := &respRecorder{w: c.Response().Writer, buf: &bytes.Buffer{}, code: http.StatusOK}
			c.Response().Writer = rec
			if err := next(c); err != nil {
				c.Error(err)
			}

			if rec.code >= http.StatusInternalServerError {
				if err := st.release(context.Background(), key); err != nil {
					logging.LogError(log, moduleName, "IdempotencyMiddleware", "release key", key, err)
				}
				return nil
			}
			final := idempEntry{
				Code:        rec.code,
				Body:        rec.buf.Bytes(),
				BodySHA256:  bhash,
				RequestID:   hdr.requestID,
				RequestAtMS: hdr.at.UnixMilli(),
				CreatedAt:   nowUTC(),
			}
			if err := st.finish(context.Background(), key, final); err != nil {
				logging.LogError(log, moduleName, "IdempotencyMiddleware", "save final entry", key, err)
			}
			return nil
		}
	}
}

// replay answers a call whose key is already taken.
func replay(ctx context.Context, c echo.Context, st store, key, bhash string, log logrus.FieldLogger) error {
	cur, err := st.load(ctx, key)
	if err != nil {
		log.WithFields(logrus.Fields{"module": moduleName, "key": key}).
			WithError(err).Warn("load idempotency entry")
	}
	if cur.BodySHA256 != "" && cur.BodySHA256 != bhash {
		return c.JSON(http.StatusConflict, map[string]string{"error": "Ax-Request-Id reused with different body"})
	}
	if cur.replayable() {
		c.Response().Header().Set(HeaderReplayed, "true")
		return c.Blob(cur.Code, echo.MIMEApplicationJSON, cur.Body)
	}
	return c.JSON(http.StatusConflict, map[string]string{"error": "request is already in progress"})
}
