package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Allowed client/server clock skew for Ax-Request-At (in UTC).
const maxClockSkew = 10 * time.Minute

var (
	reUUID  = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[1-5][a-f0-9]{3}-[89ab][a-f0-9]{3}-[a-f0-9]{12}$`)
	reHex32 = regexp.MustCompile(`^[a-f0-9]{32}$`)
	// reviewer handles, emails or service names; no ':' so keys stay unambiguous
	reActor = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@-]{0,63}$`)
)

func bodyHash(b []byte) string { s := sha256.Sum256(b); return hex.EncodeToString(s[:]) }

func nowUTC() time.Time { return time.Now().UTC() }

func mutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

func buildKey(method, path, actorID, requestID string) string {
	return "idemp:ax:" + strings.ToLower(method) + ":" + path + ":" + actorID + ":" + requestID
}

func validReqID(id string) bool {
	return reUUID.MatchString(id) || reHex32.MatchString(id)
}

// axHeaders is the validated header set of a mutating call.
type axHeaders struct {
	requestID string
	actor     string
	at        time.Time
}

// readHeaders validates Ax-Request-Id, Ax-Request-At and Ax-Actor-Id in that
// order; the error text is returned to the client as is.
func readHeaders(h http.Header, now time.Time) (axHeaders, error) {
	var out axHeaders

	out.requestID = strings.TrimSpace(h.Get(HeaderRequestID))
	if out.requestID == "" {
		return out, errors.New("missing Ax-Request-Id")
	}
	if !validReqID(out.requestID) {
		return out, errors.New("invalid Ax-Request-Id format")
	}

	at, err := parseAxRequestAt(h.Get(HeaderRequestAt))
	if err != nil {
		return out, err
	}
	if at.Before(now.Add(-maxClockSkew)) || at.After(now.Add(maxClockSkew)) {
		return out, errors.New("Ax-Request-At too skewed")
	}
	out.at = at

	out.actor = strings.TrimSpace(h.Get(HeaderActor))
	if out.actor == "" {
		return out, errors.New("missing Ax-Actor-Id")
	}
	if !reActor.MatchString(out.actor) {
		return out, errors.New("invalid Ax-Actor-Id")
	}
	return out, nil
}

// parseAxRequestAt accepts:
//   - epoch seconds (e.g., "1736123456")
//   - epoch milliseconds (e.g., "1736123456789")
//   - RFC3339 / RFC3339Nano **with timezone** (e.g., "2025-09-05T10:00:00+07:00" or "...Z")
//
// Naive local timestamps **without** timezone are rejected.
func parseAxRequestAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("missing Ax-Request-At")
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	// RFC3339Nano also accepts whole seconds
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errors.New("Ax-Request-At must be epoch (s/ms) or RFC3339 with timezone")
}
