package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, rdb
}

func Test_bodyHash(t *testing.T) {
	data := []byte(`{"status":"approved"}`)
	sum := sha256.Sum256(data)
	if got, want := bodyHash(data), hex.EncodeToString(sum[:]); got != want {
		t.Fatalf("bodyHash mismatch: got %s want %s", got, want)
	}
}

func Test_mutating(t *testing.T) {
	for method, want := range map[string]bool{
		http.MethodGet:     false,
		http.MethodHead:    false,
		http.MethodOptions: false,
		http.MethodPost:    true,
		http.MethodPut:     true,
		http.MethodPatch:   true,
		http.MethodDelete:  true,
	} {
		if got := mutating(method); got != want {
			t.Fatalf("mutating(%s) = %v, want %v", method, got, want)
		}
	}
}

func Test_buildKey(t *testing.T) {
	k := buildKey("POST", "/observations/:id/retry", "reviewer.ana", strings.Repeat("a", 32))
	want := "idemp:ax:post:/observations/:id/retry:reviewer.ana:" + strings.Repeat("a", 32)
	if k != want {
		t.Fatalf("buildKey mismatch: got %q want %q", k, want)
	}
}

func Test_validReqID(t *testing.T) {
	tests := []struct {
		id string
		ok bool
	}{
		{"3f9a6a1b-3d54-4fbe-8b3a-6b3e8d6b2c88", true},
		{strings.Repeat("a", 32), true},
		{"3f9a6a1b3d544fbe8b3a6b3e8d6b2c88", true},
		{"", false},
		{"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", false},
		{"3f9a6a1b3d544fbe8b3a6b3e8d6b2c8", false},
		{"3f9a6a1b3d544fbe8b3a6b3e8d6b2c880", false},
		{"zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz", false},
		{"3F9A6A1B-3D54-4FBE-8B3A-6B3E8D6B2C88", false},
		{"3f9a6a1b-3d54-9fbe-8b3a-6b3e8d6b2c88", false}, // version 9
	}
	for _, tt := range tests {
		if got := validReqID(tt.id); got != tt.ok {
			t.Fatalf("validReqID(%q) = %v, want %v", tt.id, got, tt.ok)
		}
	}
}

func Test_reActor(t *testing.T) {
	tests := []struct {
		actor string
		ok    bool
	}{
		{"system", true},
		{"reviewer.ana", true},
		{"ana@merchant-ops.pe", true},
		{"svc_batch-01", true},
		{strings.Repeat("a", 64), true},
		{strings.Repeat("a", 65), false},
		{"", false},
		{".hidden", false},
		{"ops:ana", false},
		{"ana maria", false},
	}
	for _, tt := range tests {
		if got := reActor.MatchString(tt.actor); got != tt.ok {
			t.Fatalf("reActor(%q) = %v, want %v", tt.actor, got, tt.ok)
		}
	}
}

func Test_readHeaders(t *testing.T) {
	now := time.Date(2025, 9, 5, 3, 0, 0, 0, time.UTC)
	h := http.Header{}
	h.Set(HeaderRequestID, " "+strings.Repeat("b", 32)+" ")
	h.Set(HeaderRequestAt, "2025-09-05T10:05:00+07:00")
	h.Set(HeaderActor, "reviewer.ana")

	got, err := readHeaders(h, now)
	if err != nil {
		t.Fatalf("readHeaders: %v", err)
	}
	if got.requestID != strings.Repeat("b", 32) || got.actor != "reviewer.ana" {
		t.Fatalf("unexpected headers: %+v", got)
	}
	if !got.at.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("at = %v", got.at)
	}

	h.Set(HeaderRequestAt, strconv.FormatInt(now.Add(-maxClockSkew-time.Second).Unix(), 10))
	if _, err := readHeaders(h, now); err == nil || err.Error() != "Ax-Request-At too skewed" {
		t.Fatalf("expected skew error, got %v", err)
	}
}

func Test_parseAxRequestAt(t *testing.T) {
	sec := time.Now().UTC().Unix()
	ms := time.Now().UTC().UnixMilli()
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"epoch seconds", strconv.FormatInt(sec, 10), time.Unix(sec, 0).UTC()},
		{"epoch millis", strconv.FormatInt(ms, 10), time.UnixMilli(ms).UTC()},
		{"rfc3339 offset", "2025-09-05T10:00:00+07:00", time.Date(2025, 9, 5, 3, 0, 0, 0, time.UTC)},
		{"rfc3339 zulu", "2025-09-05T03:00:00Z", time.Date(2025, 9, 5, 3, 0, 0, 0, time.UTC)},
		{"rfc3339 nano", "2025-09-05T03:00:00.250Z", time.Date(2025, 9, 5, 3, 0, 0, 250e6, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAxRequestAt(tt.raw)
			if err != nil {
				t.Fatalf("parseAxRequestAt(%q): %v", tt.raw, err)
			}
			if !got.Equal(tt.want) || got.Location() != time.UTC {
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}

	for _, raw := range []string{"", "not-a-time", "2025-09-05T10:00:00", "1736123456abc"} {
		if _, err := parseAxRequestAt(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func Test_store_ReserveLoadFinishRelease(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	defer mr.Close()
	ctx := context.Background()
	st := store{rdb: rdb, ttl: 5 * time.Second}
	key := buildKey("POST", "/requests/:id/observations", "reviewer.ana", strings.Repeat("a", 32))

	entry := idempEntry{
		InProgress:  true,
		BodySHA256:  bodyHash([]byte(`{"observation_type_id":1}`)),
		RequestID:   strings.Repeat("a", 32),
		RequestAtMS: time.Now().UnixMilli(),
		CreatedAt:   nowUTC(),
	}
	ok, err := st.reserve(ctx, key, entry)
	if err != nil || !ok {
		t.Fatalf("reserve 1: ok=%v err=%v", ok, err)
	}
	if ttl := mr.TTL(key); ttl <= 0 || ttl > provisionalLockTTL {
		t.Fatalf("provisional TTL not set correctly: %v", ttl)
	}
	if ok, err = st.reserve(ctx, key, entry); err != nil || ok {
		t.Fatalf("reserve 2 should lose: ok=%v err=%v", ok, err)
	}

	got, err := st.load(ctx, key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got.InProgress || got.replayable() || got.BodySHA256 != entry.BodySHA256 {
		t.Fatalf("loaded entry mismatch: %+v", got)
	}

	final := entry
	final.InProgress = false
	final.Code = http.StatusCreated
	final.Body = []byte(`{"id":9}`)
	if err := st.finish(ctx, key, final); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if ttl := mr.TTL(key); ttl != st.ttl {
		t.Fatalf("final TTL out of range: %v", ttl)
	}
	if got, _ = st.load(ctx, key); !got.replayable() || string(got.Body) != `{"id":9}` {
		t.Fatalf("final entry mismatch: %+v", got)
	}

	if err := st.release(ctx, key); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := st.load(ctx, key); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil after release, got %v", err)
	}
}

func Test_store_LoadCorruptEntry(t *testing.T) {
	mr, rdb := newMiniRedis(t)
	defer mr.Close()
	if err := mr.Set("idemp:ax:post:/x:a:b", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := (store{rdb: rdb}).load(context.Background(), "idemp:ax:post:/x:a:b"); err == nil {
		t.Fatalf("expected decode error")
	}
}
