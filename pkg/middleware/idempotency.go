package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/courtbook/courtbook/pkg/response"
)

// Replay cache for unsafe endpoints. A client that retries a request
// carrying the same Idempotency-Key gets the original response back
// instead of creating a second booking.

const (
	// IdempotencyKeyHeader carries the client-chosen replay key.
	IdempotencyKeyHeader = "Idempotency-Key"
	// ContextKeyIdempotencyKey is where the middleware stores the key
	// for downstream handlers.
	ContextKeyIdempotencyKey = "idempotency_key"

	idempotencyKeyPrefix = "idem:"
)

type replayState string

const (
	replayInFlight replayState = "in_flight"
	replayDone     replayState = "done"
)

// replayRecord is the per-key state stored in Redis.
type replayRecord struct {
	Key         string      `json:"key"`
	State       replayState `json:"state"`
	Fingerprint string      `json:"fingerprint"`
	StatusCode  int         `json:"status_code,omitempty"`
	Body        string      `json:"body,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// RedisClient is the slice of go-redis the middleware needs.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// IdempotencyConfig controls the replay cache.
type IdempotencyConfig struct {
	Redis RedisClient
	// CompletedTTL is how long a finished response stays replayable.
	CompletedTTL time.Duration
	// InFlightTTL bounds how long a crashed request can block its key.
	InFlightTTL time.Duration
	// SkipPaths are path prefixes exempt from the check.
	SkipPaths []string
}

// DefaultIdempotencyConfig keeps completed responses for a day and
// in-flight claims for a minute.
func DefaultIdempotencyConfig(rdb RedisClient) *IdempotencyConfig {
	return &IdempotencyConfig{
		Redis:        rdb,
		CompletedTTL: 24 * time.Hour,
		InFlightTTL:  time.Minute,
	}
}

// IdempotencyMiddleware returns a gin middleware that deduplicates
// unsafe requests by Idempotency-Key. Requests without the header pass
// through untouched, and Redis outages fail open.
func IdempotencyMiddleware(config *IdempotencyConfig) gin.HandlerFunc {
	if config.CompletedTTL == 0 {
		config.CompletedTTL = 24 * time.Hour
	}
	if config.InFlightTTL == 0 {
		config.InFlightTTL = time.Minute
	}

	return func(c *gin.Context) {
		if !isUnsafeMethod(c.Request.Method) || skipPath(c.Request.URL.Path, config.SkipPaths) {
			c.Next()
			return
		}

		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}
		c.Set(ContextKeyIdempotencyKey, key)

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}
		fingerprint := requestFingerprint(c, body)

		redisKey := idempotencyKeyPrefix + key
		ctx := c.Request.Context()

		existing, err := loadReplayRecord(ctx, config.Redis, redisKey)
		if err != nil && !errors.Is(err, redis.Nil) {
			c.Next()
			return
		}
		if existing != nil {
			replayOrReject(c, existing, fingerprint)
			return
		}

		record := &replayRecord{
			Key:         key,
			State:       replayInFlight,
			Fingerprint: fingerprint,
			CreatedAt:   time.Now(),
		}
		claimed, err := claimKey(ctx, config.Redis, redisKey, record, config.InFlightTTL)
		if err != nil {
			c.Next()
			return
		}
		if !claimed {
			// Lost the race; whoever claimed it owns the response.
			if existing, _ = loadReplayRecord(ctx, config.Redis, redisKey); existing != nil {
				replayOrReject(c, existing, fingerprint)
				return
			}
			c.Next()
			return
		}

		capture := &captureWriter{ResponseWriter: c.Writer, body: bytes.NewBuffer(nil)}
		c.Writer = capture

		c.Next()

		if capture.status >= http.StatusInternalServerError {
			// Do not cache server failures; release the key so the
			// client's retry gets a fresh attempt.
			config.Redis.Del(ctx, redisKey)
			return
		}

		record.State = replayDone
		record.StatusCode = capture.status
		record.Body = capture.body.String()
		storeRecord(ctx, config.Redis, redisKey, record, config.CompletedTTL)
	}
}

// GetIdempotencyKey returns the key the middleware stored, if any.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, exists := c.Get(ContextKeyIdempotencyKey)
	if !exists {
		return "", false
	}
	key, ok := v.(string)
	return key, ok
}

func replayOrReject(c *gin.Context, record *replayRecord, fingerprint string) {
	if record.Fingerprint != fingerprint {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity,
			response.NewError("IDEMPOTENCY_KEY_REUSED", "Idempotency key was already used with a different request"))
		return
	}
	if record.State == replayInFlight {
		c.AbortWithStatusJSON(http.StatusConflict,
			response.NewError("REQUEST_IN_PROGRESS", "A request with this idempotency key is still being processed"))
		return
	}
	c.Data(record.StatusCode, "application/json", []byte(record.Body))
	c.Abort()
}

func isUnsafeMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func skipPath(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// requestFingerprint ties the key to one specific request so a reused
// key with a different payload is rejected instead of replayed.
func requestFingerprint(c *gin.Context, body []byte) string {
	h := sha256.New()
	h.Write([]byte(c.Request.Method))
	h.Write([]byte(c.Request.URL.Path))
	if userID, ok := GetUserID(c); ok {
		h.Write([]byte(userID))
	}
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func loadReplayRecord(ctx context.Context, rdb RedisClient, key string) (*replayRecord, error) {
	raw, err := rdb.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	var record replayRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func claimKey(ctx context.Context, rdb RedisClient, key string, record *replayRecord, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return false, err
	}
	return rdb.SetNX(ctx, key, string(data), ttl).Result()
}

func storeRecord(ctx context.Context, rdb RedisClient, key string, record *replayRecord, ttl time.Duration) {
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	rdb.Set(ctx, key, string(data), ttl)
}

// captureWriter tees the response so it can be cached for replay.
type captureWriter struct {
	gin.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
