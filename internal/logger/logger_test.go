package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInit(t *testing.T) {
	restore := Replace(nil)
	defer restore()

	t.Run("Production", func(t *testing.T) {
		Init("production")
		assert.NotNil(t, log)
	})

	t.Run("Development", func(t *testing.T) {
		Init("development")
		assert.NotNil(t, log)
	})
}

func TestNewConfig(t *testing.T) {
	t.Run("Production is JSON on stdout", func(t *testing.T) {
		cfg := newConfig("production", "")
		assert.Equal(t, "json", cfg.Encoding)
		assert.Equal(t, []string{"stdout"}, cfg.OutputPaths)
		assert.Equal(t, "timestamp", cfg.EncoderConfig.TimeKey)
		assert.Equal(t, zapcore.InfoLevel, cfg.Level.Level())
	})

	t.Run("Development is console", func(t *testing.T) {
		cfg := newConfig("", "")
		assert.Equal(t, "console", cfg.Encoding)
		assert.Equal(t, zapcore.DebugLevel, cfg.Level.Level())
	})

	t.Run("Level override", func(t *testing.T) {
		assert.Equal(t, zapcore.WarnLevel, newConfig("production", "warn").Level.Level())
		assert.Equal(t, zapcore.DebugLevel, newConfig("", "bogus").Level.Level())
	})
}

func TestL_LazyInit(t *testing.T) {
	restore := Replace(nil)
	defer restore()

	t.Setenv("APP_ENV", "test")

	assert.NotNil(t, L())
	assert.NotNil(t, log)
}

func TestFromCtx(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	restore := Replace(zap.New(core))
	defer restore()

	t.Run("Request and restaurant ids", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-abc-123")
		ctx = WithRestaurantID(ctx, 7)

		FromCtx(ctx).Info("queue fetched")

		logs := observed.TakeAll()
		assert.Len(t, logs, 1)
		fields := logs[0].ContextMap()
		assert.Equal(t, "req-abc-123", fields["request_id"])
		assert.Equal(t, int64(7), fields["restaurant_id"])
	})

	t.Run("Bare context", func(t *testing.T) {
		FromCtx(context.Background()).Info("no ids")

		logs := observed.TakeAll()
		assert.Len(t, logs, 1)
		_, hasReq := logs[0].ContextMap()["request_id"]
		_, hasRest := logs[0].ContextMap()["restaurant_id"]
		assert.False(t, hasReq)
		assert.False(t, hasRest)
	})
}

func TestRequestIDFrom(t *testing.T) {
	assert.Equal(t, "", RequestIDFrom(context.Background()))
	assert.Equal(t, "abc", RequestIDFrom(WithRequestID(context.Background(), "abc")))
}

func TestSync(t *testing.T) {
	assert.NotPanics(t, Sync)
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	t.Run("Generates ID when missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/kitchen/queue", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
	})

	t.Run("Preserves existing ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/kitchen/queue", nil)
		req.Header.Set("X-Request-ID", "test-id-123")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, "test-id-123", seen)
		assert.Equal(t, "test-id-123", w.Header().Get("X-Request-ID"))
	})
}
