package common

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestAppErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{NotFound("entry %q", "a.pdf"), codes.NotFound},
		{InvalidInput("bad tag"), codes.InvalidArgument},
		{NewAppError(CodeValidation, "too long", ErrValidation), codes.InvalidArgument},
		{NewAppError(CodeConfig, "no dir", ErrInvalidInput), codes.FailedPrecondition},
		{IOFailure("read", fs.ErrPermission), codes.Internal},
		{WrapError(NotFound("x"), "get"), codes.NotFound},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, status.Code(tc.err), tc.err.Error())
	}
}

func TestErrorWrapping(t *testing.T) {
	err := IOFailure("read", fs.ErrPermission)
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.Nil(t, IOFailure("read", nil))
	assert.Nil(t, WrapError(nil, "x"))

	assert.True(t, IsNotFound(WrapError(NotFound("a"), "outer")))
	assert.False(t, IsNotFound(errors.New("other")))
}

func TestLoadConfigDefaultsAndOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("DEFAULT_PAGE_SIZE", "25")
	t.Setenv("MEMO_TTL", "1m")
	t.Setenv("ORIGINS", " Norte, ,Sur ")
	t.Setenv("S3_USE_SSL", "true")
	t.Setenv("DB_MAX_CONNS", "not-a-number")

	cfg := LoadConfig()
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, 25, cfg.Store.DefaultPageSize)
	assert.Equal(t, time.Minute, cfg.Store.MemoTTL)
	assert.Equal(t, []string{"Norte", "Sur"}, cfg.Origins.Canonical)
	assert.True(t, cfg.S3.UseSSL)
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
	assert.Equal(t, "Todos", cfg.Origins.Wildcard)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	base := func() *Config {
		t.Setenv("STORE_BACKEND", "fs")
		return LoadConfig()
	}

	cfg := base()
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Store.Backend = BackendPostgres
	assertConfigError(t, cfg.Validate(), "DB_URL")

	cfg = base()
	cfg.Text.Source = "ocr"
	assertConfigError(t, cfg.Validate(), "TEXT_SOURCE")

	cfg = base()
	cfg.Store.DefaultPageSize = 0
	assertConfigError(t, cfg.Validate(), "DEFAULT_PAGE_SIZE")

	cfg = base()
	cfg.Origins.Default = "[x]"
	assertConfigError(t, cfg.Validate(), "DEFAULT_ORIGIN")

	cfg = base()
	cfg.Origins.Default = cfg.Origins.Wildcard
	assertConfigError(t, cfg.Validate(), "ORIGIN_WILDCARD")
}

func assertConfigError(t *testing.T, err error, mention string) {
	t.Helper()
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, CodeConfig, appErr.Code)
	assert.Contains(t, appErr.Message, mention)
}

func TestValidator(t *testing.T) {
	long := strings.Repeat("ñ", 5)
	v := NewValidator().
		Field("puesto", &long, MaxLength(5)).
		Field("nulo", (*string)(nil), MaxLength(1))
	assert.False(t, v.HasErrors())
	assert.NoError(t, v.Err())

	v.Field("origen", "a/b", OriginTag).Field("subtotal", "123456", MaxLength(3))
	require.Len(t, v.Errors(), 2)
	err := v.Err()
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, CodeValidation, appErr.Code)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, v.ErrorMessage(), "origen")
	assert.Contains(t, v.ErrorMessage(), "at most 3")
}

func TestValidateOriginTag(t *testing.T) {
	for _, ok := range []string{"Campo", "Centrales", "Bodega Norte", "Ñuñoa"} {
		assert.NoError(t, ValidateOriginTag(ok), ok)
	}
	for _, bad := range []string{"", "   ", "a]b", "[a", `a\b`, "a/b", "a\nb"} {
		err := ValidateOriginTag(bad)
		assert.ErrorIs(t, err, ErrInvalidInput, bad)
	}
}

func TestLoggerFromContext(t *testing.T) {
	fallback := slog.Default()
	ctx := context.Background()
	assert.Same(t, fallback, LoggerFromContext(ctx, fallback))

	ctx = WithRequestID(ctx, "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.NotSame(t, fallback, LoggerFromContext(ctx, fallback))

	scoped := fallback.With("command", "list")
	assert.Same(t, scoped, LoggerFromContext(WithLogger(ctx, scoped), fallback))
}
