package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/victornm/quizbattle/internal/errors"
)

func TestError_HTTPStatusCode(t *testing.T) {
	tests := map[string]struct {
		err  *errors.Error
		want int
	}{
		"invalid argument maps to 400": {err: errors.New(errors.CodeInvalidArgument), want: http.StatusBadRequest},
		"unauthenticated maps to 401":  {err: errors.New(errors.CodeUnauthenticated), want: http.StatusUnauthorized},
		"already exists maps to 409":   {err: errors.New(errors.CodeAlreadyExists), want: http.StatusConflict},
		"unavailable maps to 503":      {err: errors.New(errors.CodeUnavailable), want: http.StatusServiceUnavailable},
		"unknown code maps to 500":     {err: errors.New(errors.Code(codes.DataLoss)), want: http.StatusInternalServerError},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatusCode())
		})
	}
}

func TestConvert(t *testing.T) {
	cause := stderrors.New("boom")

	e := errors.Convert(fmt.Errorf("wrapped: %w", errors.New(errors.CodeNotFound, errors.WithCause(cause))))
	require.Equal(t, errors.CodeNotFound, e.Code)
	require.ErrorIs(t, e, cause)

	e = errors.Convert(cause)
	require.Equal(t, errors.CodeInternal, e.Code)
	require.ErrorIs(t, e, cause)
}

func TestFromHTTPStatus(t *testing.T) {
	e := errors.FromHTTPStatus(http.StatusConflict, "Username already exists")
	assert.Equal(t, errors.CodeAlreadyExists, e.Code)
	assert.Equal(t, "Username already exists", e.Message)
	assert.True(t, errors.HasCode(e, errors.CodeAlreadyExists))
	assert.False(t, errors.HasCode(e, errors.CodeNotFound))

	e = errors.FromHTTPStatus(http.StatusTeapot, "")
	assert.Equal(t, errors.CodeInternal, e.Code)
}
