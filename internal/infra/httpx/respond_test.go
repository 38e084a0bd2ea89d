package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/workspace-api/internal/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: email: required", domain.ErrInvalidInput), http.StatusBadRequest, "invalid_input"},
		{domain.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
		{domain.ErrInvalidToken, http.StatusUnauthorized, "unauthenticated"},
		{&domain.ForbiddenError{Categories: []string{"role"}}, http.StatusForbidden, "forbidden"},
		{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
		{fmt.Errorf("%w: email already registered", domain.ErrConflict), http.StatusConflict, "conflict"},
		{fmt.Errorf("%w: login", domain.ErrFatal), http.StatusInternalServerError, "internal"},
		{errors.New("pq: connection reset"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		status, body := Classify(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, body.Error, tc.err.Error())
	}
}

func TestWriteError_HidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	var body ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", body.Message)
}

func TestWriteError_Unauthenticated(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, domain.ErrUnauthenticated)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
	assert.Contains(t, rec.Body.String(), "invalid credentials or token")
}

func TestWriteTooManyRequests(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteTooManyRequests(rec, 1500*time.Millisecond)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	WriteTooManyRequests(rec, 0)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestPeekBody(t *testing.T) {
	small := `{"email":"a@b.c"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(small))
	raw, full, err := PeekBody(req, 1024)
	require.NoError(t, err)
	assert.True(t, full)
	assert.Equal(t, small, string(raw))
	rest, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, small, string(rest))

	// Тело длиннее лимита: не разбирается, но доходит до обработчика целиком
	big := `{"workspaceId":"W1","data":"` + strings.Repeat("x", 2<<20) + `"}`
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
	raw, full, err = PeekBody(req, 1<<20)
	require.NoError(t, err)
	assert.False(t, full)
	assert.Nil(t, raw)
	rest, err = io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Len(t, rest, len(big))
	assert.Equal(t, big, string(rest))
	assert.NoError(t, req.Body.Close())

	// Ровно limit байт - еще помещается
	exact := strings.Repeat("y", 16)
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(exact))
	raw, full, err = PeekBody(req, 16)
	require.NoError(t, err)
	assert.True(t, full)
	assert.Equal(t, exact, string(raw))

	raw, full, err = PeekBody(httptest.NewRequest(http.MethodGet, "/", nil), 16)
	require.NoError(t, err)
	assert.True(t, full)
	assert.Nil(t, raw)
}

func TestWritePayloadTooLarge(t *testing.T) {
	rec := httptest.NewRecorder()
	WritePayloadTooLarge(rec)

	var body ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "payload_too_large", body.Error)
}
