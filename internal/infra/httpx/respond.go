// Package httpx - общие для HTTP-адаптеров ответы и маппинг таксономии ошибок на статусы.
package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/xela07ax/workspace-api/internal/domain"
)

type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Единое сообщение для всех провалов аутентификации: не даем перебирать аккаунты.
const unauthenticatedMessage = "invalid credentials or token"

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError переводит ошибку сервисного слоя в HTTP-ответ.
// Внутренние детали наружу не уходят.
func WriteError(w http.ResponseWriter, err error) {
	status, body := Classify(err)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="workspace-api"`)
	}
	WriteJSON(w, status, body)
}

// Classify возвращает статус и тело для ошибки.
func Classify(err error) (int, ErrorBody) {
	var fe *domain.ForbiddenError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, ErrorBody{Error: "invalid_input", Message: err.Error()}
	case errors.Is(err, domain.ErrUnauthenticated), errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, ErrorBody{Error: "unauthenticated", Message: unauthenticatedMessage}
	case errors.As(err, &fe):
		return http.StatusForbidden, ErrorBody{Error: "forbidden", Message: fe.Error()}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, ErrorBody{Error: "forbidden", Message: domain.ErrForbidden.Error()}
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, ErrorBody{Error: "conflict", Message: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorBody{Error: "internal", Message: "internal error"}
	}
}

// WriteTooManyRequests - ответ rate limiter'а.
func WriteTooManyRequests(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int(retryAfter.Seconds())
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	WriteJSON(w, http.StatusTooManyRequests, ErrorBody{Error: "rate_limited", Message: "too many requests"})
}

// WritePayloadTooLarge - тело не помещается в лимит разбора.
func WritePayloadTooLarge(w http.ResponseWriter) {
	WriteJSON(w, http.StatusRequestEntityTooLarge, ErrorBody{Error: "payload_too_large", Message: "request body too large"})
}

type peekedBody struct {
	io.Reader
	io.Closer
}

// PeekBody читает до limit байт тела и возвращает прочитанное обратно в запрос.
// Хвост за лимитом остается в исходном потоке, обработчик получает тело целиком.
// full=false - тело длиннее limit, raw в этом случае nil.
func PeekBody(r *http.Request, limit int64) (raw []byte, full bool, err error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, true, nil
	}
	orig := r.Body
	raw, err = io.ReadAll(io.LimitReader(orig, limit+1))
	r.Body = peekedBody{Reader: io.MultiReader(bytes.NewReader(raw), orig), Closer: orig}
	if err != nil {
		return nil, false, err
	}
	if int64(len(raw)) > limit {
		return nil, false, nil
	}
	return raw, true, nil
}
