package common_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pressing/internal/common"
)

func TestIdempotencyReplaysCompletedResponse(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	var calls atomic.Int32
	h := common.Idem{R: rdb, TTL: time.Minute}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		common.JSON(w, http.StatusCreated, map[string]int32{"n": n})
	}))

	send := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/drafts", bytes.NewBufferString(`{}`))
		if key != "" {
			req.Header.Set("Idempotency-Key", key)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	first := send("k1")
	require.Equal(t, http.StatusCreated, first.Code)
	replay := send("k1")
	require.Equal(t, http.StatusCreated, replay.Code)
	require.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	require.JSONEq(t, first.Body.String(), replay.Body.String())
	require.Equal(t, int32(1), calls.Load())

	require.Equal(t, http.StatusCreated, send("k2").Code)
	require.Equal(t, http.StatusCreated, send("").Code)
	require.Equal(t, int32(3), calls.Load())
}

func TestIdempotencyScopedByCustomer(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	var calls atomic.Int32
	h := common.Idem{R: rdb}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	for _, customer := range []string{"a", "b"} {
		req := httptest.NewRequest(http.MethodPost, "/drafts", nil)
		req.Header.Set("Idempotency-Key", "same")
		req = req.WithContext(common.WithCustomerID(req.Context(), customer))
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	require.Equal(t, int32(2), calls.Load())
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	status := http.StatusServiceUnavailable
	h := common.Idem{R: rdb}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/drafts", nil)
		r.Header.Set("Idempotency-Key", "retry")
		return r
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req())
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)

	status = http.StatusCreated
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req())
	require.Equal(t, http.StatusCreated, rr.Code, "server errors release the key")
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	entered := make(chan struct{})
	release := make(chan struct{})
	h := common.Idem{R: rdb}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusCreated)
	}))
	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/drafts", nil)
		r.Header.Set("Idempotency-Key", "busy")
		return r
	}

	done := make(chan int)
	go func() {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req())
		done <- rr.Code
	}()
	<-entered

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req())
	require.Equal(t, http.StatusConflict, rr.Code)

	close(release)
	require.Equal(t, http.StatusCreated, <-done)
}

type validated struct {
	Name  string `json:"name" validate:"required"`
	Count int    `json:"count" validate:"gte=1"`
}

func TestValidateStructUsesJSONNames(t *testing.T) {
	err := common.ValidateStruct(validated{})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
	details, ok := appErr.Details.([]common.FieldError)
	require.True(t, ok)
	require.Len(t, details, 2)
	require.Equal(t, "validated.name", details[0].Field)
	require.Equal(t, "required", details[0].Rule)
	require.Equal(t, "gte", details[1].Rule)

	require.NoError(t, common.ValidateStruct(validated{Name: "x", Count: 1}))
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	common.WriteError(rr, common.NewValidationError("EMPTY_SELECTION", "no services selected", nil))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var body struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "EMPTY_SELECTION", body.Error.Code)

	rr = httptest.NewRecorder()
	common.WriteError(rr, errors.New("boom"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	require.Equal(t, "192.0.2.10", common.ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.4")
	require.Equal(t, "198.51.100.4", common.ClientIP(req))

	req.Header.Set("X-Forwarded-For", "garbage, 203.0.113.9, 10.0.0.1")
	require.Equal(t, "203.0.113.9", common.ClientIP(req))

	req.Header.Set("X-Forwarded-For", "::ffff:203.0.113.5")
	require.Equal(t, "203.0.113.5", common.ClientIP(req))
}

func TestParsePagination(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&limit=500", nil)
	p := common.ParsePagination(req, 20, 100)
	require.Equal(t, 3, p.Page)
	require.Equal(t, 100, p.PerPage)
	require.Equal(t, 200, p.Offset())

	p = common.ParsePagination(httptest.NewRequest(http.MethodGet, "/?page=-1&limit=x", nil), 20, 100)
	require.Equal(t, common.Pagination{Page: 1, PerPage: 20}, p)
}
