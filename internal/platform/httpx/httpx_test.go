package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("page: %w", ErrValidation): http.StatusBadRequest,
		ErrNotFound:                           http.StatusNotFound,
		ErrConflict:                           http.StatusConflict,
		ErrUnavailable:                        http.StatusServiceUnavailable,
		fmt.Errorf("export: %w", ErrUpstream): http.StatusBadGateway,
		errors.New("boom"):                    http.StatusInternalServerError,
	}
	for err, status := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, err)
		assert.Equal(t, status, rr.Code, err.Error())
		assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, status, body.Status)
	}
}

func TestInternalErrorHidesDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("dial tcp 10.0.0.5:443: refused"))
	assert.NotContains(t, rr.Body.String(), "10.0.0.5")
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	decode := func(body string) (payload, error) {
		var p payload
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		return p, DecodeJSON(req, &p)
	}

	p, err := decode(`{"name":"blog"}`)
	require.NoError(t, err)
	assert.Equal(t, "blog", p.Name)

	for _, bad := range []string{``, `{"name":`, `{"nom":"x"}`, `{"name":"a"}{"name":"b"}`} {
		_, err := decode(bad)
		require.ErrorIs(t, err, ErrValidation, bad)
	}
}
