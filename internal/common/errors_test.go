package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body struct {
		Error ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Error
}

func TestWriteErrorMapsKinds(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"catalog", CatalogError("unknown product %q", "croissant"), http.StatusNotFound, CodeCatalog},
		{"validation", ValidationError([]string{"x"}, "too many toppings"), http.StatusUnprocessableEntity, CodeValidation},
		{"wrapped validation", fmt.Errorf("add box: %w", ValidationError(nil, "bad")), http.StatusUnprocessableEntity, CodeValidation},
		{"bare integrity", fmt.Errorf("gate: %w", ErrIntegrity), http.StatusConflict, CodeIntegrity},
		{"storage", StorageError("save", errors.New("redis down")), http.StatusInternalServerError, CodeInternal},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteError(rr, tc.err)
			require.Equal(t, tc.status, rr.Code)
			require.Equal(t, tc.code, decodeError(t, rr).Code)
		})
	}
}

func TestWriteErrorKeepsDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, ValidationError(map[string]string{"toppingId": "cheddar"}, "decrement below minimum"))
	body := decodeError(t, rr)
	require.Equal(t, "decrement below minimum", body.Message)
	require.Equal(t, map[string]any{"toppingId": "cheddar"}, body.Details)
}

func TestErrorKindsMatchWithErrorsIs(t *testing.T) {
	require.ErrorIs(t, CatalogError("x"), ErrCatalog)
	require.ErrorIs(t, ValidationError(nil, "x"), ErrValidation)
	err := StorageError("load", errors.New("timeout"))
	require.ErrorIs(t, err, ErrStorage)
	require.Contains(t, err.Error(), "load")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	require.Equal(t, "10.0.0.1", ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	require.Equal(t, "198.51.100.2", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	require.Equal(t, "203.0.113.9", ClientIP(req))

	require.Empty(t, ClientIP(nil))
}
