package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorResponse_WritesCodeAndMessage(t *testing.T) {
	tests := []struct {
		status  int
		code    string
		message string
	}{
		{http.StatusNotFound, "not_found", "no route for /nope"},
		{http.StatusServiceUnavailable, "datasource_unavailable", "ping failed"},
		{http.StatusUnauthorized, "invalid_token", "token expired"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			require.NoError(t, ErrorResponse(rec, tt.status, tt.code, tt.message))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, map[string]string{"error": tt.code, "message": tt.message}, body)
		})
	}
}

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name   string
		status int
		data   any
		want   string
	}{
		{"ok keeps implicit status", http.StatusOK, PingResponse{Status: "ok", Dialect: "postgres"}, `"dialect":"postgres"`},
		{"explicit status", http.StatusAccepted, map[string]int{"indexed": 3}, `{"indexed":3}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			require.NoError(t, WriteJSON(rec, tt.status, tt.data))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestWriteJSON_UnencodableData(t *testing.T) {
	rec := httptest.NewRecorder()
	assert.Error(t, WriteJSON(rec, http.StatusOK, make(chan int)))
}
