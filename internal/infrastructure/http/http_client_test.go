package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type testResponse struct {
	Message string `json:"message"`
	Value   int    `json:"value"`
}

func TestHTTPClientImpl_FetchJSON_Success(t *testing.T) {
	expected := testResponse{Message: "test message", Value: 42}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(expected)
	}))
	defer server.Close()

	var result testResponse
	if err := NewHTTPClient(time.Second).FetchJSON(context.Background(), server.URL, &result); err != nil {
		t.Fatalf("FetchJSON failed: %v", err)
	}
	if result != expected {
		t.Errorf("got %+v, want %+v", result, expected)
	}
}

func TestHTTPClientImpl_FetchJSON_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantMsg string
	}{
		{
			name: "http error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "gone fishing", http.StatusServiceUnavailable)
			},
			wantMsg: "unexpected status",
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("{not json"))
			},
			wantMsg: "decode JSON failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()
			var result testResponse
			err := NewHTTPClient(time.Second).FetchJSON(context.Background(), server.URL, &result)
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("expected error containing %q, got %v", tt.wantMsg, err)
			}
		})
	}
}
