package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "isicfetch/pkg/errors"
)

func newTestClient(serverURL string) *Client {
	return NewClient(serverURL, 5*time.Second, nil)
}

func TestClientSendsTokenHeader(t *testing.T) {
	var gotToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("Girder-Token")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.SetToken("secret-token")

	_, err := client.ListImages(context.Background(), 10, 0, "")
	require.NoError(t, err)
	assert.Equal(t, "secret-token", gotToken)

	client.SetToken("")
	_, err = client.ListImages(context.Background(), 10, 0, "")
	require.NoError(t, err)
	assert.Empty(t, gotToken)
}

func TestClientStatusClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantType errs.ErrorType
	}{
		{"unauthorized", http.StatusUnauthorized, errs.ErrorTypeAuth},
		{"forbidden", http.StatusForbidden, errs.ErrorTypeAuth},
		{"not found", http.StatusNotFound, errs.ErrorTypeNotFound},
		{"rate limited", http.StatusTooManyRequests, errs.ErrorTypeRateLimit},
		{"internal error", http.StatusInternalServerError, errs.ErrorTypeServerError},
		{"bad gateway", http.StatusBadGateway, errs.ErrorTypeServerError},
		{"teapot", http.StatusTeapot, errs.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			_, err := client.ListImages(context.Background(), 10, 0, "")
			require.Error(t, err)

			apiErr, ok := err.(*errs.Error)
			require.True(t, ok, "expected *errs.Error, got %T", err)
			assert.Equal(t, tt.wantType, apiErr.Type)
			assert.Equal(t, tt.status, apiErr.Code)
		})
	}
}

func TestClientDecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>not json</html>`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.ListImages(context.Background(), 10, 0, "")
	require.Error(t, err)

	apiErr, ok := err.(*errs.Error)
	require.True(t, ok)
	assert.Equal(t, errs.ErrorTypeDecode, apiErr.Type)
}

func TestClientListImages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/image", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "50", r.URL.Query().Get("offset"))
		assert.Equal(t, "true", r.URL.Query().Get("detail"))
		assert.Equal(t, "ds1", r.URL.Query().Get("datasetId"))

		json.NewEncoder(w).Encode([]Image{
			{ID: "abc", Name: "ISIC_0000001"},
			{ID: "def", Name: "ISIC_0000002"},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	images, err := client.ListImages(context.Background(), 25, 50, "ds1")
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "abc", images[0].ID)
	assert.Equal(t, "ISIC_0000001.jpg", images[0].Filename())
}

func TestClientLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/authentication", r.URL.Path)

		username, password, ok := r.BasicAuth()
		require.True(t, ok, "expected basic auth")
		assert.Equal(t, "researcher", username)
		assert.Equal(t, "hunter2", password)

		fmt.Fprint(w, `{"auth_token": {"token": "tok-abc123"}}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	token, err := client.Login(context.Background(), "researcher", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "tok-abc123", token)
}

func TestClientLoginBadCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Login(context.Background(), "researcher", "wrong")
	require.Error(t, err)

	apiErr, ok := err.(*errs.Error)
	require.True(t, ok)
	assert.Equal(t, errs.ErrorTypeAuth, apiErr.Type)
}

func TestClientLoginMissingToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"message": "ok"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Login(context.Background(), "researcher", "hunter2")
	require.Error(t, err)

	apiErr, ok := err.(*errs.Error)
	require.True(t, ok)
	assert.Equal(t, errs.ErrorTypeAuth, apiErr.Type)
}

func TestClientFetchImageStreams(t *testing.T) {
	payload := []byte("binary image bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	body, err := client.FetchImage(context.Background(), server.URL+"/image/abc/download")
	require.NoError(t, err)
	defer body.Close()

	buf := make([]byte, 64)
	n, _ := body.Read(buf)
	assert.Equal(t, payload, buf[:n])
}

func TestClientListDatasets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/dataset", r.URL.Path)
		json.NewEncoder(w).Encode([]Dataset{
			{ID: "ds1", Name: "SONIC", Count: 800},
		})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	datasets, err := client.ListDatasets(context.Background(), 100, 0)
	require.NoError(t, err)
	require.Len(t, datasets, 1)
	assert.Equal(t, "SONIC", datasets[0].Name)
	assert.Equal(t, 800, datasets[0].Count)
}
