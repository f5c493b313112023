package client

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func responseWith(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestParseResponse(t *testing.T) {
	t.Run("data envelope", func(t *testing.T) {
		resp, err := parseResponse(responseWith(http.StatusOK, `{"data":{"id":"agent-1"}}`))
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"agent-1"}`, string(resp.Data))
	})

	t.Run("no content", func(t *testing.T) {
		resp, err := parseResponse(responseWith(http.StatusNoContent, ""))
		require.NoError(t, err)
		assert.Empty(t, resp.Data)
	})

	t.Run("error envelope", func(t *testing.T) {
		_, err := parseResponse(responseWith(http.StatusNotFound, `{"error":"agent not found"}`))
		require.Error(t, err)

		apiErr, ok := err.(*APIError)
		require.True(t, ok)
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
		assert.Equal(t, "agent not found", apiErr.Message)
		assert.Contains(t, apiErr.Error(), "404")
	})

	t.Run("non-json error body", func(t *testing.T) {
		_, err := parseResponse(responseWith(http.StatusBadGateway, "upstream exploded"))
		require.Error(t, err)

		apiErr, ok := err.(*APIError)
		require.True(t, ok)
		assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
		assert.Equal(t, "upstream exploded", apiErr.Message)
	})

	t.Run("non-json success body", func(t *testing.T) {
		_, err := parseResponse(responseWith(http.StatusOK, "not json"))
		assert.Error(t, err)
	})
}

func TestAPIClient_EnvURL(t *testing.T) {
	os.Setenv(envAPIURL, "http://example.test:9999")
	defer os.Unsetenv(envAPIURL)

	c, err := NewAPIClient(nil)
	require.NoError(t, err)
	assert.Equal(t, "http://example.test:9999", c.baseURL)
}

func TestAPIClient_DefaultURL(t *testing.T) {
	os.Unsetenv(envAPIURL)

	c, err := NewAPIClient(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultAPIURL, c.baseURL)
}

func TestAPIClient_RoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/agents":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"name":"support-bot"}`, string(body))
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"data":{"id":"agent-1"}}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/agents/agent-1":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not found"}`))
		}
	}))
	defer server.Close()

	c := &APIClient{baseURL: server.URL, httpClient: &http.Client{Timeout: 5 * time.Second}}

	resp, err := c.Post("/agents", map[string]string{"name": "support-bot"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"agent-1"}`, string(resp.Data))

	_, err = c.Delete("/agents/agent-1")
	require.NoError(t, err)

	_, err = c.Get("/nope")
	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestAPIClient_PostFile(t *testing.T) {
	tmp, err := os.CreateTemp(t.TempDir(), "notes-*.txt")
	require.NoError(t, err)
	_, err = tmp.WriteString("restart the service")
	require.NoError(t, err)
	require.NoError(t, tmp.Close())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "restart the service", string(data))
		assert.Contains(t, header.Filename, "notes-")
		assert.Equal(t, "sentence", r.FormValue("profile"))
		assert.Empty(t, r.FormValue("skipped"))

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"imported":1}}`))
	}))
	defer server.Close()

	c := &APIClient{baseURL: server.URL, httpClient: &http.Client{Timeout: 5 * time.Second}}

	resp, err := c.PostFile("/import", tmp.Name(), map[string]string{
		"profile": "sentence",
		"skipped": "",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"imported":1}`, string(resp.Data))
}
