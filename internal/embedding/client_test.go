package embedding

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL: "https://embeddings.example/v1",
		APIKey:  "sk-test",
		Model:   "text-embedding-3-small",
	}, nil)
	require.NoError(t, err)
	c.httpClient = &http.Client{Transport: rt}
	return c
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func TestEmbedReturnsVectorsInRequestOrder(t *testing.T) {
	var gotReq embedRequest
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotReq))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		// vendor may return vectors out of order; Index is authoritative
		return jsonResponse(200, `{"data":[
			{"index":1,"embedding":[2.0,2.0]},
			{"index":0,"embedding":[1.0,1.0]}
		]}`), nil
	})

	vectors, err := client.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)

	assert.Equal(t, "text-embedding-3-small", gotReq.Model)
	assert.Equal(t, []string{"first", "second"}, gotReq.Input)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float64{1.0, 1.0}, vectors[0])
	assert.Equal(t, []float64{2.0, 2.0}, vectors[1])
}

func TestEmbedCountMismatch(t *testing.T) {
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"data":[{"index":0,"embedding":[1.0]}]}`), nil
	})

	_, err := client.Embed(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count mismatch")
}

func TestEmbedIndexOutOfRange(t *testing.T) {
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"data":[{"index":5,"embedding":[1.0]}]}`), nil
	})

	_, err := client.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
}

func TestEmbedErrorStatus(t *testing.T) {
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(401, `{"error":{"message":"invalid key"}}`), nil
	})

	_, err := client.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestEmbedEmptyInputIsNoop(t *testing.T) {
	client := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		t.Fatal("no request expected")
		return nil, nil
	})

	vectors, err := client.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestNewClientValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing base url", Config{APIKey: "k", Model: "m"}},
		{"missing api key", Config{BaseURL: "https://x", Model: "m"}},
		{"missing model", Config{BaseURL: "https://x", APIKey: "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg, nil)
			require.Error(t, err)
		})
	}
}
