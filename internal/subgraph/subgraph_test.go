package subgraph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQuery_DecodesData(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var req gqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Contains(t, req.Query, "seasons")
		require.Equal(t, float64(2), req.Variables["first"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"seasons": [{"season": 1}, {"season": 2}]}}`))
	}))
	t.Cleanup(ts.Close)

	client := New(Config{URL: ts.URL, Timeout: 5 * time.Second})
	t.Cleanup(func() { client.Close() })

	var out struct {
		Seasons []struct {
			Season int `json:"season"`
		} `json:"seasons"`
	}
	err := client.Query(context.Background(), `query { seasons { season } }`, map[string]any{"first": 2}, &out)
	require.NoError(t, err)
	require.Len(t, out.Seasons, 2)
	require.Equal(t, 2, out.Seasons[1].Season)
}

func TestQuery_GraphQLErrorsSurface(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"errors": [{"message": "no such field 'seasonz'"}]}`))
	}))
	t.Cleanup(ts.Close)

	client := New(Config{URL: ts.URL})
	t.Cleanup(func() { client.Close() })

	var out map[string]any
	err := client.Query(context.Background(), `query { seasonz }`, nil, &out)
	require.Error(t, err)
	require.Contains(t, err.Error(), "seasonz")
}

func TestQuery_HTTPErrorSurfaces(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(ts.Close)

	client := New(Config{URL: ts.URL})
	t.Cleanup(func() { client.Close() })

	var out map[string]any
	err := client.Query(context.Background(), `query { seasons }`, nil, &out)
	require.Error(t, err)
	require.Contains(t, err.Error(), "503")
}
