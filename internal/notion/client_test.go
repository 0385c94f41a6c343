package notion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = Credentials{APIKey: "secret_abc", DatabaseID: "db123"}

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate ...func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := Config{
		BaseURL:        srv.URL,
		Version:        "2022-06-28",
		PageSize:       100,
		MaxPages:       1,
		Timeout:        2 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, logger)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestTestConnection_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/databases/db123", r.URL.Path)
		assert.Equal(t, "Bearer secret_abc", r.Header.Get("Authorization"))
		assert.Equal(t, "2022-06-28", r.Header.Get("Notion-Version"))
		writeJSON(w, http.StatusOK, map[string]any{
			"object": "database",
			"id":     "db123",
			"title":  []map[string]any{{"plain_text": "Creators"}},
		})
	})

	res := client.TestConnection(context.Background(), testCreds)

	assert.True(t, res.Success)
	assert.Equal(t, "Creators", res.Title)
}

func TestTestConnection_RemoteError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"object":  "error",
			"status":  401,
			"code":    "unauthorized",
			"message": "API token is invalid.",
		})
	})

	res := client.TestConnection(context.Background(), testCreds)

	assert.False(t, res.Success)
	assert.Equal(t, "API token is invalid.", res.Message)
}

func TestTestConnection_MissingCredentialsMakesNoRequest(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	res := client.TestConnection(context.Background(), Credentials{APIKey: "k"})

	assert.False(t, res.Success)
	assert.Zero(t, calls.Load())
}

func TestQueryDatabase_SinglePageByDefault(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/databases/db123/query", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 100, body["page_size"])

		writeJSON(w, http.StatusOK, map[string]any{
			"object":      "list",
			"results":     []map[string]any{{"id": "p1"}, {"id": "p2"}},
			"has_more":    true,
			"next_cursor": "c1",
		})
	})

	pages, err := client.QueryDatabase(context.Background(), testCreds, 0)

	require.NoError(t, err)
	assert.Len(t, pages, 2)
	assert.EqualValues(t, 1, calls.Load())
}

func TestQueryDatabase_UsesConfiguredPageSize(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 25, body["page_size"])
		writeJSON(w, http.StatusOK, map[string]any{"results": []map[string]any{}})
	}, func(c *Config) {
		c.PageSize = 25
	})

	_, err := client.QueryDatabase(context.Background(), testCreds, 0)

	require.NoError(t, err)
}

func TestQueryDatabase_FollowsCursor(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body queryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		if body.StartCursor == "" {
			writeJSON(w, http.StatusOK, map[string]any{
				"results":     []map[string]any{{"id": "p1"}},
				"has_more":    true,
				"next_cursor": "c1",
			})
			return
		}
		assert.Equal(t, "c1", body.StartCursor)
		writeJSON(w, http.StatusOK, map[string]any{
			"results":  []map[string]any{{"id": "p2"}},
			"has_more": false,
		})
	}, func(c *Config) { c.MaxPages = 5 })

	pages, err := client.QueryDatabase(context.Background(), testCreds, 1)

	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "p1", pages[0].ID)
	assert.Equal(t, "p2", pages[1].ID)
}

func TestQueryDatabase_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusNotFound, map[string]any{
			"object":  "error",
			"code":    "object_not_found",
			"message": "Could not find database with ID: db123.",
		})
	})

	_, err := client.QueryDatabase(context.Background(), testCreds, 0)

	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "Could not find database with ID: db123.")
	assert.EqualValues(t, 1, calls.Load())
}

func TestQueryDatabase_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"message": "busy"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": []map[string]any{{"id": "p1"}}})
	})

	pages, err := client.QueryDatabase(context.Background(), testCreds, 0)

	require.NoError(t, err)
	assert.Len(t, pages, 1)
	assert.EqualValues(t, 3, calls.Load())
}

func TestQueryDatabase_GivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"code": "rate_limited", "message": "slow down"})
	})

	_, err := client.QueryDatabase(context.Background(), testCreds, 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "slow down")
	assert.EqualValues(t, 3, calls.Load())
}

func TestQueryDatabase_Timeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}, func(c *Config) {
		c.Timeout = 20 * time.Millisecond
		c.MaxAttempts = 1
	})

	_, err := client.QueryDatabase(context.Background(), testCreds, 0)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute request")
}

func TestQueryDatabase_MissingCredentials(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unexpected request")
	})

	_, err := client.QueryDatabase(context.Background(), Credentials{DatabaseID: "db"}, 0)

	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestCreatePage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/pages", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body struct {
			Parent     map[string]string          `json:"parent"`
			Properties map[string]json.RawMessage `json:"properties"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "db123", body.Parent["database_id"])
		assert.JSONEq(t, `{"type":"title","title":[{"type":"text","text":{"content":"Ada"}}]}`, string(body.Properties["Name"]))
		assert.JSONEq(t, `{"type":"checkbox","checkbox":true}`, string(body.Properties["Is Verified"]))

		writeJSON(w, http.StatusOK, map[string]any{"object": "page", "id": "new-page"})
	})

	page, err := client.CreatePage(context.Background(), testCreds, Properties{
		"Name":        {Type: TypeTitle, Title: Text("Ada")},
		"Is Verified": {Type: TypeCheckbox, Checkbox: true},
	})

	require.NoError(t, err)
	assert.Equal(t, "new-page", page.ID)
}

func TestCreatePage_ValidationError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"object":  "error",
			"code":    "validation_error",
			"message": "Bio is not a property that exists.",
		})
	})

	_, err := client.CreatePage(context.Background(), testCreds, Properties{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Bio is not a property that exists.")
}

func TestCreatePage_TimeoutNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}, func(c *Config) {
		c.Timeout = 20 * time.Millisecond
	})

	_, err := client.CreatePage(context.Background(), testCreds, Properties{"Name": {Type: TypeTitle, Title: Text("Ada")}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "execute request")
	assert.EqualValues(t, 1, calls.Load())
}

func TestCreatePage_ServerErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadGateway, map[string]any{"message": "upstream"})
	})

	_, err := client.CreatePage(context.Background(), testCreds, Properties{})

	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestCreatePage_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"code": "rate_limited", "message": "slow down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"object": "page", "id": "new-page"})
	})

	page, err := client.CreatePage(context.Background(), testCreds, Properties{})

	require.NoError(t, err)
	assert.Equal(t, "new-page", page.ID)
	assert.EqualValues(t, 2, calls.Load())
}

func TestPropertyValue_MarshalEmptyRichText(t *testing.T) {
	data, err := json.Marshal(PropertyValue{Type: TypeRichText})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"rich_text","rich_text":[]}`, string(data))
}

func TestPlainText_FallsBackToContent(t *testing.T) {
	rt := []RichText{{PlainText: "Hello "}, {Text: &TextContent{Content: "world"}}}
	assert.Equal(t, "Hello world", PlainText(rt))
}
