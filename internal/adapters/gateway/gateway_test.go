package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"troffee-marketplace-client/internal/domain/shared"
	"troffee-marketplace-client/internal/ports/outbound"
)

// memStore is an in-memory TokenStore for gateway tests.
type memStore struct {
	mu      sync.Mutex
	session shared.Session
}

func (m *memStore) Session() shared.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

func (m *memStore) Access() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Access
}

func (m *memStore) RefreshToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Refresh
}

func (m *memStore) SetAccess(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session.Access = token
	return nil
}

func (m *memStore) SetSession(s shared.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
	return nil
}

func (m *memStore) Clear() error {
	return m.SetSession(shared.Session{})
}

func (m *memStore) Watch(ctx context.Context) <-chan outbound.Change {
	ch := make(chan outbound.Change)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

func newTestGateway(t *testing.T, handler http.Handler, session shared.Session) (*Gateway, *memStore) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := &memStore{session: session}
	gw := New(Params{
		HTTPClient: server.Client(),
		BaseURL:    server.URL,
		Store:      store,
		Logger:     zerolog.Nop(),
	})
	return gw, store
}

func TestDo_RefreshAndRetryOnce(t *testing.T) {
	var refreshCalls, resourceCalls int
	var retriedAuth string

	mux := http.NewServeMux()
	mux.HandleFunc("/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "refresh-1", body["refresh"])
		json.NewEncoder(w).Encode(map[string]string{"access": "access-2"})
	})
	mux.HandleFunc("/items/", func(w http.ResponseWriter, r *http.Request) {
		resourceCalls++
		if r.Header.Get("Authorization") == "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		retriedAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"ok": true}`))
	})

	gw, store := newTestGateway(t, mux, shared.Session{Access: "access-1", Refresh: "refresh-1"})

	resp, err := gw.Do(context.Background(), Request{Method: http.MethodGet, Path: "items/"})
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, refreshCalls, "exactly one refresh call")
	require.Equal(t, 2, resourceCalls, "exactly one retry")
	require.Equal(t, "Bearer access-2", retriedAuth, "retry carries the new token")
	require.Equal(t, "access-2", store.Access(), "new access token stored")
}

func TestDo_NoRefreshTokenReturns401Unchanged(t *testing.T) {
	var refreshCalls, resourceCalls int

	mux := http.NewServeMux()
	mux.HandleFunc("/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
	})
	mux.HandleFunc("/items/", func(w http.ResponseWriter, r *http.Request) {
		resourceCalls++
		w.WriteHeader(http.StatusUnauthorized)
	})

	gw, _ := newTestGateway(t, mux, shared.Session{Access: "stale"})

	resp, err := gw.Do(context.Background(), Request{Method: http.MethodGet, Path: "items/"})
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, 0, refreshCalls, "no refresh without a refresh token")
	require.Equal(t, 1, resourceCalls)
}

func TestDo_RefreshFailureReturnsOriginal401(t *testing.T) {
	var resourceCalls int

	mux := http.NewServeMux()
	mux.HandleFunc("/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc("/items/", func(w http.ResponseWriter, r *http.Request) {
		resourceCalls++
		w.WriteHeader(http.StatusUnauthorized)
	})

	gw, store := newTestGateway(t, mux, shared.Session{Access: "stale", Refresh: "expired"})

	resp, err := gw.Do(context.Background(), Request{Method: http.MethodGet, Path: "items/"})
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, 1, resourceCalls, "failed refresh must not trigger a retry")
	require.Equal(t, "stale", store.Access(), "stored token untouched on refresh failure")
}

func TestDo_JSONAndMultipartContentTypes(t *testing.T) {
	var jsonCT, formCT string

	mux := http.NewServeMux()
	mux.HandleFunc("/json/", func(w http.ResponseWriter, r *http.Request) {
		jsonCT = r.Header.Get("Content-Type")
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/form/", func(w http.ResponseWriter, r *http.Request) {
		formCT = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "rare stamp", r.FormValue("name"))
		w.Write([]byte(`{}`))
	})

	gw, _ := newTestGateway(t, mux, shared.Session{Access: "access-1"})

	resp, err := gw.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "json/",
		JSON:   map[string]string{"name": "rare stamp"},
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "application/json", jsonCT)

	form, err := NewFormBuilder().Field("name", "rare stamp").Build()
	require.NoError(t, err)
	resp, err = gw.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "form/",
		Form:   form,
	})
	require.NoError(t, err)
	resp.Body.Close()
	require.True(t, strings.HasPrefix(formCT, "multipart/form-data; boundary="),
		"multipart content type with boundary, got %q", formCT)
}

func TestJSON_PaginationEnvelope(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/items/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"count": 12, "next": "http://x/items/?page=2", "previous": null, "results": [{"id": 1}, {"id": 2}]}`))
	})
	mux.HandleFunc("/categories/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": 7}]`))
	})

	gw, _ := newTestGateway(t, mux, shared.Session{Access: "access-1"})

	type row struct {
		ID int64 `json:"id"`
	}

	var items []row
	meta, err := gw.JSON(context.Background(), Request{Method: http.MethodGet, Path: "items/"}, &items)
	require.NoError(t, err)
	require.NotNil(t, meta, "envelope recognized")
	require.Equal(t, int64(12), meta.Count)
	require.Equal(t, "http://x/items/?page=2", meta.Next)
	require.Len(t, items, 2)

	var categories []row
	meta, err = gw.JSON(context.Background(), Request{Method: http.MethodGet, Path: "categories/"}, &categories)
	require.NoError(t, err)
	require.Nil(t, meta, "bare list passes through")
	require.Len(t, categories, 1)
}

func TestParseAPIError(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "detail_field",
			body: `{"detail": "Not found."}`,
			want: "Not found.",
		},
		{
			name: "error_field",
			body: `{"error": "something broke"}`,
			want: "something broke",
		},
		{
			name: "message_field",
			body: `{"message": "try later"}`,
			want: "try later",
		},
		{
			name: "bare_string",
			body: `"server said no"`,
			want: "server said no",
		},
		{
			name: "single_field_errors",
			body: `{"amount": ["must be greater than current bid"]}`,
			want: "amount: must be greater than current bid",
		},
		{
			name: "multi_value_field_errors",
			body: `{"amount": ["must be a number", "must be positive"]}`,
			want: "amount: must be a number, must be positive",
		},
		{
			name: "multiple_fields_sorted",
			body: `{"username": ["taken"], "email": ["invalid"]}`,
			want: "email: invalid; username: taken",
		},
		{
			name: "scalar_field_value",
			body: `{"ends": "date is in the past"}`,
			want: "ends: date is in the past",
		},
		{
			name: "unparsable_body",
			body: `<html>boom</html>`,
			want: "HTTP error! status: 400",
		},
		{
			name: "empty_body",
			body: ``,
			want: "HTTP error! status: 400",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseAPIError(http.StatusBadRequest, []byte(tt.body))
			require.Equal(t, tt.want, err.Message)
			require.Equal(t, http.StatusBadRequest, err.Status)
		})
	}
}

func TestJSON_Non2xxBecomesAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/bids/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"amount": ["must be greater than current bid"]}`))
	})

	gw, _ := newTestGateway(t, mux, shared.Session{Access: "access-1"})

	_, err := gw.JSON(context.Background(), Request{Method: http.MethodPost, Path: "bids/"}, nil)
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, "amount: must be greater than current bid", apiErr.Message)
}
