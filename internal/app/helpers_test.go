package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"troffee-marketplace-client/internal/adapters/gateway"
	"troffee-marketplace-client/internal/domain/shared"
	"troffee-marketplace-client/internal/ports/outbound"
)

// fakeStore is an in-memory TokenStore whose Watch channel is driven by
// Clear, so watchdog behavior is observable without touching the filesystem.
type fakeStore struct {
	mu       sync.Mutex
	session  shared.Session
	watchers []chan outbound.Change
}

func newFakeStore(session shared.Session) *fakeStore {
	return &fakeStore{session: session}
}

func (f *fakeStore) Session() shared.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

func (f *fakeStore) Access() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session.Access
}

func (f *fakeStore) RefreshToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session.Refresh
}

func (f *fakeStore) SetAccess(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session.Access = token
	return nil
}

func (f *fakeStore) SetSession(s shared.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = s
	return nil
}

func (f *fakeStore) Clear() error {
	f.mu.Lock()
	f.session = shared.Session{}
	watchers := append([]chan outbound.Change(nil), f.watchers...)
	f.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- outbound.Change{Type: outbound.ChangeCleared}:
		default:
		}
	}
	return nil
}

func (f *fakeStore) Watch(ctx context.Context) <-chan outbound.Change {
	ch := make(chan outbound.Change, 1)
	f.mu.Lock()
	f.watchers = append(f.watchers, ch)
	f.mu.Unlock()
	return ch
}

func newTestBackend(t *testing.T, handler http.Handler, session shared.Session) (*gateway.Gateway, *fakeStore) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store := newFakeStore(session)
	gw := gateway.New(gateway.Params{
		HTTPClient: server.Client(),
		BaseURL:    server.URL,
		Store:      store,
		Logger:     zerolog.Nop(),
	})
	return gw, store
}

func newTestMessaging(t *testing.T, handler http.Handler, session shared.Session) (*MessagingService, *fakeStore) {
	t.Helper()
	gw, store := newTestBackend(t, handler, session)
	svc := NewMessagingService(MessagingServiceParams{
		Gateway: gw,
		Store:   store,
		Logger:  zerolog.Nop(),
	})
	t.Cleanup(svc.Close)
	return svc, store
}
