package app

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"troffee-marketplace-client/internal/domain/shared"
	"troffee-marketplace-client/internal/ports/inbound"
)

func newTestAdmin(t *testing.T, handler http.Handler) *AdminService {
	t.Helper()
	gw, _ := newTestBackend(t, handler, shared.Session{Access: "tok", User: shared.User{ID: 1, IsStaff: true}})
	return NewAdminService(AdminServiceParams{Gateway: gw, Logger: zerolog.Nop()})
}

func boolPtr(v bool) *bool { return &v }

func TestUsers_FilterQuery(t *testing.T) {
	var query string
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/admin/users/", func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte(`[{"id": 2, "username": "pending-bob"}]`))
	})

	svc := newTestAdmin(t, mux)

	users, err := svc.Users(context.Background(), inbound.UserFilter{Pending: boolPtr(true)})
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, "pending=true", query)

	_, err = svc.Users(context.Background(), inbound.UserFilter{Active: boolPtr(false)})
	require.NoError(t, err)
	require.Equal(t, "is_active=false", query)

	_, err = svc.Users(context.Background(), inbound.UserFilter{})
	require.NoError(t, err)
	require.Empty(t, query)
}

func TestRegistrationActions(t *testing.T) {
	var paths []string
	var note string
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/admin/users/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		paths = append(paths, r.URL.Path)
		if r.ContentLength > 0 {
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			note = body["note"]
		}
		w.Write([]byte(`{}`))
	})

	svc := newTestAdmin(t, mux)

	require.NoError(t, svc.Approve(context.Background(), 2))
	require.NoError(t, svc.Deny(context.Background(), 3))
	require.NoError(t, svc.RequestChanges(context.Background(), 4, "add a phone number"))

	require.Equal(t, []string{
		"/auth/admin/users/2/approve/",
		"/auth/admin/users/3/deny/",
		"/auth/admin/users/4/request_changes/",
	}, paths)
	require.Equal(t, "add a phone number", note)
}

func TestUpdateUser_NothingChanged(t *testing.T) {
	svc := newTestAdmin(t, http.NewServeMux())
	user := shared.User{ID: 2, Email: "same@example.com"}
	_, err := svc.UpdateUser(context.Background(), user, user)
	require.ErrorIs(t, err, shared.ErrNothingToUpdate)
}

func TestDeleteUser(t *testing.T) {
	var method, path string
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/admin/users/", func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	})

	svc := newTestAdmin(t, mux)

	require.NoError(t, svc.DeleteUser(context.Background(), 6))
	require.Equal(t, http.MethodDelete, method)
	require.Equal(t, "/auth/admin/users/6/", path)
}
