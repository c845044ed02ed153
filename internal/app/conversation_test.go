package app

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"troffee-marketplace-client/internal/domain/message"
	"troffee-marketplace-client/internal/domain/shared"
)

func TestSnippet(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "short_unchanged", content: "hello", want: "hello"},
		{name: "exactly_80_unchanged", content: strings.Repeat("a", 80), want: strings.Repeat("a", 80)},
		{name: "eighty_one_truncated", content: strings.Repeat("a", 81), want: strings.Repeat("a", 77) + "..."},
		{name: "long_truncated", content: strings.Repeat("b", 200), want: strings.Repeat("b", 77) + "..."},
		{name: "empty", content: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Snippet(tt.content))
		})
	}
}

func TestNormalizeMessages(t *testing.T) {
	list, ok := normalizeMessages(json.RawMessage(`[{"id": 1, "content": "hi"}]`))
	require.True(t, ok)
	require.Len(t, list, 1)

	list, ok = normalizeMessages(json.RawMessage(`{"count": 1, "results": [{"id": 2}]}`))
	require.True(t, ok)
	require.Len(t, list, 1)
	require.Equal(t, int64(2), list[0].ID)

	list, ok = normalizeMessages(json.RawMessage(`{"surprise": true}`))
	require.False(t, ok, "unknown object shape is flagged")
	require.Empty(t, list)

	list, ok = normalizeMessages(json.RawMessage(`"nope"`))
	require.False(t, ok)
	require.Empty(t, list)
}

func threadPayload(msgs ...string) string {
	return "[" + strings.Join(msgs, ",") + "]"
}

func TestRefreshMeta_CountsAndOmissions(t *testing.T) {
	me := shared.Session{Access: "tok", User: shared.User{ID: 5, Username: "alice"}}

	mux := http.NewServeMux()
	mux.HandleFunc("/messages/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("winning_pair") {
		case "1":
			w.Write([]byte(threadPayload(
				`{"id": 10, "winning_pair": 1, "recipient": 5, "content": "first", "is_read": false}`,
				`{"id": 11, "winning_pair": 1, "recipient": 5, "content": "second", "is_read": true}`,
				`{"id": 12, "winning_pair": 1, "recipient": 5, "content": "`+strings.Repeat("x", 100)+`"}`,
			)))
		case "2":
			w.WriteHeader(http.StatusInternalServerError)
		case "3":
			w.Write([]byte(threadPayload(
				`{"id": 30, "winning_pair": 3, "recipient": 9, "content": "for someone else", "is_read": false}`,
			)))
		default:
			w.Write([]byte(`[]`))
		}
	})

	svc, _ := newTestMessaging(t, mux, me)

	convs := []message.Conversation{
		{ID: "wp-1", WinningPairID: 1, MeID: 5},
		{ID: "wp-2", WinningPairID: 2, MeID: 5},
		{ID: "wp-3", WinningPairID: 3, MeID: 5},
	}

	metas, total := svc.RefreshMeta(context.Background(), convs)

	require.NotContains(t, metas, int64(2), "failed thread omitted, not zeroed")
	require.Contains(t, metas, int64(1))
	require.Contains(t, metas, int64(3))

	// Thread 1: one unread (false) + one unread (missing); the read one
	// does not count.
	require.Equal(t, 2, metas[1].UnreadCount)
	require.Equal(t, strings.Repeat("x", 77)+"...", metas[1].LastMessage)

	// Thread 3: nothing addressed to the current user.
	require.Equal(t, 0, metas[3].UnreadCount)

	require.Equal(t, 2, total, "total is the sum over fetched threads only")
}

func TestConversations_PairsAgainstCurrentUser(t *testing.T) {
	me := shared.Session{Access: "tok", User: shared.User{ID: 11, Username: "alice"}}

	mux := http.NewServeMux()
	mux.HandleFunc("/winning-pairs/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id": 7, "item": {"id": 42, "seller": {"user_id": 11, "username": "alice"}}, "winning_bidder": {"user_id": 22, "username": "bob"}},
			{"id": 8, "item": {"id": 43, "seller": {"user_id": 33, "username": "carol"}}, "winning_bidder": {"user_id": 44, "username": "dave"}}
		]`))
	})

	svc, _ := newTestMessaging(t, mux, me)

	convs, err := svc.Conversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1, "pairs not involving the user are excluded")

	conv := convs[0]
	require.Equal(t, int64(7), conv.WinningPairID)
	require.Equal(t, int64(42), conv.ItemID)
	require.Equal(t, int64(22), conv.OtherUserID)
	require.Equal(t, "bob", conv.OtherUserName)
}

func TestMarkRead_BestEffort(t *testing.T) {
	me := shared.Session{Access: "tok", User: shared.User{ID: 5}}

	var marked []string
	mux := http.NewServeMux()
	mux.HandleFunc("/messages/", func(w http.ResponseWriter, r *http.Request) {
		marked = append(marked, r.URL.Path)
		if r.URL.Path == "/messages/2/" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`))
	})

	svc, _ := newTestMessaging(t, mux, me)

	var msgs []message.Message
	require.NoError(t, json.Unmarshal([]byte(threadPayload(
		`{"id": 1, "recipient": 5, "is_read": false}`,
		`{"id": 2, "recipient": 5}`,
		`{"id": 3, "recipient": 5, "is_read": true}`,
		`{"id": 4, "recipient": 9, "is_read": false}`,
	)), &msgs))

	svc.MarkRead(context.Background(), 5, msgs)

	require.Equal(t, []string{"/messages/1/", "/messages/2/"}, marked,
		"one request per unread incoming message; failures ignored")
}

func TestSend_ReturnsServerSavedObject(t *testing.T) {
	me := shared.Session{Access: "tok", User: shared.User{ID: 5}}

	mux := http.NewServeMux()
	mux.HandleFunc("/messages/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.EqualValues(t, 7, payload["winning_pair"])
		require.EqualValues(t, 5, payload["sender"])
		require.EqualValues(t, 22, payload["recipient"])
		w.Write([]byte(`{"id": 99, "winning_pair": 7, "sender": 5, "recipient": 22, "content": "hello", "is_read": false}`))
	})

	svc, _ := newTestMessaging(t, mux, me)

	conv := message.Conversation{WinningPairID: 7, MeID: 5, OtherUserID: 22}
	saved, err := svc.Send(context.Background(), conv, "hello")
	require.NoError(t, err)
	require.Equal(t, int64(99), saved.ID)
	require.Equal(t, "hello", saved.Content)
}

func TestSend_EmptyContentRejectedLocally(t *testing.T) {
	svc, _ := newTestMessaging(t, http.NewServeMux(), shared.Session{Access: "tok"})

	_, err := svc.Send(context.Background(), message.Conversation{WinningPairID: 7}, "")
	require.ErrorIs(t, err, shared.ErrEmptyMessage)
}
