package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/pelusa-v/yummy-chat/internal/chat"
	"github.com/pelusa-v/yummy-chat/internal/directory"
	"github.com/pelusa-v/yummy-chat/internal/model"
	"github.com/pelusa-v/yummy-chat/internal/store/memory"
	"github.com/stretchr/testify/require"
)

const seed = `
friendships:
  - id: f1
    sender: alice
    receiver: bob
groups:
  - id: g1
    members: [alice, bob, carol]
`

func newApp(t *testing.T) (*fiber.App, *chat.Service) {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	dir := directory.NewMemory(st)
	require.NoError(t, dir.Seed(ctx, strings.NewReader(seed)))
	svc, err := chat.NewService(chat.Options{Store: st, Friendships: dir.Friendships(), Groups: dir.Groups()})
	require.NoError(t, err)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(AccessLog)
	New(ctx, svc, chat.NewManager(svc, nil, 4)).Register(app)
	return app, svc
}

func do(t *testing.T, app *fiber.App, method, target, user, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(usernameHeader, user)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func sendAs(t *testing.T, svc *chat.Service, user, conversationID, content string) {
	t.Helper()
	_, err := svc.SendPrivate(context.Background(), chat.Origin{Username: user, ConnID: "test"}, chat.SendPayload{
		ConversationID: conversationID,
		Message:        chat.OutgoingMessage{Content: content},
	})
	require.NoError(t, err)
}

func decodeMessages(t *testing.T, data []byte) []model.Message {
	t.Helper()
	var msgs []model.Message
	require.NoError(t, json.Unmarshal(data, &msgs))
	return msgs
}

func TestIdentityRequired(t *testing.T) {
	app, _ := newApp(t)
	code, body := do(t, app, http.MethodGet, "/api/inbox", "", "")
	require.Equal(t, http.StatusUnauthorized, code)
	require.JSONEq(t, `{"error":"missing username"}`, string(body))

	code, _ = do(t, app, http.MethodGet, "/api/inbox?username=alice", "", "")
	require.Equal(t, http.StatusOK, code)
}

func TestMessagesAndHide(t *testing.T) {
	app, svc := newApp(t)
	sendAs(t, svc, "alice", "f1", "Hello Bob")
	sendAs(t, svc, "bob", "f1", "hi alice")

	code, body := do(t, app, http.MethodGet, "/api/conversations/f1/messages", "bob", "")
	require.Equal(t, http.StatusOK, code)
	msgs := decodeMessages(t, body)
	require.Len(t, msgs, 2)

	code, _ = do(t, app, http.MethodPost, "/api/conversations/f1/messages/"+msgs[0].ID+"/hide", "bob", "")
	require.Equal(t, http.StatusNoContent, code)

	_, body = do(t, app, http.MethodGet, "/api/conversations/f1/messages", "bob", "")
	require.Len(t, decodeMessages(t, body), 1)
	_, body = do(t, app, http.MethodGet, "/api/conversations/f1/messages", "alice", "")
	require.Len(t, decodeMessages(t, body), 2)

	_, body = do(t, app, http.MethodGet, "/api/conversations/f1/messages?content=hello", "alice", "")
	require.Len(t, decodeMessages(t, body), 1)
	_, body = do(t, app, http.MethodGet, "/api/conversations/f1/messages?sender=bob", "alice", "")
	require.Len(t, decodeMessages(t, body), 1)

	code, _ = do(t, app, http.MethodGet, "/api/conversations/f1/messages", "carol", "")
	require.Equal(t, http.StatusForbidden, code)

	code, _ = do(t, app, http.MethodGet, "/api/conversations/f1/messages?start=yesterday", "alice", "")
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, app, http.MethodGet, "/api/conversations/f1/messages?start=2000-01-01T00:00:00Z&end=2001-01-01T00:00:00Z", "alice", "")
	require.Equal(t, http.StatusOK, code)
}

func TestOnlineUsersHandler(t *testing.T) {
	app, svc := newApp(t)
	svc.Presence.Register("alice", "a1")
	svc.Presence.Register("bob", "b1")
	svc.Presence.Register("bob", "b2")

	code, body := do(t, app, http.MethodGet, "/api/online", "alice", "")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `["alice","bob"]`, string(body))

	_, body = do(t, app, http.MethodGet, "/api/online?exclude=alice", "alice", "")
	require.JSONEq(t, `["bob"]`, string(body))
}

func TestRefHandler(t *testing.T) {
	app, svc := newApp(t)
	sendAs(t, svc, "alice", "f1", "quote me")
	msgs, err := svc.Conversations.ListAll(context.Background(), "f1", "alice")
	require.NoError(t, err)

	code, body := do(t, app, http.MethodGet, "/api/conversations/f1/messages/"+msgs[0].ID+"/ref", "bob", "")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"refCount":0}`, string(body))

	code, _ = do(t, app, http.MethodGet, "/api/conversations/f1/messages/nope/ref", "bob", "")
	require.Equal(t, http.StatusNotFound, code)
}

func TestCursorHandlers(t *testing.T) {
	app, svc := newApp(t)
	code, _ := do(t, app, http.MethodPost, "/api/conversations/f1/cursor", "bob", `{"time":"2024-03-01T12:00:00Z"}`)
	require.Equal(t, http.StatusNoContent, code)

	got, ok, err := svc.Cursors.Get(context.Background(), "bob", "f1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2024-03-01T12:00:00Z", got.UTC().Format("2006-01-02T15:04:05Z07:00"))

	code, _ = do(t, app, http.MethodPost, "/api/conversations/f1/cursor", "carol", "")
	require.Equal(t, http.StatusForbidden, code)

	code, _ = do(t, app, http.MethodPost, "/api/cursor", "carol", "")
	require.Equal(t, http.StatusNoContent, code)
	_, ok, err = svc.Cursors.Get(context.Background(), "carol", "g1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestInboxHandlers(t *testing.T) {
	app, svc := newApp(t)
	sendAs(t, svc, "alice", "f1", "ping")

	code, body := do(t, app, http.MethodGet, "/api/inbox", "bob", "")
	require.Equal(t, http.StatusOK, code)
	var list []chat.ThreadPreview
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 2)
	require.Equal(t, "f1", list[0].ThreadID)
	require.Equal(t, 1, list[0].Unread)

	code, _ = do(t, app, http.MethodPost, "/api/inbox/read", "bob", "")
	require.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, app, http.MethodPost, "/api/inbox/read?thread_id=f1", "bob", "")
	require.Equal(t, http.StatusNoContent, code)
}

func TestOperationalRoutes(t *testing.T) {
	app, _ := newApp(t)
	code, _ := do(t, app, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, code)

	code, body := do(t, app, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, string(body), "yummy_chat_online_connections")

	code, _ = do(t, app, http.MethodGet, "/api/ws", "alice", "")
	require.Equal(t, http.StatusUpgradeRequired, code)

	code, body = do(t, app, http.MethodGet, "/api/clients", "alice", "")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `[]`, string(body))

	code, body = do(t, app, http.MethodGet, "/api/online", "alice", "")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `[]`, string(body))
}
