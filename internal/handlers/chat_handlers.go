package handlers

import (
	"context"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/pelusa-v/yummy-chat/internal/chat"
	"github.com/pelusa-v/yummy-chat/internal/model"
)

// Handlers serves the HTTP and socket surface of one chat service.
type Handlers struct {
	Service *chat.Service
	Manager *chat.Manager
	// BaseContext outlives requests; socket sessions run under it.
	BaseContext context.Context
}

func New(ctx context.Context, svc *chat.Service, mgr *chat.Manager) *Handlers {
	return &Handlers{Service: svc, Manager: mgr, BaseContext: ctx}
}

// Register mounts every route on app.
func (h *Handlers) Register(app *fiber.App) {
	app.Get("/healthz", HealthHandler)
	app.Get("/metrics", MetricsHandler())

	api := app.Group("/api", Identity)
	api.Get("/ws", RequireUpgrade, websocket.New(h.WSHandler))
	api.Get("/clients", h.ShowClientsHandler) // ?exclude=nameOrId
	api.Get("/online", h.OnlineUsersHandler)  // ?exclude=name
	api.Get("/inbox", h.InboxHandler)
	api.Post("/inbox/read", h.MarkReadHandler) // ?thread_id=

	conv := api.Group("/conversations/:id")
	conv.Get("/messages", h.MessagesHandler) // ?start=&end=&sender=&content=
	conv.Post("/messages/:msgId/hide", h.HideHandler)
	conv.Get("/messages/:msgId/ref", h.RefHandler)
	conv.Post("/cursor", h.CursorHandler)
	api.Post("/cursor", h.GlobalCursorHandler)
}

// WSHandler GET /api/ws
func (h *Handlers) WSHandler(c *websocket.Conn) {
	name, _ := c.Locals(localUsername).(string)
	client := h.Manager.NewClient(c, name)
	h.Manager.Serve(h.BaseContext, client)
}

// ShowClientsHandler GET /api/clients?exclude=nameOrId
func (h *Handlers) ShowClientsHandler(c *fiber.Ctx) error {
	return c.JSON(h.Manager.ListClients(c.Query("exclude")))
}

// OnlineUsersHandler GET /api/online?exclude=name
func (h *Handlers) OnlineUsersHandler(c *fiber.Ctx) error {
	return c.JSON(h.Manager.OnlineUsers(c.Query("exclude")))
}

// InboxHandler GET /api/inbox
func (h *Handlers) InboxHandler(c *fiber.Ctx) error {
	list, err := h.Service.Inbox(c.UserContext(), username(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(list)
}

// MarkReadHandler POST /api/inbox/read?thread_id=
func (h *Handlers) MarkReadHandler(c *fiber.Ctx) error {
	thread := c.Query("thread_id")
	if thread == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	if !h.Service.MarkRead(c.UserContext(), username(c), thread) {
		return writeError(c, chat.ErrNoVisibilityContext)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// MessagesHandler GET /api/conversations/:id/messages
func (h *Handlers) MessagesHandler(c *fiber.Ctx) error {
	filter := model.Filter{Sender: c.Query("sender"), Content: c.Query("content")}
	var err error
	if filter.Start, err = queryTime(c, "start"); err != nil {
		return writeError(c, err)
	}
	if filter.End, err = queryTime(c, "end"); err != nil {
		return writeError(c, err)
	}
	msgs, err := h.Service.Conversations.List(c.UserContext(), c.Params("id"), username(c), filter)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(msgs)
}

// HideHandler POST /api/conversations/:id/messages/:msgId/hide
func (h *Handlers) HideHandler(c *fiber.Ctx) error {
	if err := h.Service.Visibility.Hide(c.UserContext(), c.Params("id"), username(c), c.Params("msgId")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// RefHandler GET /api/conversations/:id/messages/:msgId/ref
func (h *Handlers) RefHandler(c *fiber.Ctx) error {
	ctx := c.UserContext()
	id := c.Params("id")
	if _, err := h.Service.Participants().KindOf(ctx, username(c), id); err != nil {
		return writeError(c, err)
	}
	ref, err := h.Service.Conversations.GetRef(ctx, id, c.Params("msgId"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(ref)
}

type cursorBody struct {
	Time time.Time `json:"time"`
}

// CursorHandler POST /api/conversations/:id/cursor
func (h *Handlers) CursorHandler(c *fiber.Ctx) error {
	var body cursorBody
	if err := parseOptionalBody(c, &body); err != nil {
		return writeError(c, err)
	}
	origin := chat.Origin{Username: username(c)}
	out, err := h.Service.SetReadCursor(c.UserContext(), origin, chat.CursorPayload{ConversationID: c.Params("id"), Time: body.Time})
	if err != nil {
		return writeError(c, err)
	}
	h.Manager.Deliver(out)
	return c.SendStatus(fiber.StatusNoContent)
}

// GlobalCursorHandler POST /api/cursor
func (h *Handlers) GlobalCursorHandler(c *fiber.Ctx) error {
	var body cursorBody
	if err := parseOptionalBody(c, &body); err != nil {
		return writeError(c, err)
	}
	origin := chat.Origin{Username: username(c)}
	out, err := h.Service.SetGlobalCursor(c.UserContext(), origin, chat.CursorPayload{Time: body.Time})
	if err != nil {
		return writeError(c, err)
	}
	h.Manager.Deliver(out)
	return c.SendStatus(fiber.StatusNoContent)
}

func parseOptionalBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body: "+err.Error())
	}
	return nil
}

func queryTime(c *fiber.Ctx, key string) (*time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+key+": "+err.Error())
	}
	return &t, nil
}
