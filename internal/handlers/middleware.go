package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/pelusa-v/yummy-chat/internal/chat"
	"github.com/pelusa-v/yummy-chat/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	localUsername  = "username"
	usernameHeader = "X-Username"
)

// Identity takes the verified username set by the auth gateway.
func Identity(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.Get(usernameHeader))
	if name == "" {
		name = strings.TrimSpace(c.Query("username"))
	}
	if name == "" {
		return writeError(c, fiber.NewError(fiber.StatusUnauthorized, "missing username"))
	}
	c.Locals(localUsername, name)
	return c.Next()
}

func username(c *fiber.Ctx) string {
	name, _ := c.Locals(localUsername).(string)
	return name
}

// RequireUpgrade rejects plain HTTP requests to the socket endpoint.
func RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// AccessLog logs one line per request.
func AccessLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	log.Debug("HTTP request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"user", username(c),
		"duration", time.Since(start),
	)
	return err
}

func HealthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// statusOf maps domain errors onto HTTP status codes.
func statusOf(err error) int {
	var fe *fiber.Error
	var conflict *store.ConflictError
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &conflict):
		return fiber.StatusConflict
	case errors.Is(err, chat.ErrNoVisibilityContext):
		return fiber.StatusForbidden
	case errors.Is(err, chat.ErrConversationNotFound), errors.Is(err, chat.ErrMessageNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, chat.ErrIncompleteQuote), errors.Is(err, chat.ErrNotIdentified):
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

func writeError(c *fiber.Ctx, err error) error {
	code := statusOf(err)
	msg := err.Error()
	if code == fiber.StatusInternalServerError {
		log.Error("Request failed", "path", c.Path(), "err", err)
		msg = "internal error"
	} else if fe := (*fiber.Error)(nil); errors.As(err, &fe) {
		msg = fe.Message
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

// ErrorHandler is the app-wide fallback for errors returned by handlers.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return writeError(c, err)
}
