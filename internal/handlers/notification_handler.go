package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Windi-Fikriyansyah/obra_be/internal/apperr"
	"github.com/Windi-Fikriyansyah/obra_be/internal/middleware"
	"github.com/Windi-Fikriyansyah/obra_be/internal/realtime"
	"github.com/Windi-Fikriyansyah/obra_be/internal/services/notifications"
	"github.com/Windi-Fikriyansyah/obra_be/internal/services/requests"
	"github.com/Windi-Fikriyansyah/obra_be/internal/utils"
)

type NotificationHandler struct {
	Dispatcher *notifications.Dispatcher
	Requests   *requests.Service
	Hub        *realtime.Hub
	JWTSecret  string
	Logger     logrus.FieldLogger
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	ctx := c.UserContext()
	h.Requests.ExpireBeforeRead(ctx)
	items, err := h.Dispatcher.List(ctx, middleware.Email(c))
	if err != nil {
		return apperr.Internal("No se pudieron obtener las notificaciones", err)
	}
	return ok(c, fiber.StatusOK, "", items)
}

type MarkReadReq struct {
	IDs []string `json:"ids" validate:"dive,uuid"`
}

// MarkRead marks the listed notifications as read, or all of them when no
// ids are sent.
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	var req MarkReadReq
	if len(c.Body()) > 0 {
		if err := bind(c, &req); err != nil {
			return err
		}
	}
	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apperr.Validation("Id de notificación inválido")
		}
		ids = append(ids, id)
	}
	n, err := h.Dispatcher.MarkRead(c.UserContext(), middleware.Email(c), ids)
	if err != nil {
		return apperr.Internal("No se pudieron actualizar las notificaciones", err)
	}
	return ok(c, fiber.StatusOK, "Notificaciones marcadas como leídas", fiber.Map{"actualizadas": n})
}

func (h *NotificationHandler) Clear(c *fiber.Ctx) error {
	res, err := h.Requests.ClearNotifications(c.UserContext(), middleware.Email(c))
	if err != nil {
		return err
	}
	return ok(c, fiber.StatusOK, "Notificaciones eliminadas", res)
}

type DeviceReq struct {
	Token    string `json:"token" validate:"required,max=255"`
	Platform string `json:"plataforma" validate:"omitempty,oneof=android ios web"`
}

func (h *NotificationHandler) RegisterDevice(c *fiber.Ctx) error {
	var req DeviceReq
	if err := bind(c, &req); err != nil {
		return err
	}
	err := h.Dispatcher.RegisterDevice(c.UserContext(), req.Token, middleware.Email(c), middleware.Role(c), req.Platform)
	if err != nil {
		return apperr.Internal("No se pudo registrar el dispositivo", err)
	}
	return ok(c, fiber.StatusOK, "Dispositivo registrado", nil)
}

func (h *NotificationHandler) RemoveDevice(c *fiber.Ctx) error {
	var req DeviceReq
	if err := bind(c, &req); err != nil {
		return err
	}
	n, err := h.Dispatcher.RemoveDevice(c.UserContext(), req.Token, middleware.Email(c))
	if err != nil {
		return apperr.Internal("No se pudo eliminar el dispositivo", err)
	}
	if n == 0 {
		return apperr.NotFound("Dispositivo no encontrado")
	}
	return ok(c, fiber.StatusOK, "Dispositivo eliminado", nil)
}

// UpgradeWebSocket authenticates the socket from the token query parameter
// or the session cookie before the upgrade.
func (h *NotificationHandler) UpgradeWebSocket(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	tok := c.Query("token")
	if tok == "" {
		tok = c.Cookies(middleware.CookieName)
	}
	claims, err := utils.ParseJWT(h.JWTSecret, tok)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "Token inválido")
	}
	c.Locals("email", strings.ToLower(claims.Email))
	return c.Next()
}

func (h *NotificationHandler) WebSocket(c *websocket.Conn) {
	email, _ := c.Locals("email").(string)
	log := h.Logger.WithField("email", email)

	client := &realtime.Client{
		ID:    uuid.New().String(),
		Email: email,
		Conn:  realtime.NewWebSocketConn(c),
		Send:  make(chan []byte, 64),
	}
	h.Hub.RegisterClient(client)
	log.Debug("websocket connected")
	defer func() {
		h.Hub.UnregisterClient(client)
		log.Debug("websocket disconnected")
	}()

	go func() {
		for msg := range client.Send {
			if err := client.Conn.WriteText(msg); err != nil {
				log.WithError(err).Debug("websocket write")
				return
			}
		}
	}()

	// the client only sends keepalives
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}
