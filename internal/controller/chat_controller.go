package controller

import (
	"ai-chatbot-be/internal/dto"
	"ai-chatbot-be/internal/pkg/serverutils"
	"ai-chatbot-be/internal/service"
	wsocket "ai-chatbot-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	SendMessage(ctx *fiber.Ctx) error
	GetHistory(ctx *fiber.Ctx) error
	ClearSession(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
	hub     *wsocket.Hub
}

func NewChatController(chatService service.IChatService, hub *wsocket.Hub) IChatController {
	return &chatController{
		service: chatService,
		hub:     hub,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat")
	h.Post("/", c.SendMessage)
	h.Get("/history/:sessionId", c.GetHistory)
	h.Delete("/session/:sessionId", c.ClearSession)

	if c.hub != nil {
		h.Use("/ws/:sessionId", func(ctx *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(ctx) {
				return ctx.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		h.Get("/ws/:sessionId", websocket.New(func(conn *websocket.Conn) {
			wsocket.ServeWs(c.hub, conn, conn.Params("sessionId"))
		}))
	}
}

func (c *chatController) SendMessage(ctx *fiber.Ctx) error {
	var req dto.ChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(&req); err != nil {
		return err
	}

	identity := serverutils.IdentityFromLocals(ctx)
	res := c.service.ProcessMessage(ctx.Context(), &req, identity)

	// The turn outcome is carried in the body; transport-level errors only
	// apply when the request itself was malformed.
	return ctx.JSON(res)
}

func (c *chatController) GetHistory(ctx *fiber.Ctx) error {
	sessionId := ctx.Params("sessionId")
	if sessionId == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "session id is required"))
	}

	messages, err := c.service.GetSessionHistory(ctx.Context(), sessionId)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	res := dto.ChatHistoryResponse{
		SessionId: sessionId,
		Messages:  make([]dto.ChatHistoryMessage, len(messages)),
	}
	for i, m := range messages {
		res.Messages[i] = dto.ChatHistoryMessage{
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		}
	}
	return ctx.JSON(serverutils.SuccessResponse("Session history", res))
}

func (c *chatController) ClearSession(ctx *fiber.Ctx) error {
	sessionId := ctx.Params("sessionId")
	if sessionId == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "session id is required"))
	}

	if err := c.service.ClearSession(ctx.Context(), sessionId); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Session cleared", nil))
}
