package controller

import (
	"paperchat-be/internal/dto"
	"paperchat-be/internal/pkg/logger"
	"paperchat-be/internal/pkg/serverutils"
	"paperchat-be/internal/service"
	internalWS "paperchat-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type IConversationController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	ShowSource(ctx *fiber.Ctx) error
	Send(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	ServeWs(ctx *fiber.Ctx) error
}

type conversationController struct {
	conversationService service.IConversationService
	hub                 *internalWS.Hub
	logger              logger.ILogger
}

func NewConversationController(conversationService service.IConversationService, hub *internalWS.Hub, log logger.ILogger) IConversationController {
	return &conversationController{
		conversationService: conversationService,
		hub:                 hub,
		logger:              log,
	}
}

func (c *conversationController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/conversation/v1")

	// the websocket handshake carries its own token, header middleware
	// cannot run on an upgrade request from a browser
	h.Get("/ws", c.ServeWs)

	h.Use(serverutils.JwtMiddleware)
	h.Post("", c.Create)
	h.Get("", c.List)
	h.Get(":id", c.Show)
	// DOIs contain slashes, so the source id rides in a query param
	h.Get(":id/source", c.ShowSource)
	h.Post(":id/message", c.Send)
	h.Delete(":id", c.Delete)
}

func clientIdFromLocals(ctx *fiber.Ctx) (uuid.UUID, error) {
	clientIdStr, ok := ctx.Locals("client_id").(string)
	if !ok {
		return uuid.Nil, fiber.ErrUnauthorized
	}
	clientId, err := uuid.Parse(clientIdStr)
	if err != nil {
		return uuid.Nil, fiber.ErrUnauthorized
	}
	return clientId, nil
}

func (c *conversationController) Create(ctx *fiber.Ctx) error {
	clientId, err := clientIdFromLocals(ctx)
	if err != nil {
		return err
	}

	var req dto.CreateConversationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.conversationService.CreateConversation(ctx.Context(), clientId, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success create conversation", res))
}

func (c *conversationController) List(ctx *fiber.Ctx) error {
	clientId, err := clientIdFromLocals(ctx)
	if err != nil {
		return err
	}

	res, err := c.conversationService.ListConversations(ctx.Context(), clientId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list conversations", res))
}

func (c *conversationController) Show(ctx *fiber.Ctx) error {
	clientId, err := clientIdFromLocals(ctx)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid conversation id")
	}

	res, err := c.conversationService.GetConversation(ctx.Context(), clientId, id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show conversation", res))
}

func (c *conversationController) ShowSource(ctx *fiber.Ctx) error {
	clientId, err := clientIdFromLocals(ctx)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid conversation id")
	}

	sourceId := ctx.Query("source_id")
	if sourceId == "" {
		return fiber.NewError(fiber.StatusBadRequest, "source_id is required")
	}

	res, err := c.conversationService.GetCitationSource(ctx.Context(), clientId, id, sourceId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show citation source", res))
}

func (c *conversationController) Send(ctx *fiber.Ctx) error {
	clientId, err := clientIdFromLocals(ctx)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid conversation id")
	}

	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}
	req.ConversationId = id

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.conversationService.SendMessage(ctx.Context(), clientId, &req)
	if err != nil {
		return err
	}

	if !req.Streaming() {
		return ctx.JSON(serverutils.SuccessResponse("Turn completed", res))
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Turn accepted", res))
}

func (c *conversationController) Delete(ctx *fiber.Ctx) error {
	clientId, err := clientIdFromLocals(ctx)
	if err != nil {
		return err
	}

	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid conversation id")
	}

	if err := c.conversationService.DeleteConversation(ctx.Context(), clientId, &dto.DeleteConversationRequest{ConversationId: id}); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success delete conversation", nil))
}

// ServeWs upgrades the connection and binds it to the client's stream.
// An optional conversation_id query param seeds the active pointer so
// frames flow before the first switch message.
func (c *conversationController) ServeWs(ctx *fiber.Ctx) error {
	clientIdStr, err := serverutils.ParseWsToken(ctx)
	if err != nil {
		return err
	}
	clientId, err := uuid.Parse(clientIdStr)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid client id in token")
	}

	initialConversation := uuid.Nil
	if raw := ctx.Query("conversation_id"); raw != "" {
		if parsed, err := uuid.Parse(raw); err == nil {
			initialConversation = parsed
		}
	}

	if websocket.IsWebSocketUpgrade(ctx) {
		return websocket.New(func(conn *websocket.Conn) {
			c.logger.Info("ConversationController", "websocket session started", map[string]interface{}{
				"client_id": clientId.String(),
			})
			internalWS.ServeWs(c.hub, conn, clientId, initialConversation)
			c.logger.Info("ConversationController", "websocket session ended", map[string]interface{}{
				"client_id": clientId.String(),
			})
		})(ctx)
	}
	return fiber.ErrUpgradeRequired
}
