package controller

import (
	"net/http"
	"time"

	"ai-chatbot-be/internal/pkg/serverutils"

	"github.com/gofiber/fiber/v2"
)

type IHealthController interface {
	RegisterRoutes(r fiber.Router)
	Health(ctx *fiber.Ctx) error
}

type healthController struct {
	ollamaBaseURL string
	client        *http.Client
}

func NewHealthController(ollamaBaseURL string) IHealthController {
	return &healthController{
		ollamaBaseURL: ollamaBaseURL,
		client:        &http.Client{Timeout: 3 * time.Second},
	}
}

func (c *healthController) RegisterRoutes(r fiber.Router) {
	r.Get("/health", c.Health)
}

func (c *healthController) Health(ctx *fiber.Ctx) error {
	status := map[string]string{
		"service": "ok",
		"model":   "ok",
	}

	resp, err := c.client.Get(c.ollamaBaseURL + "/api/tags")
	if err != nil {
		status["model"] = "unreachable"
	} else {
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			status["model"] = "degraded"
		}
	}

	return ctx.JSON(serverutils.SuccessResponse("Health", status))
}
