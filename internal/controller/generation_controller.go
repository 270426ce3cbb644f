package controller

import (
	"bufio"
	"context"

	"doc-assembler-be/internal/dto"
	"doc-assembler-be/internal/pkg/serverutils"
	"doc-assembler-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

type IGenerationController interface {
	RegisterRoutes(r fiber.Router)
	Stream(ctx *fiber.Ctx) error
}

type generationController struct {
	service service.IGenerationService
}

func NewGenerationController(service service.IGenerationService) IGenerationController {
	return &generationController{service: service}
}

func (c *generationController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/generation/v1")
	h.Post("stream", c.Stream)
}

// Stream relays a workflow run as Server-Sent Events. Failures before the
// first frame get a normal JSON error; later ones arrive as an error frame.
func (c *generationController) Stream(ctx *fiber.Ctx) error {
	var req dto.GenerateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	relayCtx, cancel := context.WithCancel(ctx.UserContext())
	relay, err := c.service.Open(relayCtx, &req)
	if err != nil {
		cancel()
		return err
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	// The writer runs after the handler returns; it must not touch ctx.
	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer relay.Close()

		_ = relay.Run(func(frame []byte) error {
			if _, err := w.WriteString("data: "); err != nil {
				return err
			}
			if _, err := w.Write(frame); err != nil {
				return err
			}
			if _, err := w.WriteString("\n\n"); err != nil {
				return err
			}
			return w.Flush()
		})
	}))
	return nil
}
