package controller

import (
	"fmt"
	"net/url"

	"doc-assembler-be/internal/pkg/serverutils"
	"doc-assembler-be/internal/service"
	"doc-assembler-be/pkg/docx"

	"github.com/gofiber/fiber/v2"
)

type IDocumentController interface {
	RegisterRoutes(r fiber.Router)
	Ingest(ctx *fiber.Ctx) error
	Status(ctx *fiber.Ctx) error
	Discard(ctx *fiber.Ctx) error
}

type documentController struct {
	service service.IAssemblerService
}

func NewDocumentController(service service.IAssemblerService) IDocumentController {
	return &documentController{service: service}
}

func (c *documentController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/document/v1")
	h.Post("", c.Ingest)
	h.Get("session", c.Status)
	h.Delete("session", c.Discard)
}

// Ingest accepts one chunk. The body is either {"content","is_final"} or
// plain text. The final chunk is answered with the finished document.
func (c *documentController) Ingest(ctx *fiber.Ctx) error {
	res, err := c.service.Ingest(ctx.UserContext(), serverutils.SessionKey(ctx), ctx.Body())
	if err != nil {
		return err
	}

	if !res.IsFinal {
		return ctx.JSON(serverutils.SuccessResponse("content added to document", fiber.Map{
			"filename":     res.Filename,
			"blocks_added": res.BlocksAdded,
			"blocks_total": res.TotalBlocks,
		}))
	}

	ctx.Set(fiber.HeaderContentType, docx.MimeType)
	ctx.Set(fiber.HeaderContentDisposition, contentDisposition(res.Filename))
	return ctx.Send(res.Artifact)
}

func (c *documentController) Status(ctx *fiber.Ctx) error {
	res := c.service.Status(serverutils.SessionKey(ctx))
	return ctx.JSON(serverutils.SuccessResponse("session state", res))
}

func (c *documentController) Discard(ctx *fiber.Ctx) error {
	res, err := c.service.Discard(ctx.UserContext(), serverutils.SessionKey(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("document discarded", res))
}

// contentDisposition carries the UTF-8 filename per RFC 5987 next to a
// plain fallback for old clients.
func contentDisposition(filename string) string {
	fallback := make([]rune, 0, len(filename))
	for _, r := range filename {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			r = '_'
		}
		fallback = append(fallback, r)
	}
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, string(fallback), url.PathEscape(filename))
}
