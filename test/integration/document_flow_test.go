package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"doc-assembler-be/internal/bootstrap"
	"doc-assembler-be/internal/config"
	"doc-assembler-be/internal/entity"
	"doc-assembler-be/internal/server"
	"doc-assembler-be/pkg/docx"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(t *testing.T) (*fiber.App, string) {
	t.Helper()
	dir := t.TempDir()
	outputDir := filepath.Join(dir, "output")

	t.Setenv("LOG_FILE_PATH", filepath.Join(dir, "logs", "app.log"))
	t.Setenv("RELAY_LOG_FILE_PATH", filepath.Join(dir, "logs", "generation.log"))
	t.Setenv("DOCUMENT_OUTPUT_DIR", outputDir)
	t.Setenv("NATS_URL", "")
	t.Setenv("OPEN_ARTIFACTS", "false")
	t.Setenv("AUTH_JWT_SECRET", "")

	cfg := config.Load()
	container := bootstrap.NewContainer(cfg)
	t.Cleanup(container.Close)

	srv := server.New(cfg, container)
	return srv.GetApp(), outputDir
}

func post(t *testing.T, app *fiber.App, session, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/document/v1", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-Session-Key", session)
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	return resp
}

func TestDocumentFlow(t *testing.T) {
	app, outputDir := newApp(t)

	chunks := []string{
		`{"content":"# 水土保持方案\n## 项目概况","is_final":false}`,
		`{"content":"|名称|数量|单位|\n|---|---|---|\n|挡土墙|120|m|","is_final":false}`,
		`{"content":"本方案适用于施工期。","is_final":true}`,
	}

	for _, chunk := range chunks[:2] {
		resp := post(t, app, "flow", chunk)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var res map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
		assert.Equal(t, "success", res["message"])
	}

	entries, err := os.ReadDir(outputDir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "intermediate snapshot is on disk before the final chunk")

	resp := post(t, app, "flow", chunks[2])
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, docx.MimeType, resp.Header.Get(fiber.HeaderContentType))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	blocks, err := docx.Read(body)
	require.NoError(t, err)
	assert.Equal(t, []entity.Block{
		entity.Heading{Level: 1, Text: "水土保持方案"},
		entity.Heading{Level: 2, Text: "项目概况"},
		entity.TableRow{Cells: []string{"名称", "数量", "单位"}},
		entity.TableRow{Cells: []string{"---", "---", "---"}},
		entity.TableRow{Cells: []string{"挡土墙", "120", "m"}},
		entity.Paragraph{Text: "本方案适用于施工期。"},
	}, blocks)

	onDisk, err := docx.ReadFile(filepath.Join(outputDir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, blocks, onDisk)
}

func TestHealth(t *testing.T) {
	app, _ := newApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/health", nil), 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEmptyChunkIsRejected(t *testing.T) {
	app, _ := newApp(t)

	resp := post(t, app, "flow", `{"content":"","is_final":true}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
