package serverutils

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type teapotError struct{}

func (teapotError) Error() string   { return "short and stout" }
func (teapotError) HTTPStatus() int { return http.StatusTeapot }
func (teapotError) Detail() string  { return "spout" }

func decode(t *testing.T, resp *http.Response) Response {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var res Response
	require.NoError(t, json.Unmarshal(body, &res))
	return res
}

func TestErrorHandlerMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/typed", func(ctx *fiber.Ctx) error { return teapotError{} })
	app.Get("/fiber", func(ctx *fiber.Ctx) error { return fiber.NewError(fiber.StatusBadRequest, "bad") })
	app.Get("/plain", func(ctx *fiber.Ctx) error { return errors.New("boom") })

	tests := []struct {
		path   string
		code   int
		status string
		detail string
	}{
		{"/typed", http.StatusTeapot, "short and stout", "spout"},
		{"/fiber", http.StatusBadRequest, "bad", ""},
		{"/plain", http.StatusInternalServerError, "boom", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil), 5000)
			require.NoError(t, err)
			assert.Equal(t, tt.code, resp.StatusCode)

			res := decode(t, resp)
			assert.Equal(t, "error", res.Message)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.detail, res.ErrorDetail)
		})
	}
}

func TestValidateRequest(t *testing.T) {
	type request struct {
		Name string `validate:"required"`
	}

	assert.NoError(t, ValidateRequest(request{Name: "x"}))

	err := ValidateRequest(request{})
	var fiberErr *fiber.Error
	require.True(t, errors.As(err, &fiberErr))
	assert.Equal(t, fiber.StatusBadRequest, fiberErr.Code)
	assert.Equal(t, "name is required", fiberErr.Message)
}

func signed(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestSessionKeyMiddleware(t *testing.T) {
	const secret = "s3cret"
	valid := signed(t, secret, jwt.MapClaims{"user_id": "42", "exp": time.Now().Add(time.Hour).Unix()})
	forged := signed(t, "other", jwt.MapClaims{"user_id": "42"})

	tests := []struct {
		name    string
		secret  string
		headers map[string]string
		code    int
		key     string
	}{
		{"default", "", nil, http.StatusOK, DefaultSession},
		{"header", "", map[string]string{SessionKeyHeader: "abc"}, http.StatusOK, "abc"},
		{"cookie", "", map[string]string{"Cookie": SessionCookie + "=from-cookie"}, http.StatusOK, "from-cookie"},
		{"header over cookie", "", map[string]string{SessionKeyHeader: "abc", "Cookie": SessionCookie + "=c"}, http.StatusOK, "abc"},
		{"token ignored without secret", "", map[string]string{"Authorization": "Bearer " + forged}, http.StatusOK, DefaultSession},
		{"token claim", secret, map[string]string{"Authorization": "Bearer " + valid, SessionKeyHeader: "abc"}, http.StatusOK, "user:42"},
		{"invalid token", secret, map[string]string{"Authorization": "Bearer " + forged}, http.StatusUnauthorized, ""},
		{"no token with secret", secret, map[string]string{SessionKeyHeader: "abc"}, http.StatusOK, "anon:abc"},
		{"header cannot name a user session", secret, map[string]string{SessionKeyHeader: "user:42"}, http.StatusOK, "anon:user:42"},
		{"cookie cannot name a user session", secret, map[string]string{"Cookie": SessionCookie + "=user:42"}, http.StatusOK, "anon:user:42"},
		{"default with secret", secret, nil, http.StatusOK, "anon:" + DefaultSession},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(SessionKeyMiddleware(tt.secret))
			app.Get("/", func(ctx *fiber.Ctx) error { return ctx.SendString(SessionKey(ctx)) })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			resp, err := app.Test(req, 5000)
			require.NoError(t, err)
			require.Equal(t, tt.code, resp.StatusCode)

			if tt.code == http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				assert.Equal(t, tt.key, string(body))
			}
		})
	}
}
