package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"StorefrontAPI/internal/services"

	"github.com/labstack/echo/v4"
)

const maxWebhookBody = 1 << 20

// registerCallbackRoutes mounts the public provider entry points. Webhooks
// answer non-2xx on failure so the provider's retry policy applies.
func registerCallbackRoutes(g *echo.Group, cb callbackHandler, storefrontURL string, limiter echo.MiddlewareFunc) {
	p := g.Group("/payments")

	p.GET("/:provider/return", func(c echo.Context) error {
		out, err := cb.HandleRedirect(c.Request().Context(), c.Param("provider"), c.QueryParams())
		if err != nil {
			return writeError(c, err)
		}
		if storefrontURL == "" {
			return c.JSON(http.StatusOK, out)
		}
		return c.Redirect(http.StatusFound, orderPageURL(storefrontURL, out))
	})

	webhook := p.Group("")
	if limiter != nil {
		webhook.Use(limiter)
	}
	webhook.POST("/:provider/webhook", func(c echo.Context) error {
		body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
		}

		out, err := cb.HandleWebhook(c.Request().Context(), c.Param("provider"), c.Request().Header, body)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{
			"status":    out.Transaction.Status,
			"duplicate": out.Duplicate,
		})
	})
}

func orderPageURL(base string, out *services.Outcome) string {
	base = strings.TrimRight(base, "/")
	return fmt.Sprintf("%s/orders/%d?payment=%s", base, out.Transaction.SellID, out.Transaction.Status)
}
