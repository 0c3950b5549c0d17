package main

import (
	"net/http"

	"StorefrontAPI/internal/middleware"

	"github.com/labstack/echo/v4"
)

func registerPaymentRoutes(g *echo.Group, jwt *middleware.JWT, ps paymentStarter, cb callbackHandler, orders orderReader) {
	p := g.Group("/payments/orders")
	p.Use(jwt.Middleware())

	p.POST("/:sellId/:provider", func(c echo.Context) error {
		who, ok := requester(c)
		if !ok {
			return unauthenticated(c)
		}
		sellID, ok := idParam(c, "sellId")
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
		}

		res, err := ps.StartPayment(c.Request().Context(), sellID, c.Param("provider"), who)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, res)
	})

	// status polls the provider for the latest attempt; ownership is
	// checked through the order view first.
	p.GET("/:sellId/status", func(c echo.Context) error {
		who, ok := requester(c)
		if !ok {
			return unauthenticated(c)
		}
		sellID, ok := idParam(c, "sellId")
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
		}

		ctx := c.Request().Context()
		if _, err := orders.GetOrder(ctx, sellID, who); err != nil {
			return writeError(c, err)
		}
		out, err := cb.PollSell(ctx, sellID)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, out)
	})
}
