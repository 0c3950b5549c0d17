package main

import (
	"net/http"
	"strings"

	"StorefrontAPI/internal/middleware"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type refundRequest struct {
	// Amount is a decimal string; empty refunds the remaining balance.
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

func registerOrderRoutes(g *echo.Group, jwt *middleware.JWT, orders orderReader, refunds refunder) {
	o := g.Group("/orders")
	o.Use(jwt.Middleware())

	o.GET("/:id", func(c echo.Context) error {
		who, ok := requester(c)
		if !ok {
			return unauthenticated(c)
		}
		id, ok := idParam(c, "id")
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
		}

		view, err := orders.GetOrder(c.Request().Context(), id, who)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, view)
	})

	admin := g.Group("/admin/orders")
	admin.Use(jwt.Middleware(), middleware.AdminOnly)

	admin.POST("/:id/refund", func(c echo.Context) error {
		id, ok := idParam(c, "id")
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
		}
		req := new(refundRequest)
		if err := c.Bind(req); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
		}

		var amount *decimal.Decimal
		if s := strings.TrimSpace(req.Amount); s != "" {
			d, err := decimal.NewFromString(s)
			if err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid amount"})
			}
			amount = &d
		}

		out, err := refunds.Refund(c.Request().Context(), id, amount, req.Reason)
		if err != nil {
			return writeError(c, err)
		}
		if out.ManualProcessRequired {
			return c.JSON(http.StatusAccepted, out)
		}
		return c.JSON(http.StatusCreated, out)
	})
}
