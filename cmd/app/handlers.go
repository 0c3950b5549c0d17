package main

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"StorefrontAPI/internal/middleware"
	"StorefrontAPI/internal/model"
	"StorefrontAPI/internal/services"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// The handlers depend on these narrow views of the services.

type paymentStarter interface {
	StartPayment(ctx context.Context, sellID int64, provider string, who services.Requester) (*services.StartResult, error)
}

type callbackHandler interface {
	HandleWebhook(ctx context.Context, provider string, header http.Header, body []byte) (*services.Outcome, error)
	HandleRedirect(ctx context.Context, provider string, query url.Values) (*services.Outcome, error)
	PollSell(ctx context.Context, sellID int64) (*services.Outcome, error)
}

type orderReader interface {
	GetOrder(ctx context.Context, sellID int64, who services.Requester) (*services.OrderView, error)
}

type refunder interface {
	Refund(ctx context.Context, sellID int64, amount *decimal.Decimal, reason string) (*services.RefundOutcome, error)
}

type authenticator interface {
	Login(ctx context.Context, email, password string) (*model.Auth, error)
	Me(ctx context.Context, authID int64) (*model.Auth, error)
}

// requester builds the caller identity from the JWT claims.
func requester(c echo.Context) (services.Requester, bool) {
	cl := middleware.GetClaims(c)
	if cl == nil {
		return services.Requester{}, false
	}
	return services.Requester{AuthID: cl.AuthID, Admin: cl.IsAdmin()}, true
}

func unauthenticated(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
}

func idParam(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
