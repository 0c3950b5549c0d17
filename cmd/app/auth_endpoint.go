package main

import (
	"net/http"

	"StorefrontAPI/internal/middleware"

	"github.com/labstack/echo/v4"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func loginHandler(authSvc authenticator, jwt *middleware.JWT) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := new(loginRequest)
		if err := c.Bind(req); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{
				"error": "invalid request",
			})
		}

		user, err := authSvc.Login(c.Request().Context(), req.Email, req.Password)
		if err != nil {
			return writeError(c, err)
		}

		token, err := jwt.GenerateToken(user.AuthID, user.Email, user.Role)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{
				"error": "could not create token",
			})
		}

		return c.JSON(http.StatusOK, echo.Map{
			"token":      token,
			"expires_in": int(tokenTTL.Seconds()),
			"user":       user,
		})
	}
}

// meHandler returns the authenticated user's record
func meHandler(authSvc authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims := middleware.GetClaims(c)
		if claims == nil {
			return unauthenticated(c)
		}
		user, err := authSvc.Me(c.Request().Context(), claims.AuthID)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, user)
	}
}

func registerAuthRoutes(g *echo.Group, authSvc authenticator, jwt *middleware.JWT) {
	auth := g.Group("/auth")

	auth.POST("/login", loginHandler(authSvc, jwt))

	protected := auth.Group("")
	protected.Use(jwt.Middleware())
	protected.GET("/me", meHandler(authSvc))
}
