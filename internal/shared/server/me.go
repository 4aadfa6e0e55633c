package server

import (
	"github.com/gin-gonic/gin"

	"resumind-backend/internal/shared/server/middleware"
	"resumind-backend/internal/shared/server/respond"
)

// registerMeRoutes attaches the /me endpoint.
func registerMeRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", middleware.RequireLogin(), meHandler)
}

func meHandler(c *gin.Context) {
	response := gin.H{
		"userId":        middleware.UserIDFromContext(c),
		"authenticated": true,
	}
	if email := middleware.UserEmailFromContext(c); email != "" {
		response["email"] = email
	}
	if name := middleware.UserNameFromContext(c); name != "" {
		response["name"] = name
	}
	if picture := middleware.UserPictureFromContext(c); picture != "" {
		response["picture"] = picture
	}

	respond.OK(c, response)
}
