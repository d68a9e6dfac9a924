package handler

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the API on a group that already runs AuthMiddleware.
// limit, when non-nil, guards the credential endpoints.
func RegisterRoutes(api *gin.RouterGroup, authHandler *AuthHandler, itemHandler *ItemHandler, limit gin.HandlerFunc) {
	credentials := func(h gin.HandlerFunc) []gin.HandlerFunc {
		if limit == nil {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{limit, h}
	}

	auth := api.Group("/auth")
	{
		auth.POST("/register", credentials(authHandler.Register)...)
		auth.POST("/login", credentials(authHandler.Login)...)
		auth.POST("/logout", authHandler.Logout)
		auth.GET("/me", authHandler.GetMe)
		auth.PATCH("/me", authHandler.UpdateMe)
		auth.GET("/:provider", authHandler.OAuthStart)
		auth.GET("/:provider/callback", credentials(authHandler.OAuthCallback)...)
		auth.POST("/:provider/callback", credentials(authHandler.OAuthCallback)...)
	}

	items := api.Group("/items")
	{
		items.POST("", itemHandler.Create)
		items.GET("", itemHandler.List)
		items.GET("/:id", itemHandler.Get)
		items.PUT("/:id", itemHandler.Update)
		items.DELETE("/:id", itemHandler.Delete)
	}
}
