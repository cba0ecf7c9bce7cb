package server

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SwaggerHostUpdater updates the registered swagger document's host at runtime,
// e.g. func(host string) { docs.SwaggerInfo.Host = host }.
type SwaggerHostUpdater func(host string)

// RegisterSwagger registers swagger UI endpoint with dynamic host from request.
// The docs package must be imported for its registration side effect.
func (a *App) RegisterSwagger(hostUpdater SwaggerHostUpdater) {
	handler := ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.DefaultModelsExpandDepth(-1),
	)

	a.engine.GET("/swagger/*any", func(c *gin.Context) {
		// Supports X-Forwarded-Host for reverse proxy
		host := c.GetHeader("X-Forwarded-Host")
		if host == "" {
			host = c.Request.Host
		}
		if hostUpdater != nil {
			hostUpdater(host)
		}
		handler(c)
	})

	a.logger.Info().
		Str("path", "/swagger/index.html").
		Msg("Swagger UI registered with dynamic host")
}
