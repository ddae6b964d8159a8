package server

import (
	_ "github.com/saravananbs/genchargephase2/docs"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupSwagger mounts the Swagger UI unless SWAGGER_ENABLED=false.
func SetupSwagger(r *gin.Engine, enabled bool) {
	if !enabled {
		return
	}
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
