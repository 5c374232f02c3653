package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/config"
	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteRegistrar 可以注册 API 路由的处理器
type RouteRegistrar interface {
	RegisterRoutes(router *gin.RouterGroup)
}

func Setup(cfg *config.Config, handlers ...RouteRegistrar) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.HeaderUserID, middleware.HeaderUserAdmin},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// websocket 升级不能经过 gzip
	api := r.Group("/api", middleware.Identity(), gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{`/ws$`})))
	for _, h := range handlers {
		h.RegisterRoutes(api)
	}

	return r
}
