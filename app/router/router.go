package router

import (
	"github.com/phpmigrate/backend-go/app/controllers"
	"github.com/phpmigrate/backend-go/app/middleware"
	"github.com/beego/beego/v2/server/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Init registers all routes. Must be called after bootstrap has injected
// controller dependencies.
func Init() {
	web.Router("/", &controllers.RootController{}, "get:Index")
	web.Router("/health", &controllers.HealthController{}, "get:Health")
	web.Handler("/metrics", promhttp.Handler())

	web.InsertFilter("/api/*", web.BeforeRouter, middleware.CORSMiddleware)

	documentController := &controllers.DocumentController{}
	// 注意：具体路由必须在参数路由之前，否则/search会被:id匹配
	web.Router("/api/documents", documentController, "get:List")
	web.Router("/api/documents/upload", documentController, "post:Upload")
	web.Router("/api/documents/search", documentController, "get:Search")
	web.Router("/api/documents/:id", documentController, "delete:Delete")

	migrationController := &controllers.MigrationController{}
	web.Router("/api/migrations", migrationController, "get:List;post:Create")
	web.Router("/api/migrations/:id", migrationController, "get:Get")
	web.Router("/api/migrations/:id/files", migrationController, "post:UploadFiles")
	web.Router("/api/migrations/:id/analyze", migrationController, "post:Analyze")
	web.Router("/api/migrations/:id/generate", migrationController, "post:GenerateComponent")

	llmConfigController := &controllers.LLMConfigController{}
	web.Router("/api/llm-configs", llmConfigController, "get:List;post:Save")
	web.Router("/api/llm-configs/:id", llmConfigController, "delete:Delete")
}
