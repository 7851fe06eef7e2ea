package main

import (
	"log"
	"strconv"

	"github.com/phpmigrate/backend-go/app/bootstrap"
	"github.com/phpmigrate/backend-go/app/router"
	"github.com/phpmigrate/backend-go/internal/config"
	"github.com/phpmigrate/backend-go/internal/logger"
	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()

	router.Init()

	web.BConfig.AppName = "PHP Migration Assistant"
	web.BConfig.CopyRequestBody = true
	if port, err := strconv.Atoi(config.AppConfig.Server.Port); err == nil {
		web.BConfig.Listen.HTTPPort = port
	}

	logger.Info("🚀 Starting server", zap.Int("port", web.BConfig.Listen.HTTPPort))
	web.Run()
}
