package bootstrap

import (
	"context"
	"log"
	"time"

	"github.com/IBM/sarama"

	"github.com/phpmigrate/backend-go/app/controllers"
	"github.com/phpmigrate/backend-go/internal/auth"
	"github.com/phpmigrate/backend-go/internal/config"
	"github.com/phpmigrate/backend-go/internal/database"
	"github.com/phpmigrate/backend-go/internal/kafka"
	"github.com/phpmigrate/backend-go/internal/logger"
	"github.com/phpmigrate/backend-go/internal/retrieval"
	"github.com/phpmigrate/backend-go/internal/services"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	cleanupTasks []func() error
}

// Init bootstraps configuration, logger, database connections and other shared
// infrastructure components required by the Beego application.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize structured logger.
	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	// Load configuration.
	if err := config.LoadConfig(); err != nil {
		return nil, err
	}

	app := &App{}

	// PostgreSQL (required).
	if _, err := database.InitDB(); err != nil {
		return nil, err
	}
	app.cleanupTasks = append(app.cleanupTasks, database.CloseDB)

	// 连接池指标采集
	stopMetrics := database.StartMetricsCollector(15 * time.Second)
	app.cleanupTasks = append(app.cleanupTasks, func() error {
		stopMetrics()
		return nil
	})

	// Redis (optional).
	if config.AppConfig.Redis.Enabled {
		if _, err := database.InitRedis(); err != nil {
			logger.Warn("Redis初始化失败，上下文缓存不可用", zap.Error(err))
		} else {
			app.cleanupTasks = append(app.cleanupTasks, database.CloseRedis)
		}
	}

	// Kafka producer (optional).
	if config.AppConfig.Kafka.Enabled {
		if err := kafka.InitProducer(config.AppConfig.Kafka.Brokers, config.AppConfig.Kafka.Topic); err != nil {
			logger.Warn("Kafka初始化失败，文档事件不可用", zap.Error(err))
		} else {
			app.cleanupTasks = append(app.cleanupTasks, func() error {
				return kafka.GetProducer().Close()
			})
		}

		// 文档事件审计消费者
		topic := config.AppConfig.Kafka.Topic
		if err := kafka.InitConsumer(config.AppConfig.Kafka.Brokers, "phpmigrate-audit", []string{topic}); err != nil {
			logger.Warn("Kafka消费者初始化失败", zap.Error(err))
		} else {
			kafka.GetConsumer().RegisterHandler(topic, auditDocumentEvent)
			app.cleanupTasks = append(app.cleanupTasks, func() error {
				return kafka.GetConsumer().Close()
			})
		}
	}

	// JWT service.
	jwtService := auth.NewJWTService(
		config.AppConfig.JWT.Secret,
		config.AppConfig.JWT.Issuer,
		24*time.Hour,
	)
	controllers.SetJWTService(jwtService)

	// Vector store and optional context cache for controllers.
	deps := controllers.Dependencies{
		VectorStore: buildVectorStore(),
	}
	if config.AppConfig.Retrieval.Cache.Enabled && database.RedisClient != nil {
		deps.ContextCache = services.NewRedisContextCache(
			database.RedisClient,
			time.Duration(config.AppConfig.Retrieval.Cache.TTL)*time.Second,
			logger.GetLogger(),
		)
	}
	controllers.SetDependencies(deps)

	logger.Info("应用初始化完成",
		zap.String("env", config.AppConfig.Server.Env),
		zap.String("vector_store", config.AppConfig.Retrieval.VectorStore.Provider))

	return app, nil
}

// auditDocumentEvent 记录文档变更事件
func auditDocumentEvent(ctx context.Context, message *sarama.ConsumerMessage) error {
	event, err := kafka.ParseDocumentEvent(message.Value)
	if err != nil {
		return err
	}
	logger.Info("文档事件",
		zap.String("event", event.Event),
		zap.Uint("user_id", event.UserID),
		zap.Uint("document_id", event.DocumentID),
		zap.Int("chunk_count", event.ChunkCount))
	return nil
}

// buildVectorStore 按配置选择向量存储，Milvus不可用时退化为数据库存储
func buildVectorStore() retrieval.VectorStore {
	cfg := config.AppConfig.Retrieval.VectorStore
	if cfg.Provider == "milvus" {
		store, err := retrieval.NewMilvusVectorStore(retrieval.MilvusOptions{
			Address:          cfg.Milvus.Address,
			Username:         cfg.Milvus.Username,
			Password:         cfg.Milvus.Password,
			CollectionPrefix: cfg.Milvus.Collection,
			VectorSize:       cfg.Milvus.VectorSize,
			Database:         cfg.Milvus.Database,
			UseTLS:           cfg.Milvus.TLS,
		})
		if err != nil {
			logger.Warn("Milvus初始化失败，退化为数据库向量存储", zap.Error(err))
		} else if !store.Ready() {
			logger.Warn("Milvus不可达，退化为数据库向量存储", zap.String("address", cfg.Milvus.Address))
		} else {
			logger.Info("✅ Milvus向量存储已就绪", zap.String("address", cfg.Milvus.Address))
			return store
		}
	}
	return retrieval.NewDatabaseVectorStore(database.DB)
}

// Shutdown runs all registered cleanup tasks in reverse order.
func (a *App) Shutdown() {
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			logger.Error("清理任务失败", zap.Error(err))
		}
	}
	logger.Sync()
}
