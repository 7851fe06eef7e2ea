package controllers

import (
	"time"

	"github.com/phpmigrate/backend-go/internal/config"
	"github.com/phpmigrate/backend-go/internal/database"
	"github.com/phpmigrate/backend-go/internal/kafka"
	"github.com/phpmigrate/backend-go/internal/logger"
	"github.com/phpmigrate/backend-go/internal/retrieval"
	"github.com/phpmigrate/backend-go/internal/services"
)

// Dependencies 控制器共享依赖（bootstrap注入）
// beego按请求实例化controller，服务在Prepare中基于这些依赖懒构造
type Dependencies struct {
	VectorStore  retrieval.VectorStore
	ContextCache retrieval.ContextCache
}

var deps Dependencies

// SetDependencies 注入共享依赖
func SetDependencies(d Dependencies) {
	deps = d
}

func retrievalConfig() config.RetrievalConfig {
	if config.AppConfig != nil {
		return config.AppConfig.Retrieval
	}
	return config.RetrievalConfig{}
}

func newResolver() retrieval.EmbeddingConfigResolver {
	embeddingModel := ""
	if config.AppConfig != nil {
		embeddingModel = config.AppConfig.AI.EmbeddingModel
	}
	return retrieval.NewDatabaseConfigResolver(database.DB, embeddingModel)
}

// newEmbedderFactory 把配置的嵌入超时注入Embedder构造
func newEmbedderFactory() retrieval.EmbedderFactory {
	timeout := time.Duration(retrievalConfig().EmbeddingTimeout) * time.Second
	return func(cfg retrieval.EmbeddingConfig) retrieval.Embedder {
		if cfg.Timeout == 0 {
			cfg.Timeout = timeout
		}
		return retrieval.NewOpenAIEmbedder(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Timeout)
	}
}

func newIngestor() *retrieval.Ingestor {
	cfg := retrievalConfig()
	chunker := retrieval.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	ingestor := retrieval.NewIngestor(database.DB, chunker, newResolver(), deps.VectorStore, logger.GetLogger())
	ingestor.SetEmbedderFactory(newEmbedderFactory())
	return ingestor
}

func newSearcher() *retrieval.Searcher {
	cfg := retrievalConfig()
	searcher := retrieval.NewSearcher(database.DB, newResolver(), deps.VectorStore, logger.GetLogger())
	searcher.SetEmbedderFactory(newEmbedderFactory())
	if cfg.SearchTopK > 0 {
		searcher.SetSearchTopK(cfg.SearchTopK)
	}
	if cfg.ContextTopK > 0 {
		searcher.SetContextTopK(cfg.ContextTopK)
	}
	if deps.ContextCache != nil {
		searcher.SetContextCache(deps.ContextCache)
	}
	return searcher
}

func newDocumentService() *services.DocumentService {
	svc := services.NewDocumentService(database.DB, newIngestor(), deps.VectorStore, kafka.GetProducer(), logger.GetLogger())
	if deps.ContextCache != nil {
		svc.SetContextCache(deps.ContextCache)
	}
	return svc
}

func newMigrationService() *services.MigrationService {
	return services.NewMigrationService(database.DB, logger.GetLogger())
}

func newGenerationService() *services.GenerationService {
	return services.NewGenerationService(database.DB, newSearcher(), logger.GetLogger())
}

func newLLMConfigService() *services.LLMConfigService {
	return services.NewLLMConfigService(database.DB)
}
