package retrieval

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func llmConfigRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"config_id", "user_id", "provider", "api_key", "model", "embedding_model", "base_url", "is_active"})
}

func TestDatabaseConfigResolverFound(t *testing.T) {
	gdb, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "llm_configs"`).
		WillReturnRows(llmConfigRows().
			AddRow(1, 1, "openai", "sk-test", "gpt-4", "text-embedding-3-large", "https://api.example.com/v1", true))

	resolver := NewDatabaseConfigResolver(gdb, "text-embedding-3-small")

	cfg, err := resolver.Resolve(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, "text-embedding-3-large", cfg.Model)
	assert.Equal(t, "https://api.example.com/v1", cfg.BaseURL)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseConfigResolverDefaultsModel(t *testing.T) {
	gdb, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "llm_configs"`).
		WillReturnRows(llmConfigRows().
			AddRow(1, 1, "openai", "sk-test", "gpt-4", "", "", true))

	resolver := NewDatabaseConfigResolver(gdb, "text-embedding-3-small")

	cfg, err := resolver.Resolve(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	// 未配置嵌入模型时使用默认模型
	assert.Equal(t, "text-embedding-3-small", cfg.Model)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseConfigResolverNotConfigured(t *testing.T) {
	gdb, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "llm_configs"`).
		WillReturnRows(llmConfigRows())

	resolver := NewDatabaseConfigResolver(gdb, "")

	cfg, err := resolver.Resolve(context.Background(), 1)
	// 未配置不是错误，调用方据此走无向量路径
	require.NoError(t, err)
	assert.Nil(t, cfg)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaticConfigResolver(t *testing.T) {
	resolver := &StaticConfigResolver{Config: &EmbeddingConfig{APIKey: "k", Model: "m"}}

	cfg, err := resolver.Resolve(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "k", cfg.APIKey)

	empty := &StaticConfigResolver{}
	cfg, err = empty.Resolve(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, cfg)
}
