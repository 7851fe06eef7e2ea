package retrieval

import (
	"context"
	"crypto/sha1"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ContextCache 上下文缓存抽象
// 文档集变更后必须Invalidate，否则缓存会在TTL内继续返回已删除文档的分块
type ContextCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string)
	Invalidate(ctx context.Context, ownerID uint)
}

const contextHeader = "## Reference Documents (User-Provided Context)\n" +
	"The following reference materials were uploaded by the user. Follow these guidelines strictly:\n\n"

const contextGroupJoiner = "\n\n---\n\n"

// BuildContext 为代码生成组装参考文档上下文
// 没有文档或检索失败时返回空串，从不向调用方报错
func (s *Searcher) BuildContext(ctx context.Context, ownerID uint, filenames []string) string {
	var count int64
	if err := s.db.WithContext(ctx).
		Table("reference_documents").
		Where("user_id = ?", ownerID).
		Count(&count).Error; err != nil {
		s.logger.Warn("document count failed", zap.Uint("owner_id", ownerID), zap.Error(err))
		return ""
	}
	if count == 0 {
		return ""
	}

	query := fmt.Sprintf(
		"Migration context: files %s. Code patterns, database schema, coding standards, API specifications.",
		strings.Join(filenames, ", "))

	cacheKey := contextCacheKey(ownerID, query)
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, cacheKey); ok {
			return cached
		}
	}

	chunks, err := s.Search(ctx, ownerID, query, s.contextTopK)
	if err != nil {
		s.logger.Warn("context retrieval failed", zap.Uint("owner_id", ownerID), zap.Error(err))
		return ""
	}
	if len(chunks) == 0 {
		return ""
	}

	// 按文档分组，保持首次命中顺序
	groupOrder := make([]string, 0)
	grouped := make(map[string][]string)
	for _, chunk := range chunks {
		label := fmt.Sprintf("%s (%s)", chunk.DocumentName, chunk.DocumentType)
		if _, ok := grouped[label]; !ok {
			groupOrder = append(groupOrder, label)
		}
		grouped[label] = append(grouped[label], chunk.Content)
	}

	var b strings.Builder
	b.WriteString(contextHeader)
	for _, label := range groupOrder {
		b.WriteString(fmt.Sprintf("### %s\n%s\n\n", label, strings.Join(grouped[label], contextGroupJoiner)))
	}
	result := b.String()

	if s.cache != nil {
		s.cache.Set(ctx, cacheKey, result)
	}
	return result
}

// ContextCacheKeyPrefix 某用户全部上下文缓存键的公共前缀
func ContextCacheKeyPrefix(ownerID uint) string {
	return fmt.Sprintf("refctx:%d:", ownerID)
}

func contextCacheKey(ownerID uint, query string) string {
	return fmt.Sprintf("%s%x", ContextCacheKeyPrefix(ownerID), sha1.Sum([]byte(query)))
}
