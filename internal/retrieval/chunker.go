package retrieval

import (
	"regexp"
	"strings"
)

// 段落边界：两个及以上连续换行
var paragraphBoundary = regexp.MustCompile(`\n{2,}`)

// Chunker 参考文档分块器
// 按段落边界贪心累积，相邻分块间保留overlap字符的上下文重叠
type Chunker struct {
	maxChunkSize int
	overlap      int
}

// NewChunker 创建分块器
func NewChunker(maxChunkSize, overlap int) *Chunker {
	if maxChunkSize <= 0 {
		maxChunkSize = 1500
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxChunkSize {
		overlap = maxChunkSize / 4
	}
	return &Chunker{
		maxChunkSize: maxChunkSize,
		overlap:      overlap,
	}
}

// SplitDocument 将文档文本切分为有序分块
// 空白文本返回零个分块；不超过maxChunkSize的文本原样返回单个分块
func (c *Chunker) SplitDocument(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if len(text) <= c.maxChunkSize {
		return []string{text}
	}

	paragraphs := paragraphBoundary.Split(text, -1)

	var chunks []string
	var current string

	for _, para := range paragraphs {
		if len(current)+len(para)+2 > c.maxChunkSize && len(current) > 0 {
			chunks = append(chunks, strings.TrimSpace(current))
			// 下一个分块以上一个缓冲区（未trim）的末尾overlap字符开头
			current = c.overlapTail(current) + "\n\n" + para
			continue
		}
		if current == "" {
			current = para
		} else {
			current = current + "\n\n" + para
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}

	return chunks
}

// overlapTail 取缓冲区末尾overlap个字符（按rune切分，避免截断多字节字符）
func (c *Chunker) overlapTail(buffer string) string {
	runes := []rune(buffer)
	if len(runes) <= c.overlap {
		return buffer
	}
	return string(runes[len(runes)-c.overlap:])
}
