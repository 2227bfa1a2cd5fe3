package conversation

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// DefaultEncoding 历史 token 估算使用的编码
const DefaultEncoding = "cl100k_base"

// TokenCounter 估算对话历史的 token 数，只用于日志与记录，不触发裁剪。
type TokenCounter struct {
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
	logger   *zap.Logger
}

// NewTokenCounter 创建计数器，编码数据在首次使用时加载
func NewTokenCounter(encoding string, logger *zap.Logger) *TokenCounter {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenCounter{encoding: encoding, logger: logger}
}

func (c *TokenCounter) init() error {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err != nil {
			c.initErr = err
			c.logger.Warn("tiktoken encoding unavailable, falling back to estimate",
				zap.String("encoding", c.encoding), zap.Error(err))
			return
		}
		c.enc = enc
	})
	return c.initErr
}

// Count 返回文本的 token 数；编码不可用时按每 4 个字符 1 个 token 估算
func (c *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if err := c.init(); err != nil {
		return (utf8.RuneCountInString(text) + 3) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}

// CountTurns 返回多轮对话的 token 总数
func (c *TokenCounter) CountTurns(turns []Turn) int {
	total := 0
	for _, t := range turns {
		total += c.Count(t.Text)
	}
	return total
}
