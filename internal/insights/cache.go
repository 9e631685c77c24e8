package insights

import (
	"strings"
	"sync"

	"github.com/golang/groupcache/lru"
)

// AnswerCache holds answers keyed by question and transcript prefix.
// It is bounded and safe for concurrent use.
type AnswerCache struct {
	mu    sync.Mutex
	cache *lru.Cache
}

// NewAnswerCache creates a cache holding at most size answers
func NewAnswerCache(size int) *AnswerCache {
	if size <= 0 {
		size = 1024
	}
	return &AnswerCache{cache: lru.New(size)}
}

// Get returns the cached answer for key
func (c *AnswerCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.cache.Get(key)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Put stores an answer
func (c *AnswerCache) Put(key, answer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(key, answer)
}

// Len is the number of cached answers
func (c *AnswerCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

// CacheKey is lower(trim(question)) + "-" + the first 100 characters of the transcript
func CacheKey(question, transcript string) string {
	prefix := transcript
	if r := []rune(transcript); len(r) > 100 {
		prefix = string(r[:100])
	}
	return strings.ToLower(strings.TrimSpace(question)) + "-" + prefix
}
