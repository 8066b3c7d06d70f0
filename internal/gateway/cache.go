package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/satriahrh/fixit/server/domain/entities"
)

type cacheEntry struct {
	result   entities.ModelResult
	storedAt time.Time
}

// responseCache is a bounded LRU whose entries also expire after ttl
type responseCache struct {
	entries *lru.Cache[string, cacheEntry]
	ttl     time.Duration
}

func newResponseCache(size int, ttl time.Duration) (*responseCache, error) {
	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &responseCache{entries: entries, ttl: ttl}, nil
}

func (c *responseCache) get(key string, now time.Time) (entities.ModelResult, bool) {
	entry, ok := c.entries.Get(key)
	if !ok {
		return entities.ModelResult{}, false
	}
	if now.Sub(entry.storedAt) >= c.ttl {
		c.entries.Remove(key)
		return entities.ModelResult{}, false
	}
	return entry.result, true
}

func (c *responseCache) put(key string, result entities.ModelResult, now time.Time) {
	c.entries.Add(key, cacheEntry{result: result, storedAt: now})
}

func (c *responseCache) len() int { return c.entries.Len() }

// CacheKey hashes the prompt, schema and generation settings. Image parts
// contribute only their dimensions, so two photos of the same size with the
// same prompt share an entry.
func CacheKey(req entities.ModelRequest) string {
	tokens := make([]string, len(req.Parts))
	for i, p := range req.Parts {
		tokens[i] = p.CacheToken()
	}
	prompt, _ := json.Marshal(tokens)

	var schema []byte
	if req.Schema != nil {
		schema, _ = json.Marshal(req.Schema)
	}

	var b strings.Builder
	b.Write(prompt)
	b.WriteByte('|')
	b.Write(schema)
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(float64(req.Temperature), 'g', -1, 32))
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(int64(req.MaxOutputTokens), 10))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
