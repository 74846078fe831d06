// Package lastaction keeps the most recent directive per goal for an hour.
package lastaction

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultTTL  = time.Hour
	DefaultSize = 1024
)

type Entry struct {
	Observation string    `json:"observation"`
	MicroAssist string    `json:"microAssist"`
	Timestamp   time.Time `json:"timestamp"`
}

type Cache struct {
	lru *expirable.LRU[string, Entry]
}

func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{lru: expirable.NewLRU[string, Entry](size, nil, ttl)}
}

// Key maps a goal to its cache key: whitespace runs become underscores,
// letters are lowered, an empty goal is "unknown".
func Key(goal string) string {
	slug := strings.ToLower(strings.Join(strings.Fields(goal), "_"))
	if slug == "" {
		slug = "unknown"
	}
	return "last_action:" + slug
}

func (c *Cache) Set(goal string, e Entry) {
	c.lru.Add(Key(goal), e)
}

func (c *Cache) Get(goal string) (Entry, bool) {
	return c.lru.Get(Key(goal))
}

func (c *Cache) Len() int { return c.lru.Len() }
