package cache

import (
	"errors"
	"sync"
	"time"
)

// ErrNotFound возвращается, когда ключ отсутствует или истёк.
var ErrNotFound = errors.New("ключ не найден")

type entry struct {
	value    []byte
	loadedAt time.Time
	ttl      time.Duration
}

// MemoryCache реализует domain.Cache в памяти процесса. Часы инжектируются,
// чтобы тесты управляли истечением TTL детерминированно. Используется как
// запасной вариант, когда REDIS_ADDR не задан: в рамках одного процесса
// семантика Once сохраняется, межпроцессной защиты нет.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemory создаёт кэш с указанными часами. nil означает time.Now.
func NewMemory(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{entries: make(map[string]entry), now: now}
}

func (c *MemoryCache) expired(e entry) bool {
	return e.ttl > 0 && c.now().Sub(e.loadedAt) >= e.ttl
}

// Once выполняет функцию, если ключ ещё не занят.
func (c *MemoryCache) Once(key string, ttl time.Duration, fn func() error) error {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && !c.expired(e) {
		c.mu.Unlock()
		return nil
	}
	c.entries[key] = entry{value: []byte("1"), loadedAt: c.now(), ttl: ttl}
	c.mu.Unlock()

	if err := fn(); err != nil {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return err
	}
	return nil
}

// Set задаёт значение.
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	c.entries[key] = entry{value: stored, loadedAt: c.now(), ttl: ttl}
	return nil
}

// Get возвращает значение или ErrNotFound.
func (c *MemoryCache) Get(key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || c.expired(e) {
		delete(c.entries, key)
		return nil, ErrNotFound
	}
	return e.value, nil
}
