package services

import (
	"hash/fnv"
	"sync"
)

// keyedMutex serializes work on one entity inside this process. Memory is
// bounded; unrelated keys may occasionally share a shard, so holders must
// never take a second key.
type keyedMutex struct {
	shards [256]sync.Mutex
}

func (m *keyedMutex) Lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	mu := &m.shards[h.Sum32()%uint32(len(m.shards))]
	mu.Lock()
	return mu.Unlock
}
