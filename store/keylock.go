package store

import (
	"hash/fnv"
	"sync"
)

const lockShards = 64

// keyLocks serializes writes per (client, keyword). Distinct keys usually
// land on distinct shards; a collision only costs some parallelism.
type keyLocks struct {
	shards [lockShards]sync.Mutex
}

func (k *keyLocks) lock(clientID, keyword string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(clientID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(keyword))
	m := &k.shards[h.Sum32()%lockShards]
	m.Lock()
	return m.Unlock
}
