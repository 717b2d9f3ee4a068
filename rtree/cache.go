package rtree

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
)

// CacheSize is the number of decoded nodes kept process-wide.
const CacheSize = 8192

var (
	nodeCache *lru.Cache
	treeSeq   uint64
)

func init() {
	var err error
	if nodeCache, err = lru.New(CacheSize); err != nil {
		panic(err)
	}
}

type cacheKey struct {
	tree uint64
	node uint64
}

func nextTreeID() uint64 { return atomic.AddUint64(&treeSeq, 1) }

// ClearCache drops every cached node. Call it once a container has been
// written so memory does not grow across repeated writes.
func ClearCache() { nodeCache.Purge() }

// CacheLen returns the number of cached nodes.
func CacheLen() int { return nodeCache.Len() }
