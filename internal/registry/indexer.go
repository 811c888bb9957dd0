package registry

import evmarb "evmarb"

// IndexedPools is a read view over a registry's pools supporting O(1)
// lookup by identity.
type IndexedPools interface {
	GetByID(id evmarb.PoolID) (evmarb.Pool, bool)
	All() []evmarb.Pool
}

type indexedPools struct {
	byID map[evmarb.PoolID]evmarb.Pool
	all  []evmarb.Pool
}

// Index builds an IndexedPools view over a flat discovery slice. A pool
// identity appearing more than once keeps its first occurrence, so
// len(All()) < len(pools) signals a duplicate discovery result.
func Index(pools []evmarb.Pool) IndexedPools {
	byID := make(map[evmarb.PoolID]evmarb.Pool, len(pools))
	all := make([]evmarb.Pool, 0, len(pools))
	for _, p := range pools {
		if _, dup := byID[p.ID]; dup {
			continue
		}
		byID[p.ID] = p
		all = append(all, p)
	}
	return &indexedPools{byID: byID, all: all}
}

func (ix *indexedPools) GetByID(id evmarb.PoolID) (evmarb.Pool, bool) {
	p, ok := ix.byID[id]
	return p, ok
}

// All returns a defensive copy so callers cannot mutate the registry's
// canonical slice through the returned view.
func (ix *indexedPools) All() []evmarb.Pool {
	return append([]evmarb.Pool(nil), ix.all...)
}
