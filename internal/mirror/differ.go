package mirror

import evmarb "evmarb"

// Diff is the classified difference between two successive pool-table
// snapshots. The Mirror's authoritative write path is still the
// sequence-guarded Apply; Diff exists for observability, a compact view
// of what changed.
type Diff struct {
	Additions []evmarb.Pool
	Updates   []evmarb.Pool
	Deletions []evmarb.PoolID
}

// IsEmpty reports whether the diff carries no changes at all.
func (d Diff) IsEmpty() bool {
	return len(d.Additions) == 0 && len(d.Updates) == 0 && len(d.Deletions) == 0
}

// Differ classifies old vs new pool slices into additions, updates and
// deletions by identity and sequence.
func Differ(old, new []evmarb.Pool) Diff {
	oldByID := make(map[evmarb.PoolID]evmarb.Pool, len(old))
	for _, p := range old {
		oldByID[p.ID] = p
	}
	newByID := make(map[evmarb.PoolID]evmarb.Pool, len(new))
	for _, p := range new {
		newByID[p.ID] = p
	}

	var diff Diff
	for id, newPool := range newByID {
		oldPool, existed := oldByID[id]
		if !existed {
			diff.Additions = append(diff.Additions, newPool)
			continue
		}
		if newPool.Sequence.Compare(oldPool.Sequence) != 0 {
			diff.Updates = append(diff.Updates, newPool)
		}
	}
	for id := range oldByID {
		if _, stillPresent := newByID[id]; !stillPresent {
			diff.Deletions = append(diff.Deletions, id)
		}
	}
	return diff
}
