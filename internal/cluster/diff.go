package cluster

// Diff summarizes how the active cluster set changed between two
// snapshots. Clusters are matched by outline hash; a matched cluster with a
// different case count lands in Changed.
type Diff struct {
	Added   []string
	Removed []string
	Changed []string
}

func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Compare diffs next against prev. A nil prev means every cluster in next
// is new.
func Compare(prev, next *Snapshot) Diff {
	var d Diff
	if next == nil {
		if prev != nil {
			for _, e := range prev.Entries {
				d.Removed = append(d.Removed, e.Hash)
			}
		}
		return d
	}

	prevByHash := map[string]Entry{}
	if prev != nil {
		for _, e := range prev.Entries {
			prevByHash[e.Hash] = e
		}
	}

	seen := make(map[string]struct{}, len(next.Entries))
	for _, e := range next.Entries {
		if _, dup := seen[e.Hash]; dup {
			continue
		}
		seen[e.Hash] = struct{}{}

		old, ok := prevByHash[e.Hash]
		switch {
		case !ok:
			d.Added = append(d.Added, e.Hash)
		case old.Cases != e.Cases:
			d.Changed = append(d.Changed, e.Hash)
		}
	}

	for h := range prevByHash {
		if _, ok := seen[h]; !ok {
			d.Removed = append(d.Removed, h)
		}
	}
	return d
}
