package mapdiff

// Tag and value of the rule that marks a deleted feature.
const (
	ChangeTag    = "change"
	ChangeDelete = "delete"
)

// DiffStats summarise a Diff run.
type DiffStats struct {
	Ranges        int // zoom ranges compared
	SkippedRanges int // baseline ranges missing from current
	Unchanged     int // features removed as binary-equal
	Modified      int // features kept as changed
	Deleted       int // tombstones added
	Added         int // features only present in current
}

// Diff reduces current to the changes relative to baseline. Within every
// zoom range present in both stores, features equal to their baseline
// version are removed and features missing from current are replaced by a
// tombstone carrying the baseline geometry and the change=delete type.
// Ranges missing from current are skipped, ranges missing from baseline are
// left as they are. Baseline is not modified.
//
// The delete type is registered in current's rule table under
// MaxCode()+1 before any tombstone is created, so only one Diff may run
// against a store at a time.
func Diff(baseline, current *Store) DiffStats {
	var stats DiffStats

	deleteCode := current.rules.MaxCode() + 1
	_ = current.rules.Register(deleteCode, ChangeTag, ChangeDelete)

	for _, zr := range baseline.order {
		before := baseline.parts[zr]
		after, ok := current.parts[zr]
		if !ok {
			stats.SkippedRanges++
			continue
		}
		stats.Ranges++

		var deleted, modified int
		for id, old := range before {
			cur, ok := after[id]
			switch {
			case !ok:
				after[id] = &Feature{
					ID:       id,
					Points:   old.Points,
					Area:     old.Area,
					MainType: deleteCode,
				}
				deleted++
			case cur.Equal(current.rules, old, baseline.rules):
				delete(after, id)
				stats.Unchanged++
			default:
				modified++
			}
		}
		stats.Deleted += deleted
		stats.Modified += modified
		stats.Added += len(after) - deleted - modified
	}
	return stats
}

// IsTombstone reports whether f, typed by rules, marks a deletion.
func IsTombstone(f *Feature, rules *RuleTable) bool {
	r, ok := rules.Lookup(f.MainType)
	return ok && r.Tag == ChangeTag && r.Value == ChangeDelete
}
