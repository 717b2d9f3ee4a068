/*
Package mapdiff compares two snapshots of a map container and produces a
container holding only what changed between them.

A Store holds the features of one or more containers in memory, partitioned
by zoom range and keyed by id, together with the encoding rule table their
type codes refer to. Merge loads containers into a store, Diff reduces the
newer store to additions, modifications and delete tombstones relative to the
older one, and WriteFile packs one spatial tree per zoom range and writes
the result back out.

    base, next := mapdiff.NewStore(), mapdiff.NewStore()
    if err := base.Merge(nil, "old.obf"); err != nil { ... }
    if err := next.Merge(nil, "new.obf"); err != nil { ... }

    base.FilterBelow(15)
    next.FilterBelow(15)
    stats := mapdiff.Diff(base, next)

    if _, err := next.WriteFile("diff.obf.gz", nil); err != nil { ... }

Only zoom ranges present in both stores are compared. A range the newer
store lacks is skipped rather than treated as a deletion of all its
features.
*/
package mapdiff
