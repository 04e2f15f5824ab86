package domain

import "sort"

// Newer reports whether a supersedes b: later UpdatedAt wins, Seq breaks ties.
func Newer(a, b TodoVersion) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.Seq > b.Seq
}

// ResolveLatest computes the visible todos from a set of version rows of one owner.
// Rows may arrive in any order and may contain stale versions; tombstoned todos are dropped.
// The result is ordered by ID ascending.
func ResolveLatest(rows []TodoVersion) []Todo {
	latest := latestByID(rows)

	todos := make([]Todo, 0, len(latest))
	for _, v := range latest {
		if v.Deleted {
			continue
		}
		todos = append(todos, v.Snapshot())
	}
	sort.Slice(todos, func(i, j int) bool { return todos[i].ID < todos[j].ID })
	return todos
}

// ResolveOne returns the current version of the todo with the given id. It reports false when
// no row exists or the latest row is a tombstone.
func ResolveOne(rows []TodoVersion, id uint32) (TodoVersion, bool) {
	var (
		current TodoVersion
		found   bool
	)
	for _, v := range rows {
		if v.ID != id {
			continue
		}
		if !found || Newer(v, current) {
			current = v
			found = true
		}
	}
	if !found || current.Deleted {
		return TodoVersion{}, false
	}
	return current, true
}

// SortVersions orders rows oldest first using the same rule as resolution.
func SortVersions(rows []TodoVersion) {
	sort.SliceStable(rows, func(i, j int) bool { return Newer(rows[j], rows[i]) })
}

func latestByID(rows []TodoVersion) map[uint32]TodoVersion {
	latest := make(map[uint32]TodoVersion, len(rows))
	for _, v := range rows {
		if cur, ok := latest[v.ID]; ok && !Newer(v, cur) {
			continue
		}
		latest[v.ID] = v
	}
	return latest
}
