package domain

// FieldChange records one differing field between two snapshots.
// Presence is tracked separately from value so a field added or dropped
// by an edit still counts as a difference.
type FieldChange struct {
	Field     string
	Source    any
	HasSource bool
	Target    any
	HasTarget bool
}

// Diff is the result of comparing two snapshots. An invalid diff means
// the comparison itself was impossible, e.g. undoing a revision that
// has no predecessor.
type Diff struct {
	Changes []FieldChange
	Valid   bool
}

func (d Diff) HasChanges() bool {
	return len(d.Changes) > 0
}

// Apply writes every change's target value onto f. A change without a
// target removes the field.
func (d Diff) Apply(f *Fields) {
	for _, ch := range d.Changes {
		if ch.HasTarget {
			f.Set(ch.Field, ch.Target)
		} else {
			f.Delete(ch.Field)
		}
	}
}

// Fields lists the changed field names in order.
func (d Diff) Fields() []string {
	names := make([]string, 0, len(d.Changes))
	for _, ch := range d.Changes {
		names = append(names, ch.Field)
	}
	return names
}

// DiffForRestore compares the current snapshot against an arbitrary
// target snapshot. Every field present in either is considered; a
// presence mismatch is a difference regardless of values. Applying the
// result rewrites current to exactly match target, clobbering
// intervening edits.
func DiffForRestore(current, target *Fields) Diff {
	diff := Diff{Valid: true}

	for _, name := range unionNames(current, target) {
		cv, cok := current.Get(name)
		tv, tok := target.Get(name)

		if cok != tok || (cok && tok && !ValueEqual(cv, tv)) {
			diff.Changes = append(diff.Changes, FieldChange{
				Field:     name,
				Source:    cv,
				HasSource: cok,
				Target:    tv,
				HasTarget: tok,
			})
		}
	}

	return diff
}

// DiffForUndo computes what a single revision changed (its post-state
// rev against its predecessor prev) and keeps only the fields the
// current snapshot still holds at the revision's post-state. Fields a
// later edit already moved on are left alone, so undo never tramples
// intervening work. Invalid when the revision has no predecessor: the
// initial creation cannot be undone.
func DiffForUndo(current, rev, prev *Fields) Diff {
	if prev == nil {
		return Diff{Valid: false}
	}

	diff := Diff{Valid: true}

	for _, name := range unionNames(prev, rev) {
		pv, pok := prev.Get(name)
		rv, rok := rev.Get(name)

		if pok == rok && (!pok || ValueEqual(pv, rv)) {
			continue // not touched by this revision
		}

		cv, cok := current.Get(name)
		if cok != rok || (cok && rok && !ValueEqual(cv, rv)) {
			continue // changed again since; leave it
		}

		diff.Changes = append(diff.Changes, FieldChange{
			Field:     name,
			Source:    cv,
			HasSource: cok,
			Target:    pv,
			HasTarget: pok,
		})
	}

	return diff
}

func unionNames(a, b *Fields) []string {
	names := a.Names()
	seen := map[string]struct{}{}
	for _, n := range names {
		seen[n] = struct{}{}
	}
	for _, n := range b.Names() {
		if _, ok := seen[n]; !ok {
			names = append(names, n)
		}
	}
	return names
}
