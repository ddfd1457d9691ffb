package ivm

// entry is one arrangement slot: a live row and its current multiplicity.
type entry struct {
	row Row
	mul int64
}

// Arrangement is an indexed, de-duplicated signed multiset (spec.md §9): a
// mapping from row-fingerprint to current multiplicity. A fingerprint with
// multiplicity <= 0 is compacted out immediately.
type Arrangement struct {
	byFP map[uint64]*entry
}

func NewArrangement() *Arrangement {
	return &Arrangement{byFP: make(map[uint64]*entry)}
}

// Apply folds delta into the arrangement and returns the externally visible
// net change: rows whose multiplicity crossed from <=0 to >0 (added) or from
// >0 to <=0 (removed). A row whose multiplicity moves between two positive
// values produces neither (spec.md §4.6: "no row with zero final
// multiplicity is ever present in a sink snapshot").
func (a *Arrangement) Apply(delta Delta) (added, removed []Row) {
	for _, rd := range delta {
		fp := rd.Row.Fingerprint()
		e, ok := a.byFP[fp]
		before := int64(0)
		if ok {
			before = e.mul
		}
		after := before + rd.Mul
		switch {
		case before <= 0 && after > 0:
			a.byFP[fp] = &entry{row: rd.Row, mul: after}
			added = append(added, rd.Row)
		case before > 0 && after <= 0:
			delete(a.byFP, fp)
			removed = append(removed, rd.Row)
		case after <= 0:
			delete(a.byFP, fp)
		default:
			a.byFP[fp] = &entry{row: rd.Row, mul: after}
		}
	}
	return added, removed
}

// Rows returns the current snapshot (multiplicity > 0 rows only).
func (a *Arrangement) Rows() []Row {
	out := make([]Row, 0, len(a.byFP))
	for _, e := range a.byFP {
		out = append(out, e.row)
	}
	return out
}

func (a *Arrangement) Len() int { return len(a.byFP) }

// KeyedArrangement additionally indexes live rows by an equi-join key, the
// shape HashJoin needs to find matches for an incoming delta in O(matches).
type KeyedArrangement struct {
	arr     *Arrangement
	keyCol  string
	byKey   map[string]map[uint64]struct{} // join key -> set of fingerprints
}

func NewKeyedArrangement(keyCol string) *KeyedArrangement {
	return &KeyedArrangement{
		arr:    NewArrangement(),
		keyCol: keyCol,
		byKey:  make(map[string]map[uint64]struct{}),
	}
}

func (k *KeyedArrangement) Apply(delta Delta) {
	for _, rd := range delta {
		fp := rd.Row.Fingerprint()
		e, ok := k.arr.byFP[fp]
		before := int64(0)
		if ok {
			before = e.mul
		}
		after := before + rd.Mul
		key, hasKey := rd.Row.JoinKey(k.keyCol)

		switch {
		case after <= 0:
			delete(k.arr.byFP, fp)
			if hasKey && k.byKey[key] != nil {
				delete(k.byKey[key], fp)
				if len(k.byKey[key]) == 0 {
					delete(k.byKey, key)
				}
			}
		default:
			k.arr.byFP[fp] = &entry{row: rd.Row, mul: after}
			if hasKey {
				if k.byKey[key] == nil {
					k.byKey[key] = make(map[uint64]struct{})
				}
				k.byKey[key][fp] = struct{}{}
			}
		}
	}
}

// matchedEntry is a live row sharing a join key, along with its current
// multiplicity (join output multiplicity is the product of both sides').
type matchedEntry struct {
	row Row
	mul int64
}

// Match returns the live rows currently sharing key, with their current
// multiplicities.
func (k *KeyedArrangement) Match(key string) []matchedEntry {
	fps := k.byKey[key]
	if len(fps) == 0 {
		return nil
	}
	out := make([]matchedEntry, 0, len(fps))
	for fp := range fps {
		if e, ok := k.arr.byFP[fp]; ok {
			out = append(out, matchedEntry{row: e.row, mul: e.mul})
		}
	}
	return out
}

func (k *KeyedArrangement) Len() int { return k.arr.Len() }
