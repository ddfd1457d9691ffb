package index

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/tuannm99/reldb/internal/typesystem"
)

// GIN maintains, for a single Jsonb column, a posting list per (path,
// leaf-value) pair across the subset of paths currently "active". A new GIN
// has no active path and the schema's IndexDef carries no path list; a path
// becomes active only through Activate, which happens when a query first
// demands it.
//
// Grounded on outserv's posting-index.go mutation idiom (index/remove a
// term's postings symmetrically on insert/update/delete), adapted from
// Dgraph's predicate/tokenizer model to JSON-path/leaf-value pairs and
// backed by roaring bitmaps instead of Badger-stored posting lists.
type GIN struct {
	postings    map[string]*roaring64.Bitmap
	activePaths map[string]typesystem.Path
}

func NewGIN() *GIN {
	return &GIN{
		postings:    make(map[string]*roaring64.Bitmap),
		activePaths: make(map[string]typesystem.Path),
	}
}

func postingKey(p typesystem.Path, v typesystem.Value) string {
	return p.String() + "\x00" + uniqueKey(v)
}

// IsActive reports whether p already has maintained postings.
func (g *GIN) IsActive(p typesystem.Path) bool {
	_, ok := g.activePaths[p.String()]
	return ok
}

// Activate marks p active. Returns true if this newly activated the path
// (caller must then backfill by scanning the table once).
func (g *GIN) Activate(p typesystem.Path) bool {
	if g.IsActive(p) {
		return false
	}
	g.activePaths[p.String()] = p
	return true
}

func (g *GIN) ActivePaths() []typesystem.Path {
	out := make([]typesystem.Path, 0, len(g.activePaths))
	for _, p := range g.activePaths {
		out = append(out, p)
	}
	return out
}

// IndexRow adds postings for id across every active path found in doc.
func (g *GIN) IndexRow(id uint64, doc typesystem.JSON) {
	for _, p := range g.activePaths {
		leaf, ok := doc.Leaf(p)
		if !ok || leaf.IsNull() {
			continue
		}
		g.add(p, leaf, id)
	}
}

// RemoveRow drops postings for id across every active path in doc.
func (g *GIN) RemoveRow(id uint64, doc typesystem.JSON) {
	for _, p := range g.activePaths {
		leaf, ok := doc.Leaf(p)
		if !ok || leaf.IsNull() {
			continue
		}
		g.remove(p, leaf, id)
	}
}

// UpdateRow moves id's postings from oldDoc's leaves to newDoc's leaves.
func (g *GIN) UpdateRow(id uint64, oldDoc, newDoc typesystem.JSON) {
	g.RemoveRow(id, oldDoc)
	g.IndexRow(id, newDoc)
}

// BackfillPath scans rows via iter (called once per live row) to populate
// postings for a newly-activated path, without re-touching other paths.
func (g *GIN) BackfillPath(p typesystem.Path, iter func(yield func(id uint64, doc typesystem.JSON) bool)) {
	iter(func(id uint64, doc typesystem.JSON) bool {
		leaf, ok := doc.Leaf(p)
		if ok && !leaf.IsNull() {
			g.add(p, leaf, id)
		}
		return true
	})
}

func (g *GIN) add(p typesystem.Path, leaf typesystem.Value, id uint64) {
	k := postingKey(p, leaf)
	bm, ok := g.postings[k]
	if !ok {
		bm = roaring64.New()
		g.postings[k] = bm
	}
	bm.Add(id)
}

func (g *GIN) remove(p typesystem.Path, leaf typesystem.Value, id uint64) {
	k := postingKey(p, leaf)
	if bm, ok := g.postings[k]; ok {
		bm.Remove(id)
		if bm.IsEmpty() {
			delete(g.postings, k)
		}
	}
}

// Eq returns the sorted row-ids where path equals value.
func (g *GIN) Eq(p typesystem.Path, value typesystem.Value) []uint64 {
	bm, ok := g.postings[postingKey(p, value)]
	if !ok {
		return nil
	}
	return bitmapToIDs(bm)
}

// EqMulti intersects postings for a conjunction of (path,value) equalities
// on the same Jsonb column — the GinIndexScanMulti physical operator.
func (g *GIN) EqMulti(preds []PathEq) []uint64 {
	if len(preds) == 0 {
		return nil
	}
	var acc *roaring64.Bitmap
	for _, pe := range preds {
		bm, ok := g.postings[postingKey(pe.Path, pe.Value)]
		if !ok {
			return nil // empty intersection
		}
		if acc == nil {
			acc = bm.Clone()
		} else {
			acc.And(bm)
		}
	}
	return bitmapToIDs(acc)
}

// PathEq is one conjunct of a GIN multi-predicate scan.
type PathEq struct {
	Path  typesystem.Path
	Value typesystem.Value
}
