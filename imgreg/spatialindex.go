package imgreg

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"
)

// controlPointIndex accelerates nearest-neighbour queries over a
// control-point set's source-space coordinates, backed by an
// orb/quadtree (spec §3's "a KD-tree-like structure keyed on
// source-space position caches nearest-neighbour lookups"). It is not
// cached on a Mesh or Grid: refineComposition builds a fresh index on each
// refinement pass.
type controlPointIndex struct {
	tree *quadtree.Quadtree
	pts  []Pt
}

type indexedPoint struct {
	pt  orb.Point
	idx int
}

func (p indexedPoint) Point() orb.Point { return p.pt }

// buildControlPointIndex indexes pts (source-space positions) for
// nearest-neighbour queries. Returns nil if pts is empty — callers treat
// a nil index as "no nearby point" for every query.
func buildControlPointIndex(pts []Pt) *controlPointIndex {
	if len(pts) == 0 {
		return nil
	}
	bound := boundsOfPoints(pts).Bound()
	tree := quadtree.New(bound)
	for i, p := range pts {
		_ = tree.Add(indexedPoint{pt: orb.Point(p), idx: i})
	}
	return &controlPointIndex{tree: tree, pts: append([]Pt(nil), pts...)}
}

// Nearest returns the index of the point in the set closest to p, and its
// distance, or ok=false if the index is empty.
func (idx *controlPointIndex) Nearest(p Pt) (nearestIdx int, dist float64, ok bool) {
	if idx == nil || idx.tree == nil {
		return 0, 0, false
	}
	found := idx.tree.Find(orb.Point(p))
	if found == nil {
		return 0, 0, false
	}
	ip := found.(indexedPoint)
	return ip.idx, ptDist(Pt(ip.pt), p), true
}
