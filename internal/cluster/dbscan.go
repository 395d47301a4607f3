// Package cluster groups geographic points by density.
package cluster

import (
	"sort"

	"github.com/Bhupin123/Sismicity/internal/geo"
)

// Noise labels a point that belongs to no cluster.
const Noise = -1

const unvisited = -2

// Metric returns the distance between two points in the same unit as eps.
type Metric func(a, b geo.Point) float64

// Clusterer assigns a cluster label to every point. Labels are dense integers
// starting at 0; points outside every cluster get Noise.
type Clusterer interface {
	Cluster(points []geo.Point, eps float64, minSamples int, metric Metric) []int
}

// DBSCAN is density-based clustering with a pluggable metric. A point is a core
// point when at least minSamples points, itself included, lie within eps.
//
// When KmPerDegree is positive, candidate neighbors are pruned to a latitude band
// of eps/KmPerDegree degrees. That is only valid for metrics that never report
// less than KmPerDegree per degree of latitude difference, which holds for
// geo.Distance with geo.KmPerDegree. Zero disables pruning.
type DBSCAN struct {
	KmPerDegree float64
}

// Cluster labels points in input order, so identical input yields identical labels.
func (d DBSCAN) Cluster(points []geo.Point, eps float64, minSamples int, metric Metric) []int {
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = unvisited
	}
	if len(points) == 0 {
		return labels
	}

	idx := newLatIndex(points)
	region := func(i int) []int {
		return d.neighbors(idx, points, i, eps, metric)
	}

	next := 0
	for i := range points {
		if labels[i] != unvisited {
			continue
		}
		seeds := region(i)
		if len(seeds) < minSamples {
			labels[i] = Noise
			continue
		}

		c := next
		next++
		labels[i] = c
		for q := 0; q < len(seeds); q++ {
			j := seeds[q]
			if labels[j] == Noise {
				labels[j] = c // border point
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = c
			if more := region(j); len(more) >= minSamples {
				seeds = append(seeds, more...)
			}
		}
	}
	return labels
}

// neighbors returns the indices within eps of points[i], ascending, including i.
func (d DBSCAN) neighbors(idx latIndex, points []geo.Point, i int, eps float64, metric Metric) []int {
	var candidates []int
	if d.KmPerDegree > 0 {
		candidates = idx.within(points[i].Lat, eps/d.KmPerDegree)
	} else {
		candidates = idx.order
	}

	out := make([]int, 0, len(candidates))
	for _, j := range candidates {
		if j == i || metric(points[i], points[j]) <= eps {
			out = append(out, j)
		}
	}
	sort.Ints(out)
	return out
}

// latIndex orders point indices by latitude for band queries.
type latIndex struct {
	order []int
	lats  []float64
}

func newLatIndex(points []geo.Point) latIndex {
	order := make([]int, len(points))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return points[order[a]].Lat < points[order[b]].Lat
	})
	lats := make([]float64, len(order))
	for k, i := range order {
		lats[k] = points[i].Lat
	}
	return latIndex{order: order, lats: lats}
}

// within returns the indices whose latitude lies in [lat-span, lat+span].
func (x latIndex) within(lat, span float64) []int {
	lo := sort.SearchFloat64s(x.lats, lat-span)
	hi := sort.Search(len(x.lats), func(k int) bool { return x.lats[k] > lat+span })
	return x.order[lo:hi]
}
