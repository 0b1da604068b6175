package calmroute

import (
	"github.com/pkg/errors"
)

// Reference ceilings bringing every layer metric into comparable [0, 1+] range
const (
	noiseReferenceDB    = 100.0
	crowdReferenceLevel = 5.0
	lightReferenceLux   = 200.0

	// defaultPartialOverlapFraction is estimated share of edge length lying inside
	// of polygon when both endpoints are outside but the segment crosses the ring.
	// Approximation, not an exact geometric overlap length.
	defaultPartialOverlapFraction = 0.25
)

// normalizeMetric converts raw layer measurement into penalty contribution.
// Light acts as a bonus: the brighter the street the cheaper it is to walk it.
func normalizeMetric(layer LayerType, value float64) float64 {
	switch layer {
	case LayerNoise:
		return value / noiseReferenceDB
	case LayerCrowd:
		return value / crowdReferenceLevel
	case LayerLight:
		return -(value / lightReferenceLux)
	case LayerPuddles:
		return value
	}
	return 0.0
}

// OverlayAggregator joins street graph edges against layer polygons and writes
// per-edge per-layer penalties. Aggregation has no cross-edge state.
type OverlayAggregator struct {
	layers                 LayerSource
	partialOverlapFraction float64
}

// NewOverlayAggregator prepares aggregator over given layer source.
// Non-positive partialOverlapFraction enables the default one.
func NewOverlayAggregator(layers LayerSource, partialOverlapFraction float64) *OverlayAggregator {
	if partialOverlapFraction <= 0 {
		partialOverlapFraction = defaultPartialOverlapFraction
	}
	return &OverlayAggregator{
		layers:                 layers,
		partialOverlapFraction: partialOverlapFraction,
	}
}

// Aggregate attaches layer penalties to every edge of the graph. Only layers with
// non-zero weight are considered: zero weight means "ignore this layer entirely".
// Must complete before search starts so search sees final stable edge costs.
func (agg *OverlayAggregator) Aggregate(graph *StreetGraph, weights RouteWeights) error {
	for i := 0; i < graph.NumEdges(); i++ {
		edge := graph.Edge(int64(i))
		for _, layer := range layerTypesOrdered {
			if weights[layer] == 0 {
				continue
			}
			if err := agg.aggregateEdgeLayer(edge, layer); err != nil {
				return errors.Wrapf(err, "Can't aggregate layer '%s' for edge '%d'", layer, edge.ID)
			}
		}
	}
	return nil
}

// aggregateEdgeLayer accumulates penalty contributions of single layer for single edge.
// Polygons are looked up by edge's own bounding box, never by a global scan.
func (agg *OverlayAggregator) aggregateEdgeLayer(edge *StreetEdge, layer LayerType) error {
	polygons, err := agg.layers.Query(layer, lineBBox(edge.Geom))
	if err != nil {
		return err
	}
	if len(polygons) == 0 {
		return nil
	}
	start := edge.Geom[0]
	end := edge.Geom[len(edge.Geom)-1]
	for _, polygon := range polygons {
		fraction := agg.overlapFraction(start, end, edge.Geom, polygon.Ring)
		if fraction == 0 {
			continue
		}
		value := polygon.Metrics.ValueForLayer(layer)
		if value == 0 {
			continue
		}
		if edge.penalties == nil {
			edge.penalties = make(map[LayerType]float64)
			edge.exposures = make(map[LayerType]float64)
		}
		edge.penalties[layer] += normalizeMetric(layer, value) * fraction
		edge.exposures[layer] += value * fraction
	}
	return nil
}

// overlapFraction estimates share of edge length lying inside of polygon:
// 1.0 when both endpoints are inside, 0.5 when one is, partial-overlap
// constant when the edge merely crosses the ring
func (agg *OverlayAggregator) overlapFraction(start, end GeoPoint, geom []GeoPoint, ring []GeoPoint) float64 {
	startInside := pointInRing(start, ring)
	endInside := pointInRing(end, ring)
	switch {
	case startInside && endInside:
		return 1.0
	case startInside || endInside:
		return 0.5
	case lineIntersectsRing(geom, ring):
		return agg.partialOverlapFraction
	}
	return 0.0
}
