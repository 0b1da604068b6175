package calmroute

import (
	"math"

	"github.com/pkg/errors"
)

// Segment is raw walkable street segment geometry coming from external source
type Segment struct {
	Geom       []GeoPoint
	StreetName string
}

// SegmentSource is any provider of raw street segments for bounding box.
// Implementations must be deterministic: same bbox yields same segments in
// same order, otherwise graph identifiers float between requests.
type SegmentSource interface {
	Segments(bbox BBox) ([]Segment, error)
}

// StaticSegments is in-memory SegmentSource, mostly for pre-loaded map files
type StaticSegments []Segment

// Segments implements SegmentSource: returns segments whose bounding box
// intersects requested one, preserving original order
func (s StaticSegments) Segments(bbox BBox) ([]Segment, error) {
	result := []Segment{}
	for _, segment := range s {
		if len(segment.Geom) < 2 {
			continue
		}
		if lineBBox(segment.Geom).Intersects(bbox) {
			result = append(result, segment)
		}
	}
	return result, nil
}

// StreetNode is intersection or segment endpoint. Never mutated after graph construction.
type StreetNode struct {
	ID    int64
	Point GeoPoint
}

// StreetEdge is walkable segment between two nodes. Edge is undirected for traversal,
// but stored in canonical direction (From <= To). Penalties are written once by
// overlay aggregation and stay frozen during search.
type StreetEdge struct {
	ID           int64
	From         int64
	To           int64
	LengthMeters float64
	Geom         []GeoPoint
	StreetName   string

	penalties map[LayerType]float64
	exposures map[LayerType]float64
}

// Penalty returns accumulated normalized penalty of given layer
func (e *StreetEdge) Penalty(layer LayerType) float64 {
	return e.penalties[layer]
}

// Exposure returns accumulated raw metric exposure of given layer, used for
// per-route average metrics
func (e *StreetEdge) Exposure(layer LayerType) float64 {
	return e.exposures[layer]
}

// Cost returns search weight of edge: geodesic length scaled by weighted layer
// penalties. Distance is always the multiplicative base, so zero weights
// degrade to plain shortest-path search. Light bonuses may push the factor
// below zero, thus cost is clamped to small positive fraction of length to
// keep label-setting search correct.
func (e *StreetEdge) Cost(weights RouteWeights) float64 {
	factor := 1.0
	for _, layer := range layerTypesOrdered {
		w := weights[layer]
		if w == 0 {
			continue
		}
		factor += w * e.penalties[layer]
	}
	cost := e.LengthMeters * factor
	floor := e.LengthMeters * minEdgeCostFactor
	if cost < floor {
		cost = floor
	}
	return cost
}

type graphNeighbor struct {
	edgeID       int64
	nodeID       int64
	lengthMeters float64
}

// StreetGraph is walkable network inside of single bounding box. Graph is built
// per request (or fetched from cache) and construction is idempotent: same
// bbox and same source data produce same node and edge identifiers.
type StreetGraph struct {
	bbox      BBox
	nodes     []StreetNode
	edges     []StreetEdge
	adjacency [][]graphNeighbor

	snapToleranceMeters float64
}

// nodeKey is coordinate rounded to ~1 centimeter, shared segment endpoints
// snap into single node
type nodeKey struct {
	latE7 int64
	lonE7 int64
}

func makeNodeKey(pt GeoPoint) nodeKey {
	return nodeKey{
		latE7: int64(math.Round(pt.Lat * 1e7)),
		lonE7: int64(math.Round(pt.Lon * 1e7)),
	}
}

// BuildStreetGraph builds graph for bounding box from raw segments. Node and edge
// identifiers are sequential in order of first appearance, so identical input
// produces identical graph.
func BuildStreetGraph(source SegmentSource, bbox BBox, snapToleranceMeters float64) (*StreetGraph, error) {
	segments, err := source.Segments(bbox)
	if err != nil {
		return nil, errors.Wrap(err, "Can't fetch street segments")
	}
	graph := &StreetGraph{
		bbox:                bbox,
		snapToleranceMeters: snapToleranceMeters,
	}
	seen := make(map[nodeKey]int64)
	nodeID := func(pt GeoPoint) int64 {
		key := makeNodeKey(pt)
		if id, ok := seen[key]; ok {
			return id
		}
		id := int64(len(graph.nodes))
		graph.nodes = append(graph.nodes, StreetNode{ID: id, Point: pt})
		seen[key] = id
		return id
	}
	for _, segment := range segments {
		if len(segment.Geom) < 2 {
			continue
		}
		if !lineBBox(segment.Geom).Intersects(bbox) {
			continue
		}
		length := getSphericalLength(segment.Geom)
		if length <= 0 {
			continue
		}
		from := nodeID(segment.Geom[0])
		to := nodeID(segment.Geom[len(segment.Geom)-1])
		if from == to {
			// Degenerate loop, useless for point-to-point search
			continue
		}
		geom := copyLine(segment.Geom)
		if from > to {
			from, to = to, from
			geom = reverseLine(geom)
		}
		graph.edges = append(graph.edges, StreetEdge{
			ID:           int64(len(graph.edges)),
			From:         from,
			To:           to,
			LengthMeters: length,
			Geom:         geom,
			StreetName:   segment.StreetName,
		})
	}
	if len(graph.edges) == 0 {
		return nil, errors.Wrapf(ErrNoGraphData, "bbox (%f, %f, %f, %f)", bbox.MinLat, bbox.MinLon, bbox.MaxLat, bbox.MaxLon)
	}
	graph.adjacency = make([][]graphNeighbor, len(graph.nodes))
	for i := range graph.edges {
		edge := &graph.edges[i]
		graph.adjacency[edge.From] = append(graph.adjacency[edge.From], graphNeighbor{edgeID: edge.ID, nodeID: edge.To, lengthMeters: edge.LengthMeters})
		graph.adjacency[edge.To] = append(graph.adjacency[edge.To], graphNeighbor{edgeID: edge.ID, nodeID: edge.From, lengthMeters: edge.LengthMeters})
	}
	return graph, nil
}

// NumNodes returns count of graph nodes
func (g *StreetGraph) NumNodes() int {
	return len(g.nodes)
}

// NumEdges returns count of graph edges
func (g *StreetGraph) NumEdges() int {
	return len(g.edges)
}

// Node returns node by identifier
func (g *StreetGraph) Node(id int64) StreetNode {
	return g.nodes[id]
}

// Edge returns edge by identifier
func (g *StreetGraph) Edge(id int64) *StreetEdge {
	return &g.edges[id]
}

// Neighbors returns adjacent edges for given node
func (g *StreetGraph) Neighbors(nodeID int64) []graphNeighbor {
	if nodeID < 0 || nodeID >= int64(len(g.adjacency)) {
		return nil
	}
	return g.adjacency[nodeID]
}

// Nearest snaps arbitrary point to nearest graph node. Point must lie inside of
// graph's bounding box padded by snap tolerance, engine does not silently snap
// to a distant node. Ties are broken by lowest node identifier.
func (g *StreetGraph) Nearest(pt GeoPoint) (int64, error) {
	covered := g.bbox.PadMeters(g.snapToleranceMeters)
	if !covered.ContainsPoint(pt) {
		return -1, errors.Wrapf(ErrPointOutOfRange, "point %s", pt)
	}
	bestID := int64(-1)
	bestDist := math.MaxFloat64
	for i := range g.nodes {
		dist := greatCircleDistance(pt, g.nodes[i].Point)
		if dist < bestDist {
			bestDist = dist
			bestID = g.nodes[i].ID
		}
	}
	return bestID, nil
}

// EdgePathFrom returns edge geometry oriented to start at given node
func (g *StreetGraph) EdgePathFrom(edgeID, fromNodeID int64) []GeoPoint {
	edge := &g.edges[edgeID]
	if edge.From == fromNodeID {
		return edge.Geom
	}
	return reverseLine(edge.Geom)
}

// cloneForRequest returns copy of graph with fresh penalty storage. Nodes,
// adjacency and geometry are shared (read-only), so cached graphs can serve
// many concurrent requests while each request aggregates its own penalties.
func (g *StreetGraph) cloneForRequest() *StreetGraph {
	clone := &StreetGraph{
		bbox:                g.bbox,
		nodes:               g.nodes,
		adjacency:           g.adjacency,
		snapToleranceMeters: g.snapToleranceMeters,
		edges:               make([]StreetEdge, len(g.edges)),
	}
	copy(clone.edges, g.edges)
	for i := range clone.edges {
		clone.edges[i].penalties = nil
		clone.edges[i].exposures = nil
	}
	return clone
}
