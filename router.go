package calmroute

import (
	"container/heap"
	"context"
	"math"

	"github.com/pkg/errors"
)

// minEdgeCostFactor is lower bound for edge cost expressed as fraction of edge
// length. Keeps costs strictly positive under maximal light bonus.
const minEdgeCostFactor = 1e-3

// RouteWeights maps layer type to non-negative weight coefficient. Zero weight
// (or absent layer) means "ignore this layer entirely".
type RouteWeights map[LayerType]float64

// Validate checks that no weight is negative and every layer is a known one
func (w RouteWeights) Validate() error {
	for layer, weight := range w {
		if !layer.Valid() {
			return errors.Wrapf(ErrBadWeights, "unknown layer '%s'", layer)
		}
		if weight < 0 {
			return errors.Wrapf(ErrBadWeights, "layer '%s' has weight %f", layer, weight)
		}
	}
	return nil
}

// RouteResult is final calm route. Immutable once produced.
type RouteResult struct {
	// Path is ordered route polyline
	Path []GeoPoint
	// NodeIDs are identifiers of visited graph nodes, in order
	NodeIDs []int64
	// EdgeIDs are identifiers of traversed edges, in order
	EdgeIDs []int64
	// DistanceMeters is total geodesic length of the route
	DistanceMeters float64
	// Cost is scalar weighted cost used for ranking
	Cost float64
	// Averages holds per-layer length-weighted average metric along the route
	// (raw units: dB for noise, 0..5 for crowd, lux for light)
	Averages map[LayerType]float64
}

type frontierItem struct {
	nodeID int64
	cost   float64
	hops   int
	index  int
}

type frontier []*frontierItem

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	if f[i].cost != f[j].cost {
		return f[i].cost < f[j].cost
	}
	if f[i].hops != f[j].hops {
		return f[i].hops < f[j].hops
	}
	return f[i].nodeID < f[j].nodeID
}

func (f frontier) Swap(i, j int) {
	f[i], f[j] = f[j], f[i]
	f[i].index = i
	f[j].index = j
}

func (f *frontier) Push(x interface{}) {
	item := x.(*frontierItem)
	item.index = len(*f)
	*f = append(*f, item)
}

func (f *frontier) Pop() interface{} {
	old := *f
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*f = old[:n-1]
	return item
}

// betterLabel reports whether candidate label should replace current one.
// Strictly cheaper always wins; on equal cost fewer hops win; on equal hops
// lower predecessor identifier wins, which keeps results deterministic.
func betterLabel(newCost, oldCost float64, newHops, oldHops int, newPrev, oldPrev int64) bool {
	if newCost != oldCost {
		return newCost < oldCost
	}
	if newHops != oldHops {
		return newHops < oldHops
	}
	return newPrev < oldPrev
}

// FindCalmRoute runs label-setting (Dijkstra) search from start to end node over
// penalty-augmented graph. Aggregation must be finished beforehand: search reads
// final edge costs and never mutates them. Context is checked at every frontier
// pop, so pathological areas can be aborted by the caller.
func FindCalmRoute(ctx context.Context, graph *StreetGraph, startID, endID int64, weights RouteWeights) (*RouteResult, error) {
	numNodes := graph.NumNodes()
	dist := make([]float64, numNodes)
	hops := make([]int, numNodes)
	prevNode := make([]int64, numNodes)
	prevEdge := make([]int64, numNodes)
	visited := make([]bool, numNodes)
	for i := 0; i < numNodes; i++ {
		dist[i] = math.Inf(1)
		prevNode[i] = -1
		prevEdge[i] = -1
	}
	dist[startID] = 0

	queue := &frontier{}
	heap.Init(queue)
	heap.Push(queue, &frontierItem{nodeID: startID, cost: 0, hops: 0})

	found := false
	for queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(ErrSearchCancelled, "%v", err)
		}
		current := heap.Pop(queue).(*frontierItem)
		if visited[current.nodeID] {
			continue
		}
		visited[current.nodeID] = true
		if current.nodeID == endID {
			found = true
			break
		}
		for _, neighbor := range graph.Neighbors(current.nodeID) {
			if visited[neighbor.nodeID] {
				continue
			}
			edge := graph.Edge(neighbor.edgeID)
			newCost := dist[current.nodeID] + edge.Cost(weights)
			newHops := hops[current.nodeID] + 1
			if !betterLabel(newCost, dist[neighbor.nodeID], newHops, hops[neighbor.nodeID], current.nodeID, prevNode[neighbor.nodeID]) {
				continue
			}
			dist[neighbor.nodeID] = newCost
			hops[neighbor.nodeID] = newHops
			prevNode[neighbor.nodeID] = current.nodeID
			prevEdge[neighbor.nodeID] = neighbor.edgeID
			heap.Push(queue, &frontierItem{nodeID: neighbor.nodeID, cost: newCost, hops: newHops})
		}
	}
	if !found {
		return nil, errors.Wrapf(ErrNoRouteFound, "nodes '%d' and '%d' are not connected", startID, endID)
	}
	return assembleResult(graph, startID, endID, dist[endID], prevNode, prevEdge, weights), nil
}

// assembleResult backtracks predecessor chain and builds final route with its
// score breakdown
func assembleResult(graph *StreetGraph, startID, endID int64, totalCost float64, prevNode, prevEdge []int64, weights RouteWeights) *RouteResult {
	nodeIDs := []int64{}
	edgeIDs := []int64{}
	for at := endID; at != -1; at = prevNode[at] {
		nodeIDs = append(nodeIDs, at)
		if prevEdge[at] != -1 {
			edgeIDs = append(edgeIDs, prevEdge[at])
		}
		if at == startID {
			break
		}
	}
	reverseInt64(nodeIDs)
	reverseInt64(edgeIDs)

	result := &RouteResult{
		NodeIDs:  nodeIDs,
		EdgeIDs:  edgeIDs,
		Cost:     totalCost,
		Averages: make(map[LayerType]float64),
	}
	result.Path = append(result.Path, graph.Node(startID).Point)
	totalDistance := 0.0
	exposures := make(map[LayerType]float64)
	for i, edgeID := range edgeIDs {
		edge := graph.Edge(edgeID)
		totalDistance += edge.LengthMeters
		geom := graph.EdgePathFrom(edgeID, nodeIDs[i])
		result.Path = append(result.Path, geom[1:]...)
		for _, layer := range layerTypesOrdered {
			exposures[layer] += edge.Exposure(layer) * edge.LengthMeters
		}
	}
	result.DistanceMeters = totalDistance
	if totalDistance > 0 {
		for _, layer := range layerTypesOrdered {
			if weights[layer] == 0 {
				continue
			}
			result.Averages[layer] = exposures[layer] / totalDistance
		}
	}
	return result
}

func reverseInt64(values []int64) {
	for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
		values[i], values[j] = values[j], values[i]
	}
}
