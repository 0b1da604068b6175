package calmroute

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const defaultSnapToleranceMeters = 150.0

// Engine computes calm walking routes: builds street graph for requested
// bounding box, attaches environmental penalties to its edges and runs weighted
// shortest-path search. Engine owns no global state: construct it explicitly
// and inject both sources, lifetime belongs to the caller.
type Engine struct {
	segments SegmentSource
	layers   LayerSource

	snapToleranceMeters    float64
	partialOverlapFraction float64
	verbose                bool

	cacheGraphs bool
	cacheMu     sync.Mutex
	graphCache  map[BBox]*StreetGraph
}

// NewEngine prepares engine over given street segment and layer polygon sources
func NewEngine(segments SegmentSource, layers LayerSource, options ...func(*Engine)) *Engine {
	engine := &Engine{
		segments:               segments,
		layers:                 layers,
		snapToleranceMeters:    defaultSnapToleranceMeters,
		partialOverlapFraction: defaultPartialOverlapFraction,
	}
	for _, option := range options {
		option(engine)
	}
	return engine
}

// WithSnapTolerance sets how far outside of requested bounding box start/end
// points may lie before request is rejected
func WithSnapTolerance(meters float64) func(*Engine) {
	return func(engine *Engine) {
		engine.snapToleranceMeters = meters
	}
}

// WithPartialOverlapFraction tunes estimated overlap share for edges crossing
// a polygon with both endpoints outside
func WithPartialOverlapFraction(fraction float64) func(*Engine) {
	return func(engine *Engine) {
		engine.partialOverlapFraction = fraction
	}
}

// WithGraphCache enables re-use of built graphs between requests with identical
// bounding boxes. Safe because construction is idempotent and penalties stay
// request-scoped.
func WithGraphCache() func(*Engine) {
	return func(engine *Engine) {
		engine.cacheGraphs = true
		engine.graphCache = make(map[BBox]*StreetGraph)
	}
}

// WithVerbose enables progress output of underlying loaders
func WithVerbose(verbose bool) func(*Engine) {
	return func(engine *Engine) {
		engine.verbose = verbose
	}
}

// Request is single calm route query
type Request struct {
	Start   GeoPoint
	End     GeoPoint
	BBox    BBox
	Weights RouteWeights
}

// validate rejects malformed requests before any heavy work
func (req Request) validate() error {
	if !req.Start.Valid() {
		return fmt.Errorf("start point is out of geographic ranges: %s", req.Start)
	}
	if !req.End.Valid() {
		return fmt.Errorf("end point is out of geographic ranges: %s", req.End)
	}
	if _, err := NewBBox(req.BBox.MinLat, req.BBox.MinLon, req.BBox.MaxLat, req.BBox.MaxLon); err != nil {
		return err
	}
	return req.Weights.Validate()
}

// ComputeCalmRoute is the single entry point of the engine. Steps are strict:
// graph is built (or fetched) for the bounding box, overlay aggregation fully
// completes, then weighted search runs over frozen edge costs.
func (e *Engine) ComputeCalmRoute(ctx context.Context, req Request) (*RouteResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if e.verbose {
		fmt.Printf("Building graph...")
	}
	st := time.Now()
	graph, err := e.graphFor(req.BBox)
	if err != nil {
		return nil, err
	}
	if e.verbose {
		fmt.Printf("Done in %v\n\tNodes: %d\n\tEdges: %d\n", time.Since(st), graph.NumNodes(), graph.NumEdges())
	}
	startID, err := graph.Nearest(req.Start)
	if err != nil {
		return nil, errors.Wrap(err, "Start point")
	}
	endID, err := graph.Nearest(req.End)
	if err != nil {
		return nil, errors.Wrap(err, "End point")
	}
	if e.verbose {
		fmt.Printf("Aggregating layer penalties...")
	}
	st = time.Now()
	aggregator := NewOverlayAggregator(e.layers, e.partialOverlapFraction)
	if err := aggregator.Aggregate(graph, req.Weights); err != nil {
		return nil, errors.Wrap(err, "Overlay aggregation")
	}
	if e.verbose {
		fmt.Printf("Done in %v\n", time.Since(st))
	}
	return FindCalmRoute(ctx, graph, startID, endID, req.Weights)
}

// graphFor returns request-scoped graph for bounding box. Cached graphs are
// shared read-only, each request aggregates penalties on its own copy.
func (e *Engine) graphFor(bbox BBox) (*StreetGraph, error) {
	if !e.cacheGraphs {
		return BuildStreetGraph(e.segments, bbox, e.snapToleranceMeters)
	}
	e.cacheMu.Lock()
	cached, ok := e.graphCache[bbox]
	e.cacheMu.Unlock()
	if ok {
		return cached.cloneForRequest(), nil
	}
	graph, err := BuildStreetGraph(e.segments, bbox, e.snapToleranceMeters)
	if err != nil {
		return nil, err
	}
	e.cacheMu.Lock()
	e.graphCache[bbox] = graph
	e.cacheMu.Unlock()
	return graph.cloneForRequest(), nil
}
