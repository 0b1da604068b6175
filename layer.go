package calmroute

import (
	"sync/atomic"
)

// LayerType is single environmental dimension represented as tagged polygons
type LayerType string

const (
	LayerNoise   = LayerType("noise")
	LayerCrowd   = LayerType("crowd")
	LayerLight   = LayerType("light")
	LayerPuddles = LayerType("puddles")
)

// layerTypesOrdered is used everywhere iteration order matters (float accumulation,
// deterministic results for identical inputs)
var layerTypesOrdered = []LayerType{LayerNoise, LayerCrowd, LayerLight, LayerPuddles}

// Valid checks if layer type is one of supported ones
func (lt LayerType) Valid() bool {
	switch lt {
	case LayerNoise, LayerCrowd, LayerLight, LayerPuddles:
		return true
	}
	return false
}

// Metrics is set of environmental measurements attached to single polygon.
// Only the field matching polygon's layer type is authoritative, the rest are
// informational defaults.
type Metrics struct {
	NoiseDB    float64 `json:"noise_db"`
	CrowdLevel int     `json:"crowd_level"`
	LightLux   float64 `json:"light_lux"`
	Puddles    bool    `json:"puddles"`
}

// ValueForLayer returns authoritative measurement for given layer type
func (m Metrics) ValueForLayer(layer LayerType) float64 {
	switch layer {
	case LayerNoise:
		return m.NoiseDB
	case LayerCrowd:
		return float64(m.CrowdLevel)
	case LayerLight:
		return m.LightLux
	case LayerPuddles:
		if m.Puddles {
			return 1.0
		}
		return 0.0
	}
	return 0.0
}

// LayerPolygon is geo-polygon tagged with layer type and measured metrics
type LayerPolygon struct {
	ID         string
	Layer      LayerType
	Ring       []GeoPoint
	Metrics    Metrics
	StreetName string

	bound BBox
}

// NewLayerPolygon prepares layer polygon: drops duplicated closing point if ring
// is stored closed and caches polygon's bounding box
func NewLayerPolygon(id string, layer LayerType, ring []GeoPoint, metrics Metrics) LayerPolygon {
	if len(ring) > 1 && ring[0] == ring[len(ring)-1] {
		ring = ring[:len(ring)-1]
	}
	return LayerPolygon{
		ID:      id,
		Layer:   layer,
		Ring:    copyLine(ring),
		Metrics: metrics,
		bound:   lineBBox(ring),
	}
}

// Bound returns cached bounding box of polygon's ring
func (lp LayerPolygon) Bound() BBox {
	return lp.bound
}

// LayerSource is any provider of layer polygons for given layer type and bounding box.
// Whether implementation reads static file, generates synthetic data or calls external
// API is not engine's concern.
type LayerSource interface {
	Query(layer LayerType, bbox BBox) ([]LayerPolygon, error)
}

// LayerStore is in-memory LayerSource holding pre-loaded polygons indexed by layer type.
// Store is immutable after construction, so concurrent queries are safe. To refresh
// contents build a new store and swap it via SwappableSource.
type LayerStore struct {
	polygons map[LayerType][]LayerPolygon
}

// NewLayerStore builds store from pre-loaded polygons (any source)
func NewLayerStore(polygons []LayerPolygon) *LayerStore {
	store := &LayerStore{
		polygons: make(map[LayerType][]LayerPolygon),
	}
	for _, polygon := range polygons {
		store.polygons[polygon.Layer] = append(store.polygons[polygon.Layer], polygon)
	}
	return store
}

// Query returns all polygons of given layer type whose bounding box intersects query bbox
func (store *LayerStore) Query(layer LayerType, bbox BBox) ([]LayerPolygon, error) {
	result := []LayerPolygon{}
	for _, polygon := range store.polygons[layer] {
		if polygon.bound.Intersects(bbox) {
			result = append(result, polygon)
		}
	}
	return result, nil
}

// SwappableSource wraps LayerSource and allows to replace it atomically while
// concurrent route requests keep querying the old one
type SwappableSource struct {
	current atomic.Value
}

type sourceBox struct {
	source LayerSource
}

// NewSwappableSource wraps given source
func NewSwappableSource(source LayerSource) *SwappableSource {
	s := &SwappableSource{}
	s.current.Store(sourceBox{source: source})
	return s
}

// Replace swaps underlying source as a whole. In-flight queries finish against
// the previous one, partial updates are never visible.
func (s *SwappableSource) Replace(source LayerSource) {
	s.current.Store(sourceBox{source: source})
}

// Query proxies call to current underlying source
func (s *SwappableSource) Query(layer LayerType, bbox BBox) ([]LayerPolygon, error) {
	return s.current.Load().(sourceBox).source.Query(layer, bbox)
}

// FallbackSource tries primary source first and falls back to secondary one when
// primary fails or has nothing for requested area
type FallbackSource struct {
	Primary  LayerSource
	Fallback LayerSource
}

// Query implements LayerSource
func (f FallbackSource) Query(layer LayerType, bbox BBox) ([]LayerPolygon, error) {
	polygons, err := f.Primary.Query(layer, bbox)
	if err == nil && len(polygons) > 0 {
		return polygons, nil
	}
	return f.Fallback.Query(layer, bbox)
}
