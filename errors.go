package calmroute

import (
	"errors"
)

var (
	// ErrNoGraphData is returned when requested bounding box yields zero walkable street segments
	ErrNoGraphData = errors.New("no street data for given bounding box")
	// ErrPointOutOfRange is returned when start or end point lies outside of covered area
	ErrPointOutOfRange = errors.New("point is outside of covered area")
	// ErrNoRouteFound is returned when start and end nodes belong to disconnected components
	ErrNoRouteFound = errors.New("no route between given points")
	// ErrSearchCancelled is returned when caller aborts route search
	ErrSearchCancelled = errors.New("route search has been cancelled")
	// ErrBadWeights is returned when any provided layer weight is negative
	ErrBadWeights = errors.New("layer weights must be non-negative")
)
