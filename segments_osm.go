package calmroute

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"github.com/pkg/errors"
)

// OSMScanner is unified interface for OSM file scanners of different formats
type OSMScanner interface {
	Scan() bool
	Close() error
	Err() error
	Object() osm.Object
}

// walkableHighwayTags is default set of `highway` tag values a pedestrian can use
var walkableHighwayTags = map[string]struct{}{
	"footway":        {},
	"path":           {},
	"pedestrian":     {},
	"steps":          {},
	"living_street":  {},
	"residential":    {},
	"service":        {},
	"track":          {},
	"unclassified":   {},
	"tertiary":       {},
	"tertiary_link":  {},
	"secondary":      {},
	"secondary_link": {},
	"primary":        {},
	"primary_link":   {},
}

type osmWayData struct {
	id    osm.WayID
	name  string
	nodes []osm.NodeID
}

type osmNodeData struct {
	lat      float64
	lon      float64
	useCount int
}

// OSMSegmentSource reads walkable street segments from OSM file. Ways are split
// into segments at nodes shared by several ways (intersections), so resulting
// segments snap into graph nodes naturally.
type OSMSegmentSource struct {
	FileName string
	Tags     map[string]struct{}
	Verbose  bool
}

// NewOSMSegmentSource prepares source for given file. Empty tags list enables
// default pedestrian whitelist.
func NewOSMSegmentSource(fileName string, tags []string, verbose bool) *OSMSegmentSource {
	tagsSet := walkableHighwayTags
	if len(tags) != 0 {
		tagsSet = make(map[string]struct{}, len(tags))
		for _, tag := range tags {
			tagsSet[tag] = struct{}{}
		}
	}
	return &OSMSegmentSource{
		FileName: fileName,
		Tags:     tagsSet,
		Verbose:  verbose,
	}
}

func (src *OSMSegmentSource) newScanner(file *os.File) (OSMScanner, error) {
	ext := filepath.Ext(src.FileName)
	switch ext {
	case ".osm", ".xml":
		return osmxml.New(context.Background(), file), nil
	case ".pbf":
		return osmpbf.New(context.Background(), file, 4), nil
	}
	return nil, fmt.Errorf("File extension '%s' for file '%s' is not handled yet", ext, src.FileName)
}

// Segments implements SegmentSource: scans ways first, then nodes (second pass
// over the same file), splits ways at intersection nodes and filters resulting
// segments by bounding box
func (src *OSMSegmentSource) Segments(bbox BBox) ([]Segment, error) {
	file, err := os.Open(src.FileName)
	if err != nil {
		return nil, errors.Wrap(err, "File open")
	}
	defer file.Close()

	if src.Verbose {
		fmt.Printf("Scanning ways...")
	}
	st := time.Now()
	scannerWays, err := src.newScanner(file)
	if err != nil {
		return nil, err
	}
	defer scannerWays.Close()

	ways := []osmWayData{}
	nodes := make(map[osm.NodeID]*osmNodeData)
	for scannerWays.Scan() {
		obj := scannerWays.Object()
		if obj.ObjectID().Type() != "way" {
			continue
		}
		way := obj.(*osm.Way)
		highway := way.Tags.Find("highway")
		if highway == "" {
			continue
		}
		if _, ok := src.Tags[highway]; !ok {
			continue
		}
		preparedWay := osmWayData{
			id:    way.ID,
			name:  way.Tags.Find("name"),
			nodes: make([]osm.NodeID, 0, len(way.Nodes)),
		}
		for _, wayNode := range way.Nodes {
			preparedWay.nodes = append(preparedWay.nodes, wayNode.ID)
			nodes[wayNode.ID] = nil
		}
		ways = append(ways, preparedWay)
	}
	if scannerWays.Err() != nil {
		return nil, errors.Wrap(scannerWays.Err(), "Scanner error on Ways")
	}
	if src.Verbose {
		fmt.Printf("Done in %v\n\tWays: %d\n", time.Since(st), len(ways))
	}

	// Seek file to start for the second pass
	_, err = file.Seek(0, io.SeekStart)
	if err != nil {
		return nil, errors.Wrap(err, "Can't repeat seeking")
	}
	if src.Verbose {
		fmt.Printf("Scanning nodes...")
	}
	st = time.Now()
	scannerNodes, err := src.newScanner(file)
	if err != nil {
		return nil, err
	}
	defer scannerNodes.Close()
	nodesFound := 0
	for scannerNodes.Scan() {
		obj := scannerNodes.Object()
		if obj.ObjectID().Type() != "node" {
			continue
		}
		node := obj.(*osm.Node)
		if _, ok := nodes[node.ID]; ok {
			nodes[node.ID] = &osmNodeData{lat: node.Lat, lon: node.Lon}
			nodesFound++
		}
	}
	if scannerNodes.Err() != nil {
		return nil, errors.Wrap(scannerNodes.Err(), "Scanner error on Nodes")
	}
	if src.Verbose {
		fmt.Printf("Done in %v\n\tNodes: %d\n", time.Since(st), nodesFound)
	}

	// Count node use cases: way endpoints count twice so they always become
	// segment boundaries, inner nodes shared by several ways become
	// intersections
	for _, way := range ways {
		for i, nodeID := range way.nodes {
			node := nodes[nodeID]
			if node == nil {
				continue
			}
			if i == 0 || i == len(way.nodes)-1 {
				node.useCount += 2
			} else {
				node.useCount++
			}
		}
	}

	if src.Verbose {
		fmt.Printf("Preparing segments...")
	}
	st = time.Now()
	segments := []Segment{}
	for _, way := range ways {
		geometry := []GeoPoint{}
		broken := false
		for i, nodeID := range way.nodes {
			node := nodes[nodeID]
			if node == nil {
				// Way crosses the extract boundary, node coordinates are unknown
				broken = true
				break
			}
			pt := GeoPoint{Lat: node.lat, Lon: node.lon}
			geometry = append(geometry, pt)
			if i > 0 && node.useCount > 1 {
				if lineBBox(geometry).Intersects(bbox) {
					segments = append(segments, Segment{Geom: copyLine(geometry), StreetName: way.name})
				}
				geometry = []GeoPoint{pt}
			}
		}
		if broken && src.Verbose {
			fmt.Printf("[WARNING]: Way '%d' has nodes outside of the extract, skipping its tail\n", way.id)
		}
	}
	if src.Verbose {
		fmt.Printf("Done in %v\n\tSegments: %d\n", time.Since(st), len(segments))
	}
	return segments, nil
}
