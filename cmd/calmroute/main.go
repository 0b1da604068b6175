package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/LdDl/ch"
	"github.com/avshapoval/calmroute"
	"github.com/pkg/errors"
)

var (
	mapFileName = flag.String("file", "my_map.osm.pbf", "Filename of street map. Supported extensions: .osm.pbf / .osm / .xml (OSM data) and .geojson (LineString feature collection)")
	tagStr      = flag.String("tags", "", "Set of needed OSM `highway` tags separated by commas. Empty value enables built-in pedestrian set")

	noiseFileName   = flag.String("noise", "", "Filename of GeoJSON file with noise polygons")
	crowdFileName   = flag.String("crowd", "", "Filename of GeoJSON file with crowd polygons")
	lightFileName   = flag.String("light", "", "Filename of GeoJSON file with light polygons")
	puddlesFileName = flag.String("puddles", "", "Filename of GeoJSON file with puddles polygons")

	synthetic      = flag.Bool("synthetic", false, "Generate synthetic layer polygons as fallback for layers without files")
	syntheticCount = flag.Int("synthetic-count", 30, "Count of synthetic polygons per layer query")
	syntheticSeed  = flag.Int64("synthetic-seed", 42, "Seed of synthetic layer generator")
	centerStr      = flag.String("center", "55.7558,37.6173", "City center as 'lat,lon' (synthetic metric heuristics depend on it)")

	startStr = flag.String("start", "", "Start point as 'lat,lon'")
	endStr   = flag.String("end", "", "End point as 'lat,lon'")
	bboxStr  = flag.String("bbox", "", "Bounding box as 'minLat,minLon,maxLat,maxLon'")

	noiseWeight   = flag.Float64("wnoise", 1.0, "Weight of noise layer. Zero ignores the layer")
	crowdWeight   = flag.Float64("wcrowd", 1.0, "Weight of crowd layer. Zero ignores the layer")
	lightWeight   = flag.Float64("wlight", 0.5, "Weight of light layer (light is a bonus). Zero ignores the layer")
	puddlesWeight = flag.Float64("wpuddles", 0.0, "Weight of puddles layer. Zero ignores the layer")

	geomFormat = flag.String("geomf", "geojson", "Format of output geometry. Expected values: wkt / geojson")

	exportFileName = flag.String("export", "", "Filename of 'Comma-Separated Values' (CSV) formatted file for graph export. E.g.: if file name is 'map.csv' then files 'map.csv' (edges), 'map_vertices.csv' and 'map_shortcuts.csv' will be produced. Empty value disables export and runs route search instead")
	doContraction  = flag.Bool("contract", true, "Prepare contraction hierarchies on export?")

	verbose = flag.Bool("verbose", true, "Print progress")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func run() error {
	bbox, err := parseBBox(*bboxStr)
	if err != nil {
		return err
	}
	segments, err := prepareSegmentSource()
	if err != nil {
		return err
	}
	layers, err := prepareLayerSource()
	if err != nil {
		return err
	}
	weights := calmroute.RouteWeights{
		calmroute.LayerNoise:   *noiseWeight,
		calmroute.LayerCrowd:   *crowdWeight,
		calmroute.LayerLight:   *lightWeight,
		calmroute.LayerPuddles: *puddlesWeight,
	}

	if *exportFileName != "" {
		return exportGraph(segments, layers, bbox, weights)
	}

	start, err := parsePoint(*startStr)
	if err != nil {
		return errors.Wrap(err, "Can't parse start point")
	}
	end, err := parsePoint(*endStr)
	if err != nil {
		return errors.Wrap(err, "Can't parse end point")
	}

	engine := calmroute.NewEngine(segments, layers, calmroute.WithVerbose(*verbose))
	st := time.Now()
	result, err := engine.ComputeCalmRoute(context.Background(), calmroute.Request{
		Start:   start,
		End:     end,
		BBox:    bbox,
		Weights: weights,
	})
	if err != nil {
		return err
	}
	if *verbose {
		fmt.Printf("Done in %v\n", time.Since(st))
	}

	fmt.Printf("Distance: %.1f meters\n", result.DistanceMeters)
	fmt.Printf("Cost: %.1f\n", result.Cost)
	for layer, average := range result.Averages {
		fmt.Printf("Average '%s': %.2f\n", layer, average)
	}
	if strings.ToLower(*geomFormat) == "wkt" {
		fmt.Println(calmroute.PrepareWKTLinestring(result.Path))
		return nil
	}
	geomStr, err := calmroute.RouteToGeoJSON(result)
	if err != nil {
		return errors.Wrap(err, "Can't convert route to GeoJSON")
	}
	fmt.Println(geomStr)
	return nil
}

func prepareSegmentSource() (calmroute.SegmentSource, error) {
	ext := filepath.Ext(*mapFileName)
	switch ext {
	case ".geojson", ".json":
		return calmroute.LoadSegmentsGeoJSON(*mapFileName)
	case ".pbf", ".osm", ".xml":
		tags := []string{}
		if *tagStr != "" {
			tags = strings.Split(*tagStr, ",")
		}
		return calmroute.NewOSMSegmentSource(*mapFileName, tags, *verbose), nil
	}
	return nil, fmt.Errorf("File extension '%s' for file '%s' is not handled yet", ext, *mapFileName)
}

func prepareLayerSource() (calmroute.LayerSource, error) {
	layerFiles := map[calmroute.LayerType]string{
		calmroute.LayerNoise:   *noiseFileName,
		calmroute.LayerCrowd:   *crowdFileName,
		calmroute.LayerLight:   *lightFileName,
		calmroute.LayerPuddles: *puddlesFileName,
	}
	hasFiles := false
	for _, fileName := range layerFiles {
		if fileName != "" {
			hasFiles = true
			break
		}
	}
	var fromFiles calmroute.LayerSource
	if hasFiles {
		store, err := calmroute.LoadLayerStoreGeoJSON(layerFiles, *verbose)
		if err != nil {
			return nil, err
		}
		fromFiles = store
	}
	if !*synthetic {
		if fromFiles == nil {
			return nil, fmt.Errorf("no layer data: provide layer files or enable -synthetic")
		}
		return fromFiles, nil
	}
	center, err := parsePoint(*centerStr)
	if err != nil {
		return nil, errors.Wrap(err, "Can't parse city center")
	}
	generated := calmroute.NewSyntheticSource(center, *syntheticCount, *syntheticSeed)
	if fromFiles == nil {
		return generated, nil
	}
	// Measured polygons win, synthetic ones fill areas without data
	return calmroute.FallbackSource{Primary: fromFiles, Fallback: generated}, nil
}

// exportGraph dumps penalty-augmented graph as CSV triple compatible with
// contraction hierarchies tooling: edges, vertices and (optionally) shortcuts
func exportGraph(segments calmroute.SegmentSource, layers calmroute.LayerSource, bbox calmroute.BBox, weights calmroute.RouteWeights) error {
	graph, err := calmroute.BuildStreetGraph(segments, bbox, 150.0)
	if err != nil {
		return err
	}
	aggregator := calmroute.NewOverlayAggregator(layers, 0)
	if err := aggregator.Aggregate(graph, weights); err != nil {
		return err
	}

	fnamePart := strings.Split(*exportFileName, ".csv") // to guarantee proper filename and its extension
	fnameEdges := fmt.Sprintf(fnamePart[0] + ".csv")
	fnameVertices := fmt.Sprintf(fnamePart[0] + "_vertices.csv")
	fnameShortcuts := fmt.Sprintf(fnamePart[0] + "_shortcuts.csv")

	/* Edges file */
	fileEdges, err := os.Create(fnameEdges)
	if err != nil {
		return errors.Wrap(err, "Can't create edges file")
	}
	defer fileEdges.Close()
	writerEdges := csv.NewWriter(fileEdges)
	defer writerEdges.Flush()
	writerEdges.Comma = ';'
	// 		from_vertex_id - int64, ID of source vertex
	// 		to_vertex_id - int64, ID of target vertex
	// 		weight - float64, Weighted cost of an edge (meters scaled by layer penalties)
	//      length_meters - float64, Geodesic length of an edge
	//      geom - geometry (WKT or GeoJSON representation)
	//      edge_id - int64, ID of edge
	//      name - string, street name if known
	err = writerEdges.Write([]string{"from_vertex_id", "to_vertex_id", "weight", "length_meters", "geom", "edge_id", "name"})
	if err != nil {
		return errors.Wrap(err, "Can't write header")
	}

	chGraph := ch.Graph{}
	for i := 0; i < graph.NumEdges(); i++ {
		edge := graph.Edge(int64(i))
		err := chGraph.CreateVertex(edge.From)
		if err != nil {
			return errors.Wrap(err, "Can not create source vertex")
		}
		err = chGraph.CreateVertex(edge.To)
		if err != nil {
			return errors.Wrap(err, "Can not create target vertex")
		}
		cost := edge.Cost(weights)
		// Edges are undirected for traversal purposes
		err = chGraph.AddEdge(edge.From, edge.To, cost)
		if err != nil {
			return errors.Wrap(err, "Can not wrap Source and Target vertices as Edge")
		}
		err = chGraph.AddEdge(edge.To, edge.From, cost)
		if err != nil {
			return errors.Wrap(err, "Can not wrap Target and Source vertices as Edge")
		}

		geomStr := ""
		if strings.ToLower(*geomFormat) == "wkt" {
			geomStr = calmroute.PrepareWKTLinestring(edge.Geom)
		} else {
			geomStr = calmroute.PrepareGeoJSONLinestring(edge.Geom)
		}
		err = writerEdges.Write([]string{
			fmt.Sprintf("%d", edge.From),
			fmt.Sprintf("%d", edge.To),
			fmt.Sprintf("%f", cost),
			fmt.Sprintf("%f", edge.LengthMeters),
			geomStr,
			fmt.Sprintf("%d", edge.ID),
			edge.StreetName,
		})
		if err != nil {
			return errors.Wrap(err, "Can't write edge")
		}
	}

	if *doContraction {
		fmt.Println("Starting contraction process....")
		st := time.Now()
		chGraph.PrepareContractionHierarchies()
		fmt.Printf("Done contraction process in %v\n", time.Since(st))
	}

	/* Vertices file */
	fileVertices, err := os.Create(fnameVertices)
	if err != nil {
		return errors.Wrap(err, "Can't create vertices file")
	}
	defer fileVertices.Close()
	writerVertices := csv.NewWriter(fileVertices)
	defer writerVertices.Flush()
	writerVertices.Comma = ';'
	// 		vertex_id - int64, ID of vertex
	// 		order_pos - int, Position of vertex in hierarchies (evaluted by library)
	// 		importance - int, Importance of vertex in graph (evaluted by library)
	//      geom - geometry (WKT or GeoJSON representation)
	err = writerVertices.Write([]string{"vertex_id", "order_pos", "importance", "geom"})
	if err != nil {
		return errors.Wrap(err, "Can't write header")
	}
	vertices := chGraph.Vertices
	for i := 0; i < len(vertices); i++ {
		currentVertexExternal := vertices[i].Label
		vertexGeom := graph.Node(currentVertexExternal).Point
		geomStr := ""
		if strings.ToLower(*geomFormat) == "wkt" {
			geomStr = calmroute.PrepareWKTPoint(vertexGeom)
		} else {
			geomStr = calmroute.PrepareGeoJSONPoint(vertexGeom)
		}
		err = writerVertices.Write([]string{
			fmt.Sprintf("%d", currentVertexExternal),
			fmt.Sprintf("%d", vertices[i].OrderPos()),
			fmt.Sprintf("%d", vertices[i].Importance()),
			geomStr,
		})
		if err != nil {
			return errors.Wrap(err, "Can't write vertex")
		}
	}

	if *doContraction {
		/* Write shortcuts */
		// 	from_vertex_id - int64, ID of source vertex
		// 	to_vertex_id - int64, ID of target vertex
		// 	weight - float64, Weight of an edge
		// 	via_vertex_id - int64, ID of vertex through which the shortcut exists
		err = chGraph.ExportShortcutsToFile(fnameShortcuts)
		if err != nil {
			return errors.Wrap(err, "Can't export shortcuts")
		}
	}
	return nil
}

func parsePoint(value string) (calmroute.GeoPoint, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return calmroute.GeoPoint{}, fmt.Errorf("point should be 'lat,lon', got '%s'", value)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return calmroute.GeoPoint{}, err
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return calmroute.GeoPoint{}, err
	}
	return calmroute.GeoPoint{Lat: lat, Lon: lon}, nil
}

func parseBBox(value string) (calmroute.BBox, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 4 {
		return calmroute.BBox{}, fmt.Errorf("bounding box should be 'minLat,minLon,maxLat,maxLon', got '%s'", value)
	}
	values := make([]float64, 4)
	for i := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return calmroute.BBox{}, err
		}
		values[i] = v
	}
	return calmroute.NewBBox(values[0], values[1], values[2], values[3])
}
