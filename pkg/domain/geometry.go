package domain

import (
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// GeometryType identifies the shape of a Geometry value.
type GeometryType string

// Supported GeoJSON geometry types.
const (
	GeometryPoint      GeometryType = "Point"
	GeometryLineString GeometryType = "LineString"
	GeometryPolygon    GeometryType = "Polygon"
)

// Position is a single longitude/latitude coordinate pair, GeoJSON order.
type Position [2]float64

// Lng returns the longitude component.
func (p Position) Lng() float64 { return p[0] }

// Lat returns the latitude component.
func (p Position) Lat() float64 { return p[1] }

// Geometry is a closed tagged variant over Point, LineString, and Polygon.
// Coordinate arity is validated at construction, so a non-zero Geometry is
// always well-formed for its declared type. It serialises to the GeoJSON
// shape {"type": ..., "coordinates": ...} in both JSON and BSON, which is
// what the file snapshots store and what MongoDB 2dsphere indexes expect.
type Geometry struct {
	typ   GeometryType
	point Position
	line  []Position
	rings [][]Position
}

// NewPoint returns a point geometry.
func NewPoint(lng, lat float64) Geometry {
	return Geometry{typ: GeometryPoint, point: Position{lng, lat}}
}

// NewLineString returns a line geometry. At least two positions are required.
func NewLineString(points []Position) (Geometry, error) {
	if len(points) < 2 {
		return Geometry{}, &ValidationError{Field: "coordinates", Reason: "line string requires at least 2 positions"}
	}
	return Geometry{typ: GeometryLineString, line: clonePositions(points)}, nil
}

// NewPolygon returns a polygon geometry. Every ring must be a closed loop of
// at least four positions (first equals last).
func NewPolygon(rings [][]Position) (Geometry, error) {
	if len(rings) == 0 {
		return Geometry{}, &ValidationError{Field: "coordinates", Reason: "polygon requires at least one ring"}
	}
	for i, ring := range rings {
		if len(ring) < 4 {
			return Geometry{}, &ValidationError{Field: "coordinates", Reason: fmt.Sprintf("polygon ring %d requires at least 4 positions", i)}
		}
		if ring[0] != ring[len(ring)-1] {
			return Geometry{}, &ValidationError{Field: "coordinates", Reason: fmt.Sprintf("polygon ring %d is not closed", i)}
		}
	}
	return Geometry{typ: GeometryPolygon, rings: cloneRings(rings)}, nil
}

// Type returns the geometry type, or the empty string for the zero value.
func (g Geometry) Type() GeometryType { return g.typ }

// IsZero reports whether the geometry is the zero value.
func (g Geometry) IsZero() bool { return g.typ == "" }

// Point returns the coordinate of a point geometry.
func (g Geometry) Point() (Position, bool) {
	if g.typ != GeometryPoint {
		return Position{}, false
	}
	return g.point, true
}

// LineString returns a copy of the line coordinates.
func (g Geometry) LineString() ([]Position, bool) {
	if g.typ != GeometryLineString {
		return nil, false
	}
	return clonePositions(g.line), true
}

// Polygon returns a copy of the polygon rings.
func (g Geometry) Polygon() ([][]Position, bool) {
	if g.typ != GeometryPolygon {
		return nil, false
	}
	return cloneRings(g.rings), true
}

// Positions returns every coordinate of the geometry in declaration order.
func (g Geometry) Positions() []Position {
	switch g.typ {
	case GeometryPoint:
		return []Position{g.point}
	case GeometryLineString:
		return clonePositions(g.line)
	case GeometryPolygon:
		var out []Position
		for _, ring := range g.rings {
			out = append(out, ring...)
		}
		return out
	default:
		return nil
	}
}

// Clone returns a deep copy.
func (g Geometry) Clone() Geometry {
	cp := g
	cp.line = clonePositions(g.line)
	cp.rings = cloneRings(g.rings)
	return cp
}

func (g Geometry) coordinates() any {
	switch g.typ {
	case GeometryPoint:
		return g.point
	case GeometryLineString:
		return g.line
	case GeometryPolygon:
		return g.rings
	default:
		return nil
	}
}

// geoJSON is the wire shape shared by the JSON and BSON codecs.
type geoJSON struct {
	Type        GeometryType `json:"type" bson:"type"`
	Coordinates any          `json:"coordinates" bson:"coordinates"`
}

// MarshalJSON encodes the geometry as a GeoJSON object.
func (g Geometry) MarshalJSON() ([]byte, error) {
	if g.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(geoJSON{Type: g.typ, Coordinates: g.coordinates()})
}

// UnmarshalJSON decodes a GeoJSON object, enforcing coordinate arity.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	var aux struct {
		Type        GeometryType    `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Type == "" && aux.Coordinates == nil {
		*g = Geometry{}
		return nil
	}
	switch aux.Type {
	case GeometryPoint:
		var raw []float64
		if err := json.Unmarshal(aux.Coordinates, &raw); err != nil {
			return fmt.Errorf("decode point coordinates: %w", err)
		}
		p, err := toPosition(raw)
		if err != nil {
			return err
		}
		*g = NewPoint(p.Lng(), p.Lat())
		return nil
	case GeometryLineString:
		var raw [][]float64
		if err := json.Unmarshal(aux.Coordinates, &raw); err != nil {
			return fmt.Errorf("decode line coordinates: %w", err)
		}
		line, err := toPositions(raw)
		if err != nil {
			return err
		}
		geom, err := NewLineString(line)
		if err != nil {
			return err
		}
		*g = geom
		return nil
	case GeometryPolygon:
		var raw [][][]float64
		if err := json.Unmarshal(aux.Coordinates, &raw); err != nil {
			return fmt.Errorf("decode polygon coordinates: %w", err)
		}
		rings, err := toRings(raw)
		if err != nil {
			return err
		}
		geom, err := NewPolygon(rings)
		if err != nil {
			return err
		}
		*g = geom
		return nil
	default:
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unsupported geometry type %q", aux.Type)}
	}
}

// MarshalBSONValue encodes the geometry as a GeoJSON document so geospatial
// indexes operate on it natively.
func (g Geometry) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if g.IsZero() {
		return bson.MarshalValue(nil)
	}
	return bson.MarshalValue(geoJSON{Type: g.typ, Coordinates: g.coordinates()})
}

// UnmarshalBSONValue decodes a GeoJSON document, enforcing coordinate arity.
func (g *Geometry) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	if t == bsontype.Null || t == bsontype.Undefined {
		*g = Geometry{}
		return nil
	}
	if t != bsontype.EmbeddedDocument {
		return fmt.Errorf("geometry: unexpected bson type %s", t)
	}
	raw := bson.Raw(data)
	typVal, err := raw.LookupErr("type")
	if err != nil {
		return fmt.Errorf("geometry: missing type: %w", err)
	}
	typ, ok := typVal.StringValueOK()
	if !ok {
		return fmt.Errorf("geometry: type is not a string")
	}
	coords, err := raw.LookupErr("coordinates")
	if err != nil {
		return fmt.Errorf("geometry: missing coordinates: %w", err)
	}
	switch GeometryType(typ) {
	case GeometryPoint:
		var raw []float64
		if err := coords.Unmarshal(&raw); err != nil {
			return fmt.Errorf("decode point coordinates: %w", err)
		}
		p, err := toPosition(raw)
		if err != nil {
			return err
		}
		*g = NewPoint(p.Lng(), p.Lat())
		return nil
	case GeometryLineString:
		var raw [][]float64
		if err := coords.Unmarshal(&raw); err != nil {
			return fmt.Errorf("decode line coordinates: %w", err)
		}
		line, err := toPositions(raw)
		if err != nil {
			return err
		}
		geom, err := NewLineString(line)
		if err != nil {
			return err
		}
		*g = geom
		return nil
	case GeometryPolygon:
		var raw [][][]float64
		if err := coords.Unmarshal(&raw); err != nil {
			return fmt.Errorf("decode polygon coordinates: %w", err)
		}
		rings, err := toRings(raw)
		if err != nil {
			return err
		}
		geom, err := NewPolygon(rings)
		if err != nil {
			return err
		}
		*g = geom
		return nil
	default:
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unsupported geometry type %q", typ)}
	}
}

// toPosition converts a raw coordinate array, rejecting any arity other than
// [lng, lat]. Decoding through []float64 (never [2]float64 directly) keeps
// short or overlong arrays from being silently padded or truncated.
func toPosition(raw []float64) (Position, error) {
	if len(raw) != 2 {
		return Position{}, &ValidationError{Field: "coordinates", Reason: "position requires exactly 2 values"}
	}
	return Position{raw[0], raw[1]}, nil
}

func toPositions(raw [][]float64) ([]Position, error) {
	out := make([]Position, len(raw))
	for i, r := range raw {
		p, err := toPosition(r)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

func toRings(raw [][][]float64) ([][]Position, error) {
	out := make([][]Position, len(raw))
	for i, ring := range raw {
		ps, err := toPositions(ring)
		if err != nil {
			return nil, err
		}
		out[i] = ps
	}
	return out, nil
}

func clonePositions(in []Position) []Position {
	if in == nil {
		return nil
	}
	return append([]Position(nil), in...)
}

func cloneRings(in [][]Position) [][]Position {
	if in == nil {
		return nil
	}
	out := make([][]Position, len(in))
	for i, ring := range in {
		out[i] = append([]Position(nil), ring...)
	}
	return out
}
