// Package collision reads collision geometry files.
//
// A file holds either a single layer (first byte 0x20) or a container
// (first byte 0x80) listing the absolute offsets of its layers. SAT and EAT
// files share this layout; they differ only in how the game interprets it.
package collision

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goopsie/fixTools/internal/stream"
	"github.com/goopsie/fixTools/pkg/fix"
)

const (
	// ContainerMagic is the first byte of a multi-layer file.
	ContainerMagic = 0x80
	// LayerMagic is the 16-bit header of a layer record.
	LayerMagic = 0x20
)

// ErrUnknownHeader is returned when a layer does not start with LayerMagic.
var ErrUnknownHeader = errors.New("unknown header")

// Vec3 is a float triplet.
type Vec3 [3]float32

// FaceType tells which list a face belongs to.
type FaceType uint8

const (
	FaceFloor FaceType = iota
	FaceCeiling
	FaceWall
)

// String returns the face type name.
func (t FaceType) String() string {
	switch t {
	case FaceFloor:
		return "Floor"
	case FaceCeiling:
		return "Ceiling"
	case FaceWall:
		return "Wall"
	default:
		return fmt.Sprintf("FaceType(%d)", uint8(t))
	}
}

// Face is a triangle of a layer. Indices refer to the layer's tables.
type Face struct {
	Vertices [3]uint16 // Coordinates indices
	Normal   uint16    // Normals index
	Edges    [3]uint16 // Edges indices
	_        [2]byte
	Meta     [4]byte
}

// LayerHeader holds the table sizes of a layer.
type LayerHeader struct {
	Magic        uint16
	Coordinates  uint16
	Normals      uint16
	Edges        uint16
	Unknown      uint16
	TotalFaces   uint16
	FloorFaces   uint16
	CeilingFaces uint16
	WallFaces    uint16
	FaceGroups   uint16 // Child face groups follow the faces; they are not decoded.
}

// Layer is one collision mesh.
type Layer struct {
	LayerHeader
	Coordinates []Vec3
	Normals     []Vec3
	Edges       []Vec3
	Floor       []Face
	Ceiling     []Face
	Walls       []Face
}

// Faces returns the faces of the given type.
func (l *Layer) Faces(t FaceType) []Face {
	switch t {
	case FaceFloor:
		return l.Floor
	case FaceCeiling:
		return l.Ceiling
	case FaceWall:
		return l.Walls
	default:
		return nil
	}
}

// Geometry is a parsed collision file.
type Geometry struct {
	Container bool     // Set for 0x80 files
	Unknown   uint16   // Container only
	Offsets   []uint32 // Container only: absolute layer offsets
	Layers    []Layer
}

// Read parses a collision file from r, positioned at the start of the file.
func Read(r io.ReadSeeker) (*Geometry, error) {
	magic, err := stream.ReadInt[uint8](r)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	if magic != ContainerMagic {
		if _, err := r.Seek(-1, io.SeekCurrent); err != nil {
			return nil, fmt.Errorf("rewind header: %w", err)
		}
		layer, err := ReadLayer(r)
		if err != nil {
			return nil, err
		}
		return &Geometry{Layers: []Layer{*layer}}, nil
	}

	g := &Geometry{Container: true}
	count, err := stream.ReadInt[uint8](r)
	if err != nil {
		return nil, fmt.Errorf("read layer count: %w", err)
	}
	if g.Unknown, err = stream.ReadInt[uint16](r); err != nil {
		return nil, fmt.Errorf("read container header: %w", err)
	}
	if g.Offsets, err = stream.ReadSlice[uint32](r, int(count)); err != nil {
		return nil, fmt.Errorf("read layer offsets: %w", err)
	}

	g.Layers = make([]Layer, 0, count)
	for i, off := range g.Offsets {
		if err := stream.SeekTo(r, int64(off)); err != nil {
			return nil, fmt.Errorf("seek layer %d to 0x%x: %w", i, off, err)
		}
		layer, err := ReadLayer(r)
		if err != nil {
			return nil, fmt.Errorf("layer %d: %w", i, err)
		}
		g.Layers = append(g.Layers, *layer)
	}

	return g, nil
}

// ReadLayer parses a single layer record at the current position of r.
func ReadLayer(r io.Reader) (*Layer, error) {
	header, err := stream.ReadValue[LayerHeader](r)
	if err != nil {
		return nil, fmt.Errorf("read layer header: %w", err)
	}
	if header.Magic != LayerMagic {
		return nil, fmt.Errorf("%w: 0x%x", ErrUnknownHeader, header.Magic)
	}

	l := &Layer{LayerHeader: header}
	if l.Coordinates, err = stream.ReadSlice[Vec3](r, int(header.Coordinates)); err != nil {
		return nil, fmt.Errorf("read coordinates: %w", err)
	}
	if l.Normals, err = stream.ReadSlice[Vec3](r, int(header.Normals)); err != nil {
		return nil, fmt.Errorf("read normals: %w", err)
	}
	if l.Edges, err = stream.ReadSlice[Vec3](r, int(header.Edges)); err != nil {
		return nil, fmt.Errorf("read edges: %w", err)
	}
	if l.Floor, err = stream.ReadSlice[Face](r, int(header.FloorFaces)); err != nil {
		return nil, fmt.Errorf("read floor faces: %w", err)
	}
	if l.Ceiling, err = stream.ReadSlice[Face](r, int(header.CeilingFaces)); err != nil {
		return nil, fmt.Errorf("read ceiling faces: %w", err)
	}
	if l.Walls, err = stream.ReadSlice[Face](r, int(header.WallFaces)); err != nil {
		return nil, fmt.Errorf("read wall faces: %w", err)
	}
	return l, nil
}

// ReadFile parses the collision file stored at path.
func ReadFile(path string) (*Geometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", fix.ErrNotFound, path)
		}
		return nil, fmt.Errorf("read geometry: %w", err)
	}

	g, err := Read(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return g, nil
}

// String returns a one-line summary of the layer.
func (l *Layer) String() string {
	return fmt.Sprintf("Layer: %d coordinates, %d normals, %d edges, faces floor=%d ceiling=%d wall=%d, %d groups",
		len(l.Coordinates), len(l.Normals), len(l.Edges),
		len(l.Floor), len(l.Ceiling), len(l.Walls), l.FaceGroups)
}
