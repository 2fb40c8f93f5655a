// Package icosphere generates near-uniform sphere samplings by subdividing
// a regular icosahedron.
package icosphere

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// Mesh is a triangle mesh on the unit sphere: unique vertices plus faces as
// index triples into the vertex slice.
type Mesh struct {
	Vertices []r3.Vector
	Faces    [][3]int
}

// Icosahedron returns the regular icosahedron (12 vertices, 20 faces)
// with all vertices normalized onto the unit sphere.
func Icosahedron() Mesh {
	p := (1 + math.Sqrt(5)) / 2

	verts := []r3.Vector{
		{X: -1, Y: p, Z: 0},
		{X: 1, Y: p, Z: 0},
		{X: -1, Y: -p, Z: 0},
		{X: 1, Y: -p, Z: 0},
		{X: 0, Y: -1, Z: p},
		{X: 0, Y: 1, Z: p},
		{X: 0, Y: -1, Z: -p},
		{X: 0, Y: 1, Z: -p},
		{X: p, Y: 0, Z: -1},
		{X: p, Y: 0, Z: 1},
		{X: -p, Y: 0, Z: -1},
		{X: -p, Y: 0, Z: 1},
	}
	for i, v := range verts {
		verts[i] = v.Normalize()
	}

	faces := [][3]int{
		{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
		{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
		{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
		{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
	}

	return Mesh{Vertices: verts, Faces: faces}
}

// Sphere returns an icosphere subdivided level times. Level 0 is the raw
// icosahedron.
func Sphere(level int) (Mesh, error) {
	if level < 0 {
		return Mesh{}, fmt.Errorf("subdivision level must be >= 0, got %d", level)
	}
	m := Icosahedron()
	for i := 0; i < level; i++ {
		m = m.Subdivide()
	}
	return m, nil
}

// Subdivide splits every face into four by inserting the midpoint of each
// edge, projected back onto the unit sphere. Midpoints are shared between
// adjacent faces, so each unique edge contributes exactly one new vertex.
func (m Mesh) Subdivide() Mesh {
	out := Mesh{
		Vertices: append([]r3.Vector(nil), m.Vertices...),
		Faces:    make([][3]int, 0, 4*len(m.Faces)),
	}
	midpoints := make(map[[2]int]int)

	midpoint := func(a, b int) int {
		key := [2]int{a, b}
		if b < a {
			key = [2]int{b, a}
		}
		if idx, ok := midpoints[key]; ok {
			return idx
		}
		mid := out.Vertices[a].Add(out.Vertices[b]).Mul(0.5).Normalize()
		out.Vertices = append(out.Vertices, mid)
		idx := len(out.Vertices) - 1
		midpoints[key] = idx
		return idx
	}

	for _, f := range m.Faces {
		a, b, c := f[0], f[1], f[2]
		ab := midpoint(a, b)
		bc := midpoint(b, c)
		ca := midpoint(c, a)
		out.Faces = append(out.Faces,
			[3]int{a, ab, ca},
			[3]int{b, bc, ab},
			[3]int{c, ca, bc},
			[3]int{ab, bc, ca},
		)
	}

	return out
}

// HemisphereVertices returns the mesh vertices whose projection onto axis is
// at least minElevation, preserving vertex order. Axis is normalized first;
// a zero axis is a degenerate hemisphere and an error.
func (m Mesh) HemisphereVertices(axis r3.Vector, minElevation float64) ([]r3.Vector, error) {
	if axis.Norm() == 0 {
		return nil, fmt.Errorf("degenerate hemisphere: zero normal axis")
	}
	n := axis.Normalize()

	var kept []r3.Vector
	for _, v := range m.Vertices {
		if v.Dot(n) >= minElevation {
			kept = append(kept, v)
		}
	}
	return kept, nil
}

// Place scales unit-sphere points by radius and translates them by center,
// preserving order.
func Place(points []r3.Vector, radius float64, center r3.Vector) []r3.Vector {
	placed := make([]r3.Vector, len(points))
	for i, p := range points {
		placed[i] = p.Mul(radius).Add(center)
	}
	return placed
}
