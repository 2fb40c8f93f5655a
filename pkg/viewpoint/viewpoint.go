// Package viewpoint turns hemisphere parameters into an ordered sequence of
// posed camera viewpoints for the arm to visit.
package viewpoint

import (
	"fmt"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"

	"github.com/tracelab/hemiscan/pkg/icosphere"
)

// Viewpoint is a position on the hemisphere plus the orientation that aims
// the sensor at the hemisphere center. Immutable once generated.
type Viewpoint struct {
	Index    int
	Position r3.Vector
	Pose     spatialmath.Pose
}

// Params describes the hemisphere to sample. Distances are in millimeters.
type Params struct {
	RadiusMM     float64
	Center       r3.Vector
	Level        int
	Axis         r3.Vector
	MinElevation float64
}

// Generate builds the viewpoint sequence: subdivide an icosahedron to the
// requested level, keep the hemisphere facing along Axis, place the samples
// at RadiusMM around Center, and aim each pose back at Center.
func Generate(p Params) ([]Viewpoint, error) {
	if p.RadiusMM <= 0 {
		return nil, fmt.Errorf("radius must be positive, got %v", p.RadiusMM)
	}

	mesh, err := icosphere.Sphere(p.Level)
	if err != nil {
		return nil, err
	}

	unit, err := mesh.HemisphereVertices(p.Axis, p.MinElevation)
	if err != nil {
		return nil, err
	}
	if len(unit) == 0 {
		return nil, fmt.Errorf("hemisphere filter kept no samples (axis %v, min elevation %v)",
			p.Axis, p.MinElevation)
	}

	positions := icosphere.Place(unit, p.RadiusMM, p.Center)

	vps := make([]Viewpoint, len(positions))
	for i, pos := range positions {
		vps[i] = Viewpoint{
			Index:    i,
			Position: pos,
			Pose:     spatialmath.NewPose(pos, aimAt(pos, p.Center)),
		}
	}
	return vps, nil
}

// aimAt returns the orientation whose pointing axis runs from pos toward
// center, with no roll about it.
func aimAt(pos, center r3.Vector) spatialmath.Orientation {
	d := center.Sub(pos).Normalize()
	return &spatialmath.OrientationVector{OX: d.X, OY: d.Y, OZ: d.Z, Theta: 0}
}
