package motion

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestGuardWorldState(t *testing.T) {
	ws, err := guardWorldState("world", r3.Vector{X: 450, Z: 120}, r3.Vector{X: 100, Y: 100, Z: 100})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ws, test.ShouldNotBeNil)

	names := ws.ObstacleNames()
	test.That(t, names[GuardBoxLabel], test.ShouldBeTrue)
}

func TestGuardWorldState_BadDims(t *testing.T) {
	_, err := guardWorldState("world", r3.Vector{}, r3.Vector{X: -10, Y: 100, Z: 100})
	test.That(t, err, test.ShouldNotBeNil)
}
