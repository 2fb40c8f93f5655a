package viz

import (
	"bufio"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"

	"github.com/tracelab/hemiscan/pkg/viewpoint"
)

func testViewpoint(i int) viewpoint.Viewpoint {
	pos := r3.Vector{X: 100, Y: float64(i) * 10, Z: 250}
	return viewpoint.Viewpoint{
		Index:    i,
		Position: pos,
		Pose: spatialmath.NewPose(pos, &spatialmath.OrientationVector{
			OX: 0, OY: 0, OZ: -1, Theta: 0,
		}),
	}
}

func TestFeed_FileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.jsonl")
	feed, err := Open(path, "scan/target", "scan/set")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := feed.PublishSet([]viewpoint.Viewpoint{testViewpoint(0), testViewpoint(1)}); err != nil {
		t.Fatalf("PublishSet: %v", err)
	}
	if err := feed.PublishTarget(testViewpoint(1)); err != nil {
		t.Fatalf("PublishTarget: %v", err)
	}
	if err := feed.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)

	if !scanner.Scan() {
		t.Fatal("missing pose array line")
	}
	var set PoseArrayMessage
	if err := json.Unmarshal(scanner.Bytes(), &set); err != nil {
		t.Fatalf("parse set line: %v", err)
	}
	if set.Topic != "scan/set" {
		t.Errorf("set topic = %q, want scan/set", set.Topic)
	}
	if len(set.Poses) != 2 {
		t.Errorf("set poses = %d, want 2", len(set.Poses))
	}

	if !scanner.Scan() {
		t.Fatal("missing target line")
	}
	var target PoseMessage
	if err := json.Unmarshal(scanner.Bytes(), &target); err != nil {
		t.Fatalf("parse target line: %v", err)
	}
	if target.Topic != "scan/target" {
		t.Errorf("target topic = %q, want scan/target", target.Topic)
	}
	if target.Index != 1 {
		t.Errorf("target index = %d, want 1", target.Index)
	}
	if target.Pose.Y != 10 {
		t.Errorf("target pose y = %v, want 10", target.Pose.Y)
	}

	if scanner.Scan() {
		t.Error("unexpected extra line in feed")
	}
}

func TestFeed_Discard(t *testing.T) {
	feed, err := Open("", "a", "b")
	if err != nil {
		t.Fatal(err)
	}
	if err := feed.PublishTarget(testViewpoint(0)); err != nil {
		t.Errorf("discard publish should not fail: %v", err)
	}
	if err := feed.Close(); err != nil {
		t.Errorf("discard close should not fail: %v", err)
	}
}

func TestFromPose(t *testing.T) {
	vp := testViewpoint(3)
	wire := FromPose(vp.Pose)
	if wire.X != 100 || wire.Y != 30 || wire.Z != 250 {
		t.Errorf("position = (%v, %v, %v)", wire.X, wire.Y, wire.Z)
	}
	if math.Abs(wire.OZ-(-1)) > 1e-9 {
		t.Errorf("oz = %v, want -1", wire.OZ)
	}
}
