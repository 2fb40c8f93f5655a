package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/test"

	"github.com/tracelab/hemiscan/pkg/config"
	"github.com/tracelab/hemiscan/pkg/viewpoint"
)

// fakeMover scripts per-index failures and controls the reported end pose.
// Test viewpoints encode their index in the pose's X coordinate.
type fakeMover struct {
	events   *[]string
	failures map[int]int // viewpoint index -> number of failing attempts
	offset   r3.Vector   // applied to the reported end position
	lastPose spatialmath.Pose
}

func (m *fakeMover) MoveTo(ctx context.Context, pose spatialmath.Pose) error {
	idx := int(math.Round(pose.Point().X / 50))
	*m.events = append(*m.events, fmt.Sprintf("move %d", idx))
	if n := m.failures[idx]; n > 0 {
		m.failures[idx] = n - 1
		return errors.New("planner rejected pose")
	}
	m.lastPose = pose
	return nil
}

func (m *fakeMover) EndPosition(ctx context.Context) (spatialmath.Pose, error) {
	if m.lastPose == nil {
		return nil, errors.New("no pose yet")
	}
	return spatialmath.NewPose(m.lastPose.Point().Add(m.offset), m.lastPose.Orientation()), nil
}

// fakeFeed records publish ordering alongside the mover's events.
type fakeFeed struct {
	events *[]string
}

func (f *fakeFeed) PublishTarget(vp viewpoint.Viewpoint) error {
	*f.events = append(*f.events, fmt.Sprintf("publish %d", vp.Index))
	return nil
}

func (f *fakeFeed) PublishSet(vps []viewpoint.Viewpoint) error {
	*f.events = append(*f.events, fmt.Sprintf("publish set %d", len(vps)))
	return nil
}

func (f *fakeFeed) Close() error { return nil }

func testViewpoints(n int) []viewpoint.Viewpoint {
	vps := make([]viewpoint.Viewpoint, n)
	for i := range vps {
		pos := r3.Vector{X: float64(i) * 50, Y: 100, Z: 300}
		vps[i] = viewpoint.Viewpoint{
			Index:    i,
			Position: pos,
			Pose:     spatialmath.NewPose(pos, &spatialmath.OrientationVector{OZ: -1}),
		}
	}
	return vps
}

func testConfig() Config {
	return Config{
		OnFailure:               config.FailureSkip,
		PositionToleranceMM:     10,
		OrientationToleranceDeg: 5,
	}
}

func newTestDispatcher(t *testing.T, mover Mover, feed *fakeFeed, cfg Config) *Dispatcher {
	t.Helper()
	return New(mover, feed, logging.NewTestLogger(t), cfg)
}

func TestRun_AllReached(t *testing.T) {
	var events []string
	mover := &fakeMover{events: &events, failures: map[int]int{}}
	feed := &fakeFeed{events: &events}

	d := newTestDispatcher(t, mover, feed, testConfig())
	report, err := d.Run(context.Background(), testViewpoints(3))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(report.Rows), test.ShouldEqual, 3)
	test.That(t, report.Reached(), test.ShouldEqual, 3)

	// Set first, then publish-before-move for every viewpoint.
	test.That(t, events, test.ShouldResemble, []string{
		"publish set 3",
		"publish 0", "move 0",
		"publish 1", "move 1",
		"publish 2", "move 2",
	})
}

func TestRun_SkipPolicy(t *testing.T) {
	var events []string
	// Viewpoint 1 always fails.
	mover := &fakeMover{events: &events, failures: map[int]int{1: 100}}
	feed := &fakeFeed{events: &events}

	d := newTestDispatcher(t, mover, feed, testConfig())
	report, err := d.Run(context.Background(), testViewpoints(3))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(report.Rows), test.ShouldEqual, 3)
	test.That(t, report.Reached(), test.ShouldEqual, 2)
	test.That(t, report.Rows[1].Reached, test.ShouldBeFalse)
	test.That(t, report.Rows[1].Error, test.ShouldContainSubstring, "planner rejected")
	test.That(t, report.Rows[1].DeltaDMM, test.ShouldEqual, -1)
}

func TestRun_AbortPolicy(t *testing.T) {
	var events []string
	mover := &fakeMover{events: &events, failures: map[int]int{1: 100}}
	feed := &fakeFeed{events: &events}

	cfg := testConfig()
	cfg.OnFailure = config.FailureAbort
	d := newTestDispatcher(t, mover, feed, cfg)
	report, err := d.Run(context.Background(), testViewpoints(4))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "viewpoint 1")
	// Viewpoints 2 and 3 were never attempted.
	test.That(t, len(report.Rows), test.ShouldEqual, 2)
}

func TestRun_RetryBudget(t *testing.T) {
	var events []string
	// Two failures, then success.
	mover := &fakeMover{events: &events, failures: map[int]int{0: 2}}
	feed := &fakeFeed{events: &events}

	cfg := testConfig()
	cfg.Retries = 2
	d := newTestDispatcher(t, mover, feed, cfg)
	report, err := d.Run(context.Background(), testViewpoints(1))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, report.Reached(), test.ShouldEqual, 1)
	test.That(t, report.Rows[0].Attempts, test.ShouldEqual, 3)
}

func TestRun_RetryBudgetExhausted(t *testing.T) {
	var events []string
	mover := &fakeMover{events: &events, failures: map[int]int{0: 3}}
	feed := &fakeFeed{events: &events}

	cfg := testConfig()
	cfg.Retries = 1
	d := newTestDispatcher(t, mover, feed, cfg)
	report, err := d.Run(context.Background(), testViewpoints(1))
	test.That(t, err, test.ShouldBeNil) // skip policy swallows the failure
	test.That(t, report.Reached(), test.ShouldEqual, 0)
	test.That(t, report.Rows[0].Attempts, test.ShouldEqual, 2)
}

func TestRun_ToleranceMiss(t *testing.T) {
	var events []string
	// Arm settles 25mm away from every target, beyond the 10mm tolerance.
	mover := &fakeMover{events: &events, failures: map[int]int{}, offset: r3.Vector{X: 25}}
	feed := &fakeFeed{events: &events}

	d := newTestDispatcher(t, mover, feed, testConfig())
	report, err := d.Run(context.Background(), testViewpoints(2))
	// Out-of-tolerance is recorded, not treated as a motion failure.
	test.That(t, err, test.ShouldBeNil)
	test.That(t, report.Reached(), test.ShouldEqual, 0)
	test.That(t, len(report.Rows), test.ShouldEqual, 2)
	test.That(t, report.Rows[0].DeltaDMM, test.ShouldAlmostEqual, 25, 1e-3)
	test.That(t, report.Rows[0].Error, test.ShouldContainSubstring, "tolerance")
}

func TestRun_EmptySet(t *testing.T) {
	var events []string
	mover := &fakeMover{events: &events, failures: map[int]int{}}
	feed := &fakeFeed{events: &events}

	d := newTestDispatcher(t, mover, feed, testConfig())
	_, err := d.Run(context.Background(), nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRun_FinalState(t *testing.T) {
	var events []string
	mover := &fakeMover{events: &events, failures: map[int]int{}}
	feed := &fakeFeed{events: &events}

	d := newTestDispatcher(t, mover, feed, testConfig())
	_, err := d.Run(context.Background(), testViewpoints(2))
	test.That(t, err, test.ShouldBeNil)

	// Drain to the most recent state; it must be the Done marker.
	var last State
	for {
		select {
		case s := <-d.States():
			last = s
			continue
		default:
		}
		break
	}
	test.That(t, last.Done, test.ShouldBeTrue)
	test.That(t, last.Reached, test.ShouldEqual, 2)
	test.That(t, last.Total, test.ShouldEqual, 2)
}

func TestRun_ContextCancelled(t *testing.T) {
	var events []string
	mover := &fakeMover{events: &events, failures: map[int]int{}}
	feed := &fakeFeed{events: &events}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testConfig()
	cfg.SettleDelay = time.Millisecond
	d := newTestDispatcher(t, mover, feed, cfg)
	_, err := d.Run(ctx, testViewpoints(2))
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

func TestAllClose(t *testing.T) {
	base := spatialmath.NewPose(r3.Vector{X: 100}, &spatialmath.OrientationVector{OZ: -1})

	ok, d, phi := allClose(base, base, 10, 5)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, d, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, phi, test.ShouldAlmostEqual, 0, 1e-6)

	shifted := spatialmath.NewPose(r3.Vector{X: 103}, &spatialmath.OrientationVector{OZ: -1})
	ok, d, _ = allClose(base, shifted, 10, 5)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, d, test.ShouldAlmostEqual, 3, 1e-9)

	far := spatialmath.NewPose(r3.Vector{X: 150}, &spatialmath.OrientationVector{OZ: -1})
	ok, d, _ = allClose(base, far, 10, 5)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, d, test.ShouldAlmostEqual, 50, 1e-9)

	// Rotate the goal orientation 10 degrees about X: out of the 5 degree band.
	twist := spatialmath.NewPoseFromOrientation(&spatialmath.R4AA{Theta: 10 * math.Pi / 180, RX: 1})
	twisted := spatialmath.Compose(base, twist)
	ok, _, phi = allClose(base, twisted, 10, 5)
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, phi, test.ShouldAlmostEqual, 10, 1e-6)
}
