// Package dispatch drives the arm through the generated viewpoint sequence,
// one blocking motion request at a time.
package dispatch

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"

	"github.com/tracelab/hemiscan/pkg/config"
	"github.com/tracelab/hemiscan/pkg/viewpoint"
	"github.com/tracelab/hemiscan/pkg/viz"
)

// Mover is the external motion interface. MoveTo blocks until the motion
// service has finished (or rejected) the request.
type Mover interface {
	MoveTo(ctx context.Context, pose spatialmath.Pose) error
	EndPosition(ctx context.Context) (spatialmath.Pose, error)
}

// State is a progress snapshot emitted after each viewpoint.
type State struct {
	Index     int
	Total     int
	Reached   int
	Failed    int
	DeltaDMM  float64
	DeltaPhi  float64 // degrees
	Err       error
	Done      bool
	Timestamp time.Time
}

// Config holds the run policy for a dispatcher.
type Config struct {
	OnFailure               config.FailurePolicy
	Retries                 int
	SettleDelay             time.Duration
	PositionToleranceMM     float64
	OrientationToleranceDeg float64
}

// Dispatcher visits viewpoints strictly in order. It publishes each target
// before moving and reports progress over channels, so a UI can observe the
// run without touching its state.
type Dispatcher struct {
	mover   Mover
	feed    viz.Publisher
	logger  logging.Logger
	cfg     Config
	stateCh chan State
	logCh   chan string
}

// New creates a dispatcher. The feed may not be nil; use a discard feed when
// no viewer is attached.
func New(mover Mover, feed viz.Publisher, logger logging.Logger, cfg Config) *Dispatcher {
	return &Dispatcher{
		mover:   mover,
		feed:    feed,
		logger:  logger,
		cfg:     cfg,
		stateCh: make(chan State, 1),
		logCh:   make(chan string, 10),
	}
}

// States returns a channel that receives progress updates.
func (d *Dispatcher) States() <-chan State {
	return d.stateCh
}

// Logs returns a channel that receives log messages.
func (d *Dispatcher) Logs() <-chan string {
	return d.logCh
}

func (d *Dispatcher) log(format string, args ...any) {
	d.logger.Debugf(format, args...)
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case d.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Run visits every viewpoint in order and returns the run report. A motion
// failure consumes the retry budget, then the failure policy applies: skip
// logs and continues, abort stops the run with an error. A pose that is
// reached but settles outside tolerance is recorded as such and never
// triggers the policy, matching the per-pose verify-and-record behavior.
func (d *Dispatcher) Run(ctx context.Context, vps []viewpoint.Viewpoint) (*Report, error) {
	if len(vps) == 0 {
		return nil, fmt.Errorf("no viewpoints to dispatch")
	}

	if err := d.feed.PublishSet(vps); err != nil {
		d.log("Warning: publish viewpoint set: %v", err)
	}
	d.log("Dispatching %d viewpoints (%s on failure, %d retries)",
		len(vps), d.cfg.OnFailure, d.cfg.Retries)

	report := NewReport()
	reached, failed := 0, 0

	for _, vp := range vps {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if err := d.feed.PublishTarget(vp); err != nil {
			d.log("Warning: publish target %d: %v", vp.Index, err)
		}

		row, err := d.approach(ctx, vp)
		report.Add(row)
		if row.Reached {
			reached++
		} else {
			failed++
		}

		d.sendState(State{
			Index:     vp.Index,
			Total:     len(vps),
			Reached:   reached,
			Failed:    failed,
			DeltaDMM:  row.DeltaDMM,
			DeltaPhi:  row.DeltaPhiDeg,
			Err:       err,
			Timestamp: time.Now(),
		})

		if err != nil {
			if d.cfg.OnFailure == config.FailureAbort {
				d.log("Aborting run at viewpoint %d: %v", vp.Index, err)
				return report, fmt.Errorf("viewpoint %d: %w", vp.Index, err)
			}
			d.log("Skipping viewpoint %d: %v", vp.Index, err)
			continue
		}

		if d.cfg.SettleDelay > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(d.cfg.SettleDelay):
			}
		}
	}

	d.log("Run complete: %d/%d viewpoints reached", reached, len(vps))
	d.sendState(State{
		Index:     vps[len(vps)-1].Index,
		Total:     len(vps),
		Reached:   reached,
		Failed:    failed,
		Done:      true,
		Timestamp: time.Now(),
	})
	return report, nil
}

// approach issues the blocking move for one viewpoint, retrying up to the
// budget, then verifies the end position against the target.
func (d *Dispatcher) approach(ctx context.Context, vp viewpoint.Viewpoint) (Row, error) {
	row := Row{
		Index:       vp.Index,
		Pose:        viz.FromPose(vp.Pose),
		DeltaDMM:    -1,
		DeltaPhiDeg: -1,
	}

	var moveErr error
	for attempt := 0; attempt <= d.cfg.Retries; attempt++ {
		row.Attempts = attempt + 1
		if attempt > 0 {
			d.log("Retry %d/%d for viewpoint %d", attempt, d.cfg.Retries, vp.Index)
		}
		moveErr = d.mover.MoveTo(ctx, vp.Pose)
		if moveErr == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	if moveErr != nil {
		row.Error = moveErr.Error()
		return row, fmt.Errorf("move: %w", moveErr)
	}

	actual, err := d.mover.EndPosition(ctx)
	if err != nil {
		// The move itself succeeded; treat a readback failure as reached
		// but unverified.
		row.Reached = true
		row.Error = fmt.Sprintf("end position readback: %v", err)
		d.log("Warning: viewpoint %d reached but not verified: %v", vp.Index, err)
		return row, nil
	}

	ok, deltaD, deltaPhi := allClose(vp.Pose, actual,
		d.cfg.PositionToleranceMM, d.cfg.OrientationToleranceDeg)
	row.Reached = ok
	row.DeltaDMM = round4(deltaD)
	row.DeltaPhiDeg = round4(deltaPhi)
	if ok {
		d.log("Viewpoint %d reached (delta %.1fmm, %.1f deg)", vp.Index, deltaD, deltaPhi)
	} else {
		row.Error = "pose not reached within tolerance"
		d.log("Viewpoint %d settled out of tolerance (delta %.1fmm, %.1f deg)",
			vp.Index, deltaD, deltaPhi)
	}
	return row, nil
}

func (d *Dispatcher) sendState(s State) {
	select {
	case d.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-d.stateCh:
		default:
		}
		d.stateCh <- s
	}
}

// allClose compares goal and actual poses, returning whether both the
// translational and angular deviations are within tolerance, along with the
// deviations themselves (mm, degrees).
func allClose(goal, actual spatialmath.Pose, tolDMM, tolPhiDeg float64) (bool, float64, float64) {
	deltaD := goal.Point().Sub(actual.Point()).Norm()

	qg := goal.Orientation().Quaternion()
	qa := actual.Orientation().Quaternion()
	// q and -q are the same rotation, hence the absolute dot product.
	cosHalf := math.Abs(qg.Real*qa.Real + qg.Imag*qa.Imag + qg.Jmag*qa.Jmag + qg.Kmag*qa.Kmag)
	if cosHalf > 1 {
		cosHalf = 1
	}
	deltaPhi := 2 * math.Acos(cosHalf) * 180 / math.Pi

	return deltaD <= tolDMM && deltaPhi <= tolPhiDeg, deltaD, deltaPhi
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
