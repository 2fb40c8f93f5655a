// Package motion reaches the external motion stack over the viam client API.
// Planning, collision avoidance and execution all happen on the machine; this
// side issues one blocking request at a time.
package motion

import (
	"context"
	"fmt"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/components/arm"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/robot/client"
	motionservice "go.viam.com/rdk/services/motion"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/utils/rpc"

	"github.com/tracelab/hemiscan/pkg/config"
)

// GuardBoxLabel names the obstacle placed at the hemisphere center so the
// planner keeps clear of the scanned object.
const GuardBoxLabel = "hemiscan-guard"

// Viam moves a configured arm through a machine's motion service.
type Viam struct {
	robot      *client.RobotClient
	arm        arm.Arm
	svc        motionservice.Service
	armName    resource.Name
	frame      string
	worldState *referenceframe.WorldState
	logger     logging.Logger
}

// Connect dials the machine and resolves the arm and motion service named in
// the config. With an API key it authenticates; otherwise it assumes a local,
// insecure connection.
func Connect(ctx context.Context, cfg config.RobotConfig, logger logging.Logger) (*Viam, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("no machine address configured")
	}
	if cfg.Arm == "" {
		return nil, fmt.Errorf("no arm name configured")
	}

	var opts []client.RobotClientOption
	if cfg.APIKey != "" {
		opts = append(opts, client.WithDialOptions(rpc.WithEntityCredentials(
			cfg.APIKeyID,
			rpc.Credentials{Type: rpc.CredentialsTypeAPIKey, Payload: cfg.APIKey},
		)))
	} else {
		opts = append(opts, client.WithDialOptions(rpc.WithInsecure()))
	}

	robot, err := client.New(ctx, cfg.Address, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial machine %s: %w", cfg.Address, err)
	}

	a, err := arm.FromRobot(robot, cfg.Arm)
	if err != nil {
		robot.Close(ctx)
		return nil, fmt.Errorf("resolve arm %q: %w", cfg.Arm, err)
	}
	svc, err := motionservice.FromRobot(robot, cfg.MotionService)
	if err != nil {
		robot.Close(ctx)
		return nil, fmt.Errorf("resolve motion service %q: %w", cfg.MotionService, err)
	}

	logger.Infof("connected to %s (arm %q, motion service %q)",
		cfg.Address, cfg.Arm, cfg.MotionService)

	return &Viam{
		robot:   robot,
		arm:     a,
		svc:     svc,
		armName: arm.Named(cfg.Arm),
		frame:   cfg.Frame,
		logger:  logger,
	}, nil
}

// SetGuardBox places a box obstacle at center for every subsequent move.
func (v *Viam) SetGuardBox(center, dims r3.Vector) error {
	ws, err := guardWorldState(v.frame, center, dims)
	if err != nil {
		return err
	}
	v.worldState = ws
	return nil
}

func guardWorldState(frame string, center, dims r3.Vector) (*referenceframe.WorldState, error) {
	box, err := spatialmath.NewBox(spatialmath.NewPoseFromPoint(center), dims, GuardBoxLabel)
	if err != nil {
		return nil, fmt.Errorf("guard box: %w", err)
	}
	obstacles := referenceframe.NewGeometriesInFrame(frame, []spatialmath.Geometry{box})
	ws, err := referenceframe.NewWorldState([]*referenceframe.GeometriesInFrame{obstacles}, nil)
	if err != nil {
		return nil, fmt.Errorf("world state: %w", err)
	}
	return ws, nil
}

// MoveTo plans and executes a move of the arm to the given world-frame pose,
// blocking until the motion service reports completion.
func (v *Viam) MoveTo(ctx context.Context, pose spatialmath.Pose) error {
	ok, err := v.svc.Move(ctx, motionservice.MoveReq{
		ComponentName: v.armName,
		Destination:   referenceframe.NewPoseInFrame(v.frame, pose),
		WorldState:    v.worldState,
	})
	if err != nil {
		return fmt.Errorf("motion service: %w", err)
	}
	if !ok {
		return fmt.Errorf("motion service declined to execute the plan")
	}
	return nil
}

// EndPosition reads back the arm's current end effector pose.
func (v *Viam) EndPosition(ctx context.Context) (spatialmath.Pose, error) {
	pose, err := v.arm.EndPosition(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("end position: %w", err)
	}
	return pose, nil
}

// Close disconnects from the machine.
func (v *Viam) Close(ctx context.Context) error {
	return v.robot.Close(ctx)
}
