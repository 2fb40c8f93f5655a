// Package hemiscan computes camera viewpoints on a viewing hemisphere and
// drives a robot arm through them.
//
// The viewpoint set comes from recursively subdividing an icosahedron,
// projecting the vertices onto the unit sphere, keeping the hemisphere that
// faces the configured axis and placing the samples around the focal point.
// Each viewpoint is posed so the sensor looks at the hemisphere center. An
// external motion service plans and executes the moves; this module only
// issues one blocking request per viewpoint and records how close the arm
// settled to each target.
//
// # Usage
//
// Write a parameter file, preview the set, then scan:
//
//	hemiscan setup
//	hemiscan plan
//	hemiscan scan
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/hemiscan: CLI with setup, plan and scan commands
//   - pkg/icosphere: icosahedron subdivision and hemisphere filtering
//   - pkg/viewpoint: posed viewpoint generation
//   - pkg/config: the parameter file
//   - pkg/dispatch: the sequential run loop and run report
//   - pkg/motion: the viam-backed motion interface
//   - pkg/viz: pose feed for an external viewer
package hemiscan
