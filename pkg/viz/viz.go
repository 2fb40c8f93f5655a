// Package viz streams generated poses to an external viewer as JSON lines,
// tagged with the topic names from the parameter file.
package viz

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"go.viam.com/rdk/spatialmath"

	"github.com/tracelab/hemiscan/pkg/viewpoint"
)

// Publisher accepts the target pose before each move and the full viewpoint
// set once per run. Publishing is best-effort; callers log errors and keep
// going.
type Publisher interface {
	PublishTarget(vp viewpoint.Viewpoint) error
	PublishSet(vps []viewpoint.Viewpoint) error
	Close() error
}

// Pose is the wire form of a pose: millimeters plus an orientation vector.
type Pose struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	OX    float64 `json:"ox"`
	OY    float64 `json:"oy"`
	OZ    float64 `json:"oz"`
	Theta float64 `json:"theta"`
}

// PoseMessage carries one target pose.
type PoseMessage struct {
	Topic string    `json:"topic"`
	Time  time.Time `json:"time"`
	Index int       `json:"index"`
	Pose  Pose      `json:"pose"`
}

// PoseArrayMessage carries the whole viewpoint set.
type PoseArrayMessage struct {
	Topic string    `json:"topic"`
	Time  time.Time `json:"time"`
	Poses []Pose    `json:"poses"`
}

// FromPose flattens a spatial pose into the wire form.
func FromPose(p spatialmath.Pose) Pose {
	pt := p.Point()
	ov := p.Orientation().OrientationVectorRadians()
	return Pose{X: pt.X, Y: pt.Y, Z: pt.Z, OX: ov.OX, OY: ov.OY, OZ: ov.OZ, Theta: ov.Theta}
}

// Feed writes topic-tagged JSON lines to a sink.
type Feed struct {
	w           io.Writer
	closer      io.Closer
	targetTopic string
	setTopic    string
}

// Open creates a feed for the given sink: "" discards, "stdout" writes to
// standard output, "udp://host:port" sends datagrams, anything else is a
// file path appended to.
func Open(sink, targetTopic, setTopic string) (*Feed, error) {
	f := &Feed{targetTopic: targetTopic, setTopic: setTopic}

	switch {
	case sink == "":
		f.w = io.Discard
	case sink == "stdout":
		f.w = os.Stdout
	case strings.HasPrefix(sink, "udp://"):
		conn, err := net.Dial("udp", strings.TrimPrefix(sink, "udp://"))
		if err != nil {
			return nil, fmt.Errorf("dial viz sink: %w", err)
		}
		f.w = conn
		f.closer = conn
	default:
		file, err := os.OpenFile(sink, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open viz sink: %w", err)
		}
		f.w = file
		f.closer = file
	}

	return f, nil
}

// PublishTarget writes the pose the dispatcher is about to approach.
func (f *Feed) PublishTarget(vp viewpoint.Viewpoint) error {
	return f.write(PoseMessage{
		Topic: f.targetTopic,
		Time:  time.Now().UTC(),
		Index: vp.Index,
		Pose:  FromPose(vp.Pose),
	})
}

// PublishSet writes the full ordered viewpoint set.
func (f *Feed) PublishSet(vps []viewpoint.Viewpoint) error {
	msg := PoseArrayMessage{
		Topic: f.setTopic,
		Time:  time.Now().UTC(),
		Poses: make([]Pose, len(vps)),
	}
	for i, vp := range vps {
		msg.Poses[i] = FromPose(vp.Pose)
	}
	return f.write(msg)
}

func (f *Feed) write(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = f.w.Write(append(data, '\n'))
	return err
}

// Close closes the underlying sink if it owns one.
func (f *Feed) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}
