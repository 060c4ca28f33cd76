package stats

import (
	"math"

	"github.com/chenBenjamin97/shot-analyzer/pkg/geometry"
)

//DefaultPoseCapacity is how many pose samples are kept to recover the arm pose at release
const DefaultPoseCapacity = 45

//DefaultMinJointConfidence is the minimum per-joint confidence for a joint to be used
const DefaultMinJointConfidence = 0.3

//Joint is one skeletal keypoint with its detector confidence
type Joint struct {
	Point      geometry.Point `json:"point"`
	Confidence float64        `json:"confidence"`
}

//Pose is the subset of a skeleton needed for the release angle
type Pose struct {
	RightElbow Joint `json:"rightElbow"`
	RightWrist Joint `json:"rightWrist"`
}

//PoseBuffer is a fixed-capacity FIFO of recent poses. Pushing onto a full buffer evicts the oldest pose.
type PoseBuffer struct {
	data []Pose
	pos  int
	full bool
}

func NewPoseBuffer(capacity int) *PoseBuffer {
	if capacity <= 0 {
		capacity = DefaultPoseCapacity
	}
	return &PoseBuffer{data: make([]Pose, capacity)}
}

func (b *PoseBuffer) Push(p Pose) {
	b.data[b.pos] = p
	b.pos++
	if b.pos >= len(b.data) {
		b.pos = 0
		b.full = true
	}
}

func (b *PoseBuffer) Len() int {
	if b.full {
		return len(b.data)
	}
	return b.pos
}

func (b *PoseBuffer) Cap() int {
	return len(b.data)
}

//Slice returns the buffered poses oldest first
func (b *PoseBuffer) Slice() []Pose {
	out := make([]Pose, b.Len())
	if b.full {
		copy(out, b.data[b.pos:])
		copy(out[len(b.data)-b.pos:], b.data[:b.pos])
	} else {
		copy(out, b.data[:b.pos])
	}
	return out
}

func (b *PoseBuffer) Clear() {
	b.pos = 0
	b.full = false
}

//ReleaseAngle picks the pose recorded roughly when the ball left the hand and returns the forearm angle against the
//horizontal, in degrees rounded to 2 decimals. The pose is taken trajectoryLength+lookback samples back from the newest
//one, clamped to the oldest. Joints under minConfidence count as the origin.
func ReleaseAngle(poses []Pose, trajectoryLength, lookback int, minConfidence float64) float64 {
	var pose Pose
	if len(poses) > 0 {
		idx := len(poses) - (trajectoryLength + lookback)
		if idx < 0 {
			idx = 0
		}
		if idx > len(poses)-1 {
			idx = len(poses) - 1
		}
		pose = poses[idx]
	}

	elbow, wrist := geometry.Point{}, geometry.Point{}
	if pose.RightElbow.Confidence >= minConfidence {
		elbow = pose.RightElbow.Point
	}
	if pose.RightWrist.Confidence >= minConfidence {
		wrist = pose.RightWrist.Point
	}

	//view space y grows downward, a raised wrist gives a positive angle whichever way the shooter faces
	angle := geometry.AngleDegrees(elbow.Y-wrist.Y, math.Abs(wrist.X-elbow.X))
	return geometry.Round(angle, 2)
}
