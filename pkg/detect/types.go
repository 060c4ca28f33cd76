package detect

import (
	"github.com/chenBenjamin97/shot-analyzer/pkg/geometry"
	"github.com/chenBenjamin97/shot-analyzer/pkg/stats"
	"github.com/chenBenjamin97/shot-analyzer/pkg/trajectory"
)

//event kinds printed by the detector, one JSON object per line
const (
	KindHoop       = "hoop"
	KindPlayer     = "player"
	KindPose       = "pose"
	KindTrajectory = "trajectory"
)

//Event is one detection printed by the detector. Which fields are set depends on Kind.
type Event struct {
	Kind       string                 `json:"kind"`
	Rect       *geometry.Rect         `json:"rect,omitempty"`       //hoop or player box, view space
	Confidence float64                `json:"confidence,omitempty"` //hoop or player confidence
	Contour    *geometry.Rect         `json:"contour,omitempty"`    //hoop edge contour bounding box, pixels
	Pose       *stats.Pose            `json:"pose,omitempty"`
	Candidates []trajectory.Candidate `json:"candidates,omitempty"`
}

//FrameEvents holds every event the detector printed for one frame
type FrameEvents struct {
	Number int     `json:"number"`
	Events []Event `json:"events"`
}

func NewFrameEvents(frameNum int) *FrameEvents {
	x := FrameEvents{}
	x.Number = frameNum
	x.Events = make([]Event, 0)
	return &x
}

//Candidates returns all trajectory candidates of the frame
func (f *FrameEvents) Candidates() []trajectory.Candidate {
	var res []trajectory.Candidate
	for _, e := range f.Events {
		if e.Kind == KindTrajectory {
			res = append(res, e.Candidates...)
		}
	}
	return res
}
