package detect

import (
	"log"

	"github.com/chenBenjamin97/shot-analyzer/pkg/game"
)

//Apply hands one frame of detections to the orchestrator. Hoop, player and pose events go first so the trajectory step
//sees the frame's geometry. The tracker is fed on every frame, even without candidates, so silent frames are counted.
func Apply(o *game.Orchestrator, f *FrameEvents) error {
	for _, e := range f.Events {
		switch e.Kind {
		case KindHoop:
			if e.Rect == nil {
				continue
			}
			if err := o.HoopDetected(*e.Rect, e.Confidence, e.Contour); err != nil {
				log.Printf("Apply: Frame %d hoop detection rejected, got '%v'", f.Number, err)
			}
		case KindPlayer:
			if e.Rect == nil {
				continue
			}
			if err := o.PlayerDetected(*e.Rect, e.Confidence); err != nil {
				log.Printf("Apply: Frame %d player detection rejected, got '%v'", f.Number, err)
			}
		case KindPose:
			if e.Pose != nil {
				o.PoseSample(*e.Pose)
			}
		case KindTrajectory:
		default:
			log.Printf("Apply: Frame %d unknown event kind '%s'", f.Number, e.Kind)
		}
	}

	return o.TrajectoryCandidates(f.Candidates())
}
