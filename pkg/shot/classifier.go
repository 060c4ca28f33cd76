package shot

import (
	"errors"

	"github.com/chenBenjamin97/shot-analyzer/pkg/geometry"
	"github.com/chenBenjamin97/shot-analyzer/pkg/hoop"
)

var (
	//ErrEmptyTrajectory means there was nothing to classify
	ErrEmptyTrajectory = errors.New("empty trajectory")
	//ErrDiscardedShot means the ball never reached rim height, no result should be recorded
	ErrDiscardedShot = errors.New("shot discarded: ball stayed below the rim")
	//ErrNoHoop means classification was requested without a calibrated hoop region
	ErrNoHoop = errors.New("hoop region is not set")
)

type side int

const (
	over side = iota //horizontally within the hoop span
	leftOf
	rightOf
)

func sideOf(p geometry.Point, r geometry.Rect) side {
	switch {
	case p.X < r.MinX():
		return leftOf
	case p.X > r.MaxX():
		return rightOf
	}
	return over
}

func opposite(s side) side {
	switch s {
	case leftOf:
		return rightOf
	case rightOf:
		return leftOf
	}
	return over
}

//Classify decides the outcome of one completed shot from its ordered trajectory points.
//It has no side effects: identical inputs always produce identical outcomes.
func Classify(points []geometry.Point, region *hoop.Region) (Outcome, error) {
	if region == nil {
		return Outcome{}, ErrNoHoop
	}
	if len(points) == 0 {
		return Outcome{}, ErrEmptyTrajectory
	}

	r := region.Rect
	first, last := points[0], points[len(points)-1]

	if first.Y > r.MaxY() && last.Y > r.MaxY() {
		return Outcome{}, ErrDiscardedShot
	}

	startSide := sideOf(first, r)
	bounced := bouncedAcross(points, r, startSide)

	for _, p := range points {
		if r.Contains(p) {
			if bounced {
				return Missed(Rim), nil
			}
			return Scored(), nil
		}
	}

	if bounced {
		return Missed(Rim), nil
	}

	endSide := sideOf(last, r)
	if startSide != over && endSide == opposite(startSide) {
		return Missed(Long), nil
	}

	if startSide != over && endSide == startSide {
		return Missed(Short), nil
	}

	return Missed(Rim), nil
}

//bouncedAcross returns true when a point after the first one sits on the far side of the hoop while being lower than the
//rim's top edge, i.e. the ball crossed over and dropped off the rim instead of sailing past it
func bouncedAcross(points []geometry.Point, r geometry.Rect, startSide side) bool {
	if startSide == over {
		return false
	}
	far := opposite(startSide)
	for _, p := range points[1:] {
		if sideOf(p, r) == far && p.Y > r.MinY() {
			return true
		}
	}
	return false
}
