package stats

import (
	"encoding/json"
	"math"

	"github.com/chenBenjamin97/shot-analyzer/pkg/geometry"
	"github.com/chenBenjamin97/shot-analyzer/pkg/shot"
	"gonum.org/v1/gonum/floats"
)

//PlayerStats accumulates shot results for one session. The four per-shot slices always have the same length and grow
//together, one element per recorded shot.
type PlayerStats struct {
	TotalScore       int                `json:"totalScore"`
	ShotCount        int                `json:"shotCount"`
	ShotPaths        [][]geometry.Point `json:"shotPaths"`
	AllSpeeds        []float64          `json:"allSpeeds"`
	AllReleaseAngles []float64          `json:"allReleaseAngles"`
	ShotResults      []shot.Outcome     `json:"shotResults"`
}

func NewPlayerStats() *PlayerStats {
	s := &PlayerStats{}
	s.Reset()
	return s
}

//RecordShot appends one completed shot. Entries are never removed or reordered.
func (s *PlayerStats) RecordShot(outcome shot.Outcome, speed, releaseAngle float64, path []geometry.Point) {
	p := make([]geometry.Point, len(path))
	copy(p, path)

	s.ShotPaths = append(s.ShotPaths, p)
	s.AllSpeeds = append(s.AllSpeeds, speed)
	s.AllReleaseAngles = append(s.AllReleaseAngles, releaseAngle)
	s.ShotResults = append(s.ShotResults, outcome)
	s.ShotCount++
	if outcome.IsScore() {
		s.TotalScore++
	}
}

func (s *PlayerStats) Reset() {
	s.TotalScore = 0
	s.ShotCount = 0
	s.ShotPaths = make([][]geometry.Point, 0)
	s.AllSpeeds = make([]float64, 0)
	s.AllReleaseAngles = make([]float64, 0)
	s.ShotResults = make([]shot.Outcome, 0)
}

//Snapshot returns a deep copy that can be read while the original keeps growing
func (s *PlayerStats) Snapshot() *PlayerStats {
	c := &PlayerStats{
		TotalScore:       s.TotalScore,
		ShotCount:        s.ShotCount,
		ShotPaths:        make([][]geometry.Point, len(s.ShotPaths)),
		AllSpeeds:        append([]float64(nil), s.AllSpeeds...),
		AllReleaseAngles: append([]float64(nil), s.AllReleaseAngles...),
		ShotResults:      append([]shot.Outcome(nil), s.ShotResults...),
	}
	for i, p := range s.ShotPaths {
		c.ShotPaths[i] = append([]geometry.Point(nil), p...)
	}
	return c
}

//TopSpeed returns the highest finite speed
func (s *PlayerStats) TopSpeed() (float64, bool) {
	speeds := finiteValues(s.AllSpeeds)
	if len(speeds) == 0 {
		return 0, false
	}
	return floats.Max(speeds), true
}

//AvgSpeed returns the mean of the finite speeds using integer-truncating division
func (s *PlayerStats) AvgSpeed() (int, bool) {
	return truncatedMean(s.AllSpeeds)
}

//AvgReleaseAngle returns the mean release angle using integer-truncating division
func (s *PlayerStats) AvgReleaseAngle() (int, bool) {
	return truncatedMean(s.AllReleaseAngles)
}

//MostMissReason returns the most frequent Short/Long miss reason. Rim misses are not counted.
//On a tie the reason seen first wins.
func (s *PlayerStats) MostMissReason() (shot.Reason, bool) {
	counts := make(map[shot.Reason]int)
	order := make([]shot.Reason, 0, 2)
	for _, o := range s.ShotResults {
		if o.IsScore() || o.Reason() == shot.Rim || o.Reason() == shot.NoReason {
			continue
		}
		if _, ok := counts[o.Reason()]; !ok {
			order = append(order, o.Reason())
		}
		counts[o.Reason()]++
	}

	if len(order) == 0 {
		return shot.NoReason, false
	}

	best := order[0]
	for _, r := range order[1:] {
		if counts[r] > counts[best] {
			best = r
		}
	}
	return best, true
}

//Summary is the read-only view rendered at the end of a session
type Summary struct {
	TotalScore      int          `json:"totalScore"`
	ShotCount       int          `json:"shotCount"`
	TopSpeed        *float64     `json:"topSpeed"`
	AvgSpeed        *int         `json:"avgSpeed"`
	AvgReleaseAngle *int         `json:"avgReleaseAngle"`
	MostMissReason  *shot.Reason `json:"-"`
	MostMissLabel   string       `json:"mostMissReason,omitempty"`
}

func (s *PlayerStats) Summary() Summary {
	sum := Summary{TotalScore: s.TotalScore, ShotCount: s.ShotCount}
	if v, ok := s.TopSpeed(); ok {
		sum.TopSpeed = &v
	}
	if v, ok := s.AvgSpeed(); ok {
		sum.AvgSpeed = &v
	}
	if v, ok := s.AvgReleaseAngle(); ok {
		sum.AvgReleaseAngle = &v
	}
	if v, ok := s.MostMissReason(); ok {
		sum.MostMissReason = &v
		sum.MostMissLabel = v.String()
	}
	return sum
}

//MarshalJSON writes unknown (non-finite) speeds as null
func (s *PlayerStats) MarshalJSON() ([]byte, error) {
	type plain PlayerStats
	speeds := make([]*float64, len(s.AllSpeeds))
	for i := range s.AllSpeeds {
		if v := s.AllSpeeds[i]; !math.IsNaN(v) && !math.IsInf(v, 0) {
			speeds[i] = &v
		}
	}
	return json.Marshal(struct {
		*plain
		AllSpeeds []*float64 `json:"allSpeeds"`
	}{(*plain)(s), speeds})
}

func finiteValues(values []float64) []float64 {
	res := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			res = append(res, v)
		}
	}
	return res
}

func truncatedMean(values []float64) (int, bool) {
	finite := finiteValues(values)
	if len(finite) == 0 {
		return 0, false
	}
	return int(floats.Sum(finite)) / len(finite), true
}
