package trajectory

import (
	"log"
	"math"

	"github.com/chenBenjamin97/shot-analyzer/pkg/geometry"
	"github.com/chenBenjamin97/shot-analyzer/pkg/hoop"
	"github.com/chenBenjamin97/shot-analyzer/pkg/shot"
)

//Candidate is one externally detected ball path for a single frame
type Candidate struct {
	Points     []geometry.Point `json:"points"`
	Confidence float64          `json:"confidence"`
	Duration   float64          `json:"durationSeconds"` //time covered by Points
}

//Frame is everything the tracker needs from one frame
type Frame struct {
	Candidates []Candidate
	Hoop       *hoop.Region
	PlayerBox  *geometry.Rect //used to check the ball travels towards the hoop, nil skips the check
}

//Completion is a finished trajectory handed over for classification
type Completion struct {
	Points       []geometry.Point //unique points inside the hoop safe area, in order
	Path         []geometry.Point //accumulated path used for rendering and speed
	InitialSpeed float64          //view units per second of the first segment, NaN when unknown
	FrameSpan    int              //frames between the trajectory start and its completion
}

type Config struct {
	MinConfidence    float64 //candidate paths under this confidence are ignored
	MinSegmentLength float64 //shorter segments are jitter and are not added to the path
	MaxGap           float64 //max distance between the accumulated end and the next segment's start
	MaxMissedFrames  int     //frames without observations before the shot is considered finished
}

func DefaultConfig() Config {
	return Config{
		MinConfidence:    0.9,
		MinSegmentLength: 100,
		MaxGap:           150,
		MaxMissedFrames:  10,
	}
}

//Tracker accumulates at most one in-flight trajectory. It is not safe for concurrent use.
type Tracker struct {
	cfg Config
	roi geometry.Rect

	inFlight     bool
	path         []geometry.Point
	unique       []geometry.Point
	seen         map[geometry.Point]bool
	tail         geometry.Point
	initialSpeed float64
	frames       int
	missed       int
}

func NewTracker(cfg Config) *Tracker {
	t := &Tracker{cfg: cfg}
	t.Reset()
	return t
}

//SetROI sets the region where a trajectory may start
func (t *Tracker) SetROI(roi geometry.Rect) {
	t.roi = roi
}

//SetFrameSize makes the lower half of the frame the start region
func (t *Tracker) SetFrameSize(width, height float64) {
	t.roi = geometry.Rect{X: 0, Y: height / 2, W: width, H: height / 2}
}

func (t *Tracker) InFlight() bool {
	return t.inFlight
}

//Process feeds one frame of candidates. A non-nil Completion is returned when the in-flight trajectory ended on this frame.
//shot.ErrEmptyTrajectory is returned when a trajectory ended with no points left near the hoop.
func (t *Tracker) Process(f Frame) (*Completion, error) {
	observed := false

	for _, c := range f.Candidates {
		if c.Confidence < t.cfg.MinConfidence || len(c.Points) < 2 {
			continue
		}

		first, last := c.Points[0], c.Points[len(c.Points)-1]

		if !plausibleDirection(first, last, f) {
			if t.inFlight {
				log.Printf("Tracker: Ball moving away from the hoop, dropping in-flight trajectory")
				t.Reset()
			}
			continue
		}

		if f.Hoop != nil && first.Y > f.Hoop.Rect.MaxY() && last.Y > f.Hoop.Rect.MaxY() {
			continue //never approached the rim
		}

		if !t.inFlight {
			if !t.startsInROI(c.Points) {
				continue
			}
			t.start(c)
		} else if geometry.Distance(t.tail, first) > t.cfg.MaxGap {
			continue
		}

		t.accumulate(c.Points)
		observed = true
	}

	if !t.inFlight {
		return nil, nil
	}

	t.frames++
	if observed {
		t.missed = 0
		return nil, nil
	}

	t.missed++
	if t.missed <= t.cfg.MaxMissedFrames {
		return nil, nil
	}
	return t.finish(f.Hoop)
}

//Flush ends the in-flight trajectory now, if there is one
func (t *Tracker) Flush(region *hoop.Region) (*Completion, error) {
	if !t.inFlight {
		return nil, nil
	}
	return t.finish(region)
}

//Reset drops any in-flight trajectory without reporting it
func (t *Tracker) Reset() {
	t.inFlight = false
	t.path = make([]geometry.Point, 0)
	t.unique = make([]geometry.Point, 0)
	t.seen = make(map[geometry.Point]bool)
	t.tail = geometry.Point{}
	t.initialSpeed = math.NaN()
	t.frames = 0
	t.missed = 0
}

func (t *Tracker) start(c Candidate) {
	t.inFlight = true
	if c.Duration > 0 {
		t.initialSpeed = geometry.PathLength(c.Points) / c.Duration
	}
}

func (t *Tracker) accumulate(points []geometry.Point) {
	if geometry.PathLength(points) > t.cfg.MinSegmentLength {
		t.path = append(t.path, points...)
	}
	for _, p := range points {
		if !t.seen[p] {
			t.seen[p] = true
			t.unique = append(t.unique, p)
		}
	}
	t.tail = points[len(points)-1]
}

func (t *Tracker) finish(region *hoop.Region) (*Completion, error) {
	points := t.unique
	if region != nil {
		points = geometry.Within(points, region.SafeArea)
	}

	c := &Completion{
		Points:       points,
		Path:         t.path,
		InitialSpeed: t.initialSpeed,
		FrameSpan:    t.frames,
	}
	t.Reset()

	if len(c.Points) == 0 {
		return nil, shot.ErrEmptyTrajectory
	}
	return c, nil
}

func (t *Tracker) startsInROI(points []geometry.Point) bool {
	if t.roi.IsEmpty() {
		return true
	}
	for _, p := range points {
		if t.roi.Contains(p) {
			return true
		}
	}
	return false
}

//plausibleDirection returns false when the path moves horizontally away from the hoop, as seen from the player
func plausibleDirection(first, last geometry.Point, f Frame) bool {
	if f.Hoop == nil || f.PlayerBox == nil {
		return true
	}
	moving := geometry.Sign(last.X - first.X)
	expected := geometry.Sign(f.Hoop.Rect.Mid().X - f.PlayerBox.Mid().X)
	if moving == 0 || expected == 0 {
		return true
	}
	return moving == expected
}
