package game

import (
	"errors"
	"log"
	"math"
	"time"

	"github.com/chenBenjamin97/shot-analyzer/pkg/config"
	"github.com/chenBenjamin97/shot-analyzer/pkg/geometry"
	"github.com/chenBenjamin97/shot-analyzer/pkg/hoop"
	"github.com/chenBenjamin97/shot-analyzer/pkg/session"
	"github.com/chenBenjamin97/shot-analyzer/pkg/shot"
	"github.com/chenBenjamin97/shot-analyzer/pkg/stats"
	"github.com/chenBenjamin97/shot-analyzer/pkg/trajectory"
	"github.com/google/uuid"
)

type Config struct {
	Tracker             trajectory.Config
	PoseCapacity        int
	MinJointConfidence  float64
	ReleaseLookback     int
	MinHoopConfidence   float64
	MinPlayerConfidence float64
	DetectPlayer        bool //wait for a confident player detection before tracking shots
	ShotCap             int  //route to the summary after this many shots, 0 disables
}

func DefaultConfig() Config {
	return Config{
		Tracker:             trajectory.DefaultConfig(),
		PoseCapacity:        stats.DefaultPoseCapacity,
		MinJointConfidence:  stats.DefaultMinJointConfidence,
		ReleaseLookback:     10,
		MinHoopConfidence:   0.8,
		MinPlayerConfidence: 0.8,
		DetectPlayer:        true,
	}
}

//ConfigFrom maps the file configuration onto the orchestrator's
func ConfigFrom(c *config.Config) Config {
	return Config{
		Tracker: trajectory.Config{
			MinConfidence:    c.Tracker.MinConfidence,
			MinSegmentLength: c.Tracker.MinSegmentLength,
			MaxGap:           c.Tracker.MaxGap,
			MaxMissedFrames:  c.Tracker.MaxMissedFrames,
		},
		PoseCapacity:        c.Stats.PoseCapacity,
		MinJointConfidence:  c.Stats.MinJointConfidence,
		ReleaseLookback:     c.Stats.ReleaseLookback,
		MinHoopConfidence:   c.Session.MinHoopConfidence,
		MinPlayerConfidence: c.Session.MinPlayerConfidence,
		DetectPlayer:        c.Session.DetectPlayer,
		ShotCap:             c.Session.ShotCap,
	}
}

//ShotRecord is emitted once per completed, non-discarded shot
type ShotRecord struct {
	ID         string           `json:"id"`
	SessionID  string           `json:"sessionId"`
	Index      int              `json:"index"`
	Metrics    shot.Metrics     `json:"metrics"`
	Path       []geometry.Point `json:"path"`
	RecordedAt time.Time        `json:"recordedAt"`
}

//SessionSummary is emitted each time the session reaches ShowSummary
type SessionSummary struct {
	SessionID string        `json:"sessionId"`
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   time.Time     `json:"endedAt"`
	Summary   stats.Summary `json:"summary"`
}

//Orchestrator wires the state machine, calibrator, tracker and stats together. It owns all of them exclusively and is
//not safe for concurrent use, wrap it in a Loop to accept input from several goroutines.
type Orchestrator struct {
	cfg Config

	machine    *session.Machine
	calibrator *hoop.Calibrator
	tracker    *trajectory.Tracker
	stats      *stats.PlayerStats
	poses      *stats.PoseBuffer

	hoop   *hoop.Region
	player *geometry.Rect

	sessionID       string
	startedAt       time.Time
	finishRequested bool

	shotListeners    []func(ShotRecord)
	summaryListeners []func(SessionSummary)

	now func() time.Time
}

func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		machine:    session.NewMachine(),
		calibrator: hoop.NewCalibrator(),
		tracker:    trajectory.NewTracker(cfg.Tracker),
		stats:      stats.NewPlayerStats(),
		poses:      stats.NewPoseBuffer(cfg.PoseCapacity),
		now:        time.Now,
	}
}

//Observe registers a state change observer
func (o *Orchestrator) Observe(fn session.Observer) {
	o.machine.Observe(fn)
}

//OnShot registers a listener for recorded shots
func (o *Orchestrator) OnShot(fn func(ShotRecord)) {
	o.shotListeners = append(o.shotListeners, fn)
}

//OnSummary registers a listener called when the session reaches the summary
func (o *Orchestrator) OnSummary(fn func(SessionSummary)) {
	o.summaryListeners = append(o.summaryListeners, fn)
}

//Start begins a new session: Inactive -> SetupCamera
func (o *Orchestrator) Start() error {
	if _, ok := o.machine.Current(); !ok {
		if err := o.enter(session.Inactive); err != nil {
			return err
		}
	}
	if err := o.enter(session.SetupCamera); err != nil {
		return err
	}
	o.newSession()
	return nil
}

//CameraReady sets the frame size (the lower half becomes the trajectory start region) and starts looking for the hoop
func (o *Orchestrator) CameraReady(width, height float64) error {
	if width > 0 && height > 0 {
		o.tracker.SetFrameSize(width, height)
	}
	return o.enter(session.DetectingHoop)
}

//HoopDetected handles a hoop detection. The first confident one fixes the hoop region, later ones only retry the
//calibration while it's still missing.
func (o *Orchestrator) HoopDetected(rect geometry.Rect, confidence float64, contour *geometry.Rect) error {
	if !o.machine.Is(session.DetectingHoop) {
		if o.hoop != nil && !o.calibrator.Calibrated() {
			o.calibrate(contour)
		}
		return nil
	}

	if confidence < o.cfg.MinHoopConfidence {
		return nil
	}

	region, err := hoop.NewRegion(rect)
	if err != nil {
		log.Printf("HoopDetected: Ignoring detection, got '%v'", err)
		return err
	}
	o.hoop = region
	o.calibrate(contour)

	if err := o.enter(session.DetectedHoop); err != nil {
		return err
	}
	return o.afterHoop()
}

//PlayerDetected keeps the latest confident player box and moves on from DetectingPlayer
func (o *Orchestrator) PlayerDetected(rect geometry.Rect, confidence float64) error {
	if confidence < o.cfg.MinPlayerConfidence || rect.IsEmpty() {
		return nil
	}
	o.player = &rect

	if !o.machine.Is(session.DetectingPlayer) {
		return nil
	}
	if err := o.enter(session.DetectedPlayer); err != nil {
		return err
	}
	return o.enter(session.TrackShots)
}

//PoseSample buffers a pose for the release angle
func (o *Orchestrator) PoseSample(p stats.Pose) {
	o.poses.Push(p)
}

//TrajectoryCandidates feeds one frame of ball paths. Frames outside TrackShots are ignored.
func (o *Orchestrator) TrajectoryCandidates(candidates []trajectory.Candidate) error {
	if !o.machine.Is(session.TrackShots) {
		return nil
	}
	completion, err := o.tracker.Process(trajectory.Frame{Candidates: candidates, Hoop: o.hoop, PlayerBox: o.player})
	return o.complete(completion, err)
}

//ManualHoopEdit replaces the hoop region. The in-flight trajectory, calibration and recorded stats are dropped and
//shots from then on belong to a new session id, so shot indexes stay unique per session.
func (o *Orchestrator) ManualHoopEdit(rect geometry.Rect, contour *geometry.Rect) error {
	region, err := hoop.NewRegion(rect)
	if err != nil {
		return err
	}

	o.tracker.Reset()
	o.calibrator.Reset()
	o.stats.Reset()
	if _, started := o.machine.Current(); started && !o.machine.Is(session.Inactive) {
		o.newSession()
	}
	o.hoop = region
	o.calibrate(contour)

	switch {
	case o.machine.Is(session.TrackShots):
		if err := o.enter(session.DetectingHoop); err != nil {
			return err
		}
		fallthrough
	case o.machine.Is(session.DetectingHoop):
		if err := o.enter(session.DetectedHoop); err != nil {
			return err
		}
		return o.afterHoop()
	}
	return nil
}

//Finish flushes the in-flight trajectory and moves to the summary
func (o *Orchestrator) Finish() error {
	o.finishRequested = true

	switch {
	case o.machine.Is(session.ShowSummary):
		o.finishRequested = false
		return nil
	case o.machine.Is(session.TrackShots):
		completion, flushErr := o.tracker.Flush(o.hoop)
		if err := o.complete(completion, flushErr); err != nil {
			log.Printf("Finish: Could not complete last shot, got '%v'", err)
		}
		if o.machine.Is(session.ShowSummary) {
			return nil
		}
	}

	err := o.showSummary()
	if err != nil {
		o.finishRequested = false
	}
	return err
}

//VideoEnded is Finish for a recorded video running out of frames
func (o *Orchestrator) VideoEnded() error {
	return o.Finish()
}

//NextRound leaves the summary for a new round with fresh stats
func (o *Orchestrator) NextRound() error {
	if err := o.enter(session.DetectingPlayer); err != nil {
		return err
	}
	o.tracker.Reset()
	o.stats.Reset()
	o.poses.Clear()
	o.newSession()

	if o.cfg.DetectPlayer || o.player == nil {
		return nil
	}
	if err := o.enter(session.DetectedPlayer); err != nil {
		return err
	}
	return o.enter(session.TrackShots)
}

//Reset drops every collection and calibration and returns to Inactive without recording anything
func (o *Orchestrator) Reset() {
	o.tracker.Reset()
	o.stats.Reset()
	o.calibrator.Reset()
	o.poses.Clear()
	o.hoop = nil
	o.player = nil
	o.finishRequested = false
	o.machine.Reset()
}

//State returns the current session state, ok is false before Start
func (o *Orchestrator) State() (session.State, bool) {
	return o.machine.Current()
}

//Stats returns a copy of the running stats
func (o *Orchestrator) Stats() *stats.PlayerStats {
	return o.stats.Snapshot()
}

//Hoop returns a copy of the hoop region, nil when unset
func (o *Orchestrator) Hoop() *hoop.Region {
	if o.hoop == nil {
		return nil
	}
	h := *o.hoop
	return &h
}

func (o *Orchestrator) SessionID() string {
	return o.sessionID
}

//MetersPerPixel returns the calibration scale factor, NaN when unset
func (o *Orchestrator) MetersPerPixel() float64 {
	return o.calibrator.MetersPerPixel()
}

func (o *Orchestrator) enter(s session.State) error {
	if err := o.machine.Enter(s); err != nil {
		log.Printf("Orchestrator: Ignoring transition, got '%v'", err)
		return err
	}
	return nil
}

func (o *Orchestrator) newSession() {
	o.sessionID = uuid.New().String()
	o.startedAt = o.now()
}

func (o *Orchestrator) calibrate(contour *geometry.Rect) {
	if !o.calibrator.Calibrate(contour) {
		log.Printf("Calibrate: Hoop contour unavailable, will retry on a later frame")
	}
}

//afterHoop continues from DetectedHoop
func (o *Orchestrator) afterHoop() error {
	if o.cfg.DetectPlayer && o.player == nil {
		return o.enter(session.DetectingPlayer)
	}
	return o.enter(session.TrackShots)
}

//complete classifies a finished trajectory and records it
func (o *Orchestrator) complete(c *trajectory.Completion, trackErr error) error {
	if errors.Is(trackErr, shot.ErrEmptyTrajectory) {
		log.Printf("Orchestrator: Trajectory ended away from the hoop, nothing to classify")
		return nil
	}
	if trackErr != nil {
		return trackErr
	}
	if c == nil {
		return nil
	}

	outcome, err := shot.Classify(c.Points, o.hoop)
	if errors.Is(err, shot.ErrDiscardedShot) {
		log.Printf("Orchestrator: Shot discarded, ball never reached rim height")
		return nil
	}
	if err != nil {
		log.Printf("Orchestrator: Could not classify shot, got '%v'", err)
		return err
	}

	speed, err := o.calibrator.Speed(c.InitialSpeed)
	if err != nil {
		log.Printf("Orchestrator: Shot speed unknown, got '%v'", err)
		speed = math.NaN()
	}
	angle := stats.ReleaseAngle(o.poses.Slice(), c.FrameSpan, o.cfg.ReleaseLookback, o.cfg.MinJointConfidence)

	path := c.Path
	if len(path) == 0 {
		path = c.Points
	}
	o.stats.RecordShot(outcome, speed, angle, path)

	record := ShotRecord{
		ID:         uuid.New().String(),
		SessionID:  o.sessionID,
		Index:      o.stats.ShotCount,
		Metrics:    shot.Metrics{Outcome: outcome, SpeedMetersPerSecond: speed, ReleaseAngleDegrees: angle},
		Path:       append([]geometry.Point(nil), path...),
		RecordedAt: o.now(),
	}
	for _, fn := range o.shotListeners {
		fn(record)
	}

	if err := o.enter(session.ShotCompleted); err != nil {
		return err
	}
	if o.finishRequested || (o.cfg.ShotCap > 0 && o.stats.ShotCount >= o.cfg.ShotCap) {
		return o.showSummary()
	}
	return o.enter(session.TrackShots)
}

func (o *Orchestrator) showSummary() error {
	if err := o.enter(session.ShowSummary); err != nil {
		return err
	}
	o.finishRequested = false

	summary := SessionSummary{
		SessionID: o.sessionID,
		StartedAt: o.startedAt,
		EndedAt:   o.now(),
		Summary:   o.stats.Summary(),
	}
	for _, fn := range o.summaryListeners {
		fn(summary)
	}
	return nil
}
