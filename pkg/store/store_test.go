package store

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/chenBenjamin97/shot-analyzer/pkg/game"
	"github.com/chenBenjamin97/shot-analyzer/pkg/geometry"
	"github.com/chenBenjamin97/shot-analyzer/pkg/shot"
	"github.com/chenBenjamin97/shot-analyzer/pkg/stats"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var outcomeEqual = cmp.Comparer(func(a, b shot.Outcome) bool { return a == b })

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "shots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_Shots(t *testing.T) {
	s := newTestStore(t)
	at := time.Unix(1700000000, 0).UTC()

	want := []game.ShotRecord{
		{
			ID: "a", SessionID: "s1", Index: 1, RecordedAt: at,
			Metrics: shot.Metrics{Outcome: shot.Scored(), SpeedMetersPerSecond: 7.25, ReleaseAngleDegrees: 45},
			Path:    []geometry.Point{geometry.Pt(200, 500), geometry.Pt(630, 230)},
		},
		{
			ID: "b", SessionID: "s1", Index: 2, RecordedAt: at.Add(time.Second),
			Metrics: shot.Metrics{Outcome: shot.Missed(shot.Rim), SpeedMetersPerSecond: math.NaN(), ReleaseAngleDegrees: 38.5},
			Path:    []geometry.Point{geometry.Pt(210, 480)},
		},
	}
	//saved out of order on purpose
	require.NoError(t, s.SaveShot(want[1]))
	require.NoError(t, s.SaveShot(want[0]))
	require.NoError(t, s.SaveShot(game.ShotRecord{ID: "c", SessionID: "s2", Index: 1, Metrics: shot.Metrics{Outcome: shot.Scored()}}))

	got, err := s.ShotsForSession("s1")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got, outcomeEqual, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("ShotsForSession mismatch (-want +got):\n%s", diff)
	}

	none, err := s.ShotsForSession("unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_ShotsSameIndexKeepTakeOrder(t *testing.T) {
	s := newTestStore(t)
	at := time.Unix(1700000000, 0).UTC()
	for _, id := range []string{"later", "earlier"} {
		recorded := at
		if id == "later" {
			recorded = at.Add(time.Minute)
		}
		require.NoError(t, s.SaveShot(game.ShotRecord{ID: id, SessionID: "s1", Index: 1, RecordedAt: recorded,
			Metrics: shot.Metrics{Outcome: shot.Scored()}}))
	}

	got, err := s.ShotsForSession("s1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "earlier", got[0].ID)
	assert.Equal(t, "later", got[1].ID)
}

func TestStore_DuplicateShot(t *testing.T) {
	s := newTestStore(t)
	r := game.ShotRecord{ID: "a", SessionID: "s1", Index: 1, Metrics: shot.Metrics{Outcome: shot.Scored()}}
	require.NoError(t, s.SaveShot(r))
	assert.Error(t, s.SaveShot(r))
}

func TestStore_Sessions(t *testing.T) {
	s := newTestStore(t)
	at := time.Unix(1700000000, 0).UTC()

	top, avg, angle := 8.5, 7, 44
	reason := shot.Short
	full := game.SessionSummary{
		SessionID: "s1", StartedAt: at, EndedAt: at.Add(time.Minute),
		Summary: stats.Summary{
			TotalScore: 2, ShotCount: 5, TopSpeed: &top, AvgSpeed: &avg, AvgReleaseAngle: &angle,
			MostMissReason: &reason, MostMissLabel: "short",
		},
	}
	empty := game.SessionSummary{SessionID: "s2", StartedAt: at.Add(time.Hour), EndedAt: at.Add(2 * time.Hour)}

	require.NoError(t, s.SaveSummary(full))
	require.NoError(t, s.SaveSummary(empty))

	got, err := s.ListSessions()
	require.NoError(t, err)
	if diff := cmp.Diff([]game.SessionSummary{empty, full}, got); diff != "" {
		t.Errorf("ListSessions mismatch (-want +got):\n%s", diff)
	}

	//saving again replaces the row
	empty.Summary.ShotCount = 1
	require.NoError(t, s.SaveSummary(empty))
	got, err = s.ListSessions()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Summary.ShotCount)
}

func TestStore_Listen(t *testing.T) {
	s := newTestStore(t)
	o := game.New(game.DefaultConfig())
	s.Listen(o)

	require.NoError(t, o.Start())
	require.NoError(t, o.CameraReady(1000, 800))
	require.NoError(t, o.HoopDetected(geometry.Rect{X: 600, Y: 200, W: 60, H: 40}, 0.95, nil))
	require.NoError(t, o.PlayerDetected(geometry.Rect{X: 100, Y: 400, W: 100, H: 300}, 0.9))
	require.NoError(t, o.Finish())

	got, err := s.ListSessions()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, o.SessionID(), got[0].SessionID)
	assert.Equal(t, 0, got[0].Summary.ShotCount)
}
