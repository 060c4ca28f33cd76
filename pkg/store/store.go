package store

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/chenBenjamin97/shot-analyzer/pkg/game"
	"github.com/chenBenjamin97/shot-analyzer/pkg/geometry"
	"github.com/chenBenjamin97/shot-analyzer/pkg/shot"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

//Store keeps recorded shots and session summaries in a sqlite file
type Store struct {
	*sql.DB
}

func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("NewStore: Could not open '%s', got '%v'", path, err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("NewStore: Could not create schema, got '%v'", err)
	}

	log.Printf("NewStore: Initialized shots database at '%s'", path)
	return &Store{db}, nil
}

//SaveShot inserts a recorded shot. An unknown speed is stored as NULL.
func (s *Store) SaveShot(r game.ShotRecord) error {
	path, err := json.Marshal(r.Path)
	if err != nil {
		return fmt.Errorf("SaveShot: Could not encode path, got '%v'", err)
	}

	query := `
		INSERT INTO shots (id, session_id, shot_index, result, reason, speed, release_angle, path, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result := "score"
	if !r.Metrics.Outcome.IsScore() {
		result = "miss"
	}

	_, err = s.Exec(query, r.ID, r.SessionID, r.Index, result, r.Metrics.Outcome.Reason().String(),
		nullFloat(r.Metrics.SpeedMetersPerSecond), r.Metrics.ReleaseAngleDegrees, string(path), r.RecordedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("SaveShot: Could not insert shot '%s', got '%v'", r.ID, err)
	}
	return nil
}

//SaveSummary stores a session summary, replacing an earlier one of the same session
func (s *Store) SaveSummary(sum game.SessionSummary) error {
	query := `
		INSERT OR REPLACE INTO sessions (id, started_at, ended_at, total_score, shot_count, top_speed, avg_speed, avg_release_angle, most_miss_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var topSpeed, avgSpeed, avgAngle interface{}
	if sum.Summary.TopSpeed != nil {
		topSpeed = *sum.Summary.TopSpeed
	}
	if sum.Summary.AvgSpeed != nil {
		avgSpeed = *sum.Summary.AvgSpeed
	}
	if sum.Summary.AvgReleaseAngle != nil {
		avgAngle = *sum.Summary.AvgReleaseAngle
	}
	var missReason interface{}
	if sum.Summary.MostMissReason != nil {
		missReason = sum.Summary.MostMissReason.String()
	}

	_, err := s.Exec(query, sum.SessionID, sum.StartedAt.UnixNano(), sum.EndedAt.UnixNano(),
		sum.Summary.TotalScore, sum.Summary.ShotCount, topSpeed, avgSpeed, avgAngle, missReason)
	if err != nil {
		return fmt.Errorf("SaveSummary: Could not save session '%s', got '%v'", sum.SessionID, err)
	}
	return nil
}

//ListSessions returns the stored summaries, most recent first
func (s *Store) ListSessions() ([]game.SessionSummary, error) {
	rows, err := s.Query(`
		SELECT id, started_at, ended_at, total_score, shot_count, top_speed, avg_speed, avg_release_angle, most_miss_reason
		FROM sessions
		ORDER BY ended_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("ListSessions: Query failed, got '%v'", err)
	}
	defer rows.Close()

	sessions := make([]game.SessionSummary, 0)
	for rows.Next() {
		var (
			sum                game.SessionSummary
			startedAt, endedAt int64
			topSpeed           sql.NullFloat64
			avgSpeed, avgAngle sql.NullInt64
			missReason         sql.NullString
		)
		if err := rows.Scan(&sum.SessionID, &startedAt, &endedAt, &sum.Summary.TotalScore, &sum.Summary.ShotCount,
			&topSpeed, &avgSpeed, &avgAngle, &missReason); err != nil {
			return nil, fmt.Errorf("ListSessions: Scan failed, got '%v'", err)
		}

		sum.StartedAt = time.Unix(0, startedAt).UTC()
		sum.EndedAt = time.Unix(0, endedAt).UTC()
		if topSpeed.Valid {
			sum.Summary.TopSpeed = &topSpeed.Float64
		}
		if avgSpeed.Valid {
			v := int(avgSpeed.Int64)
			sum.Summary.AvgSpeed = &v
		}
		if avgAngle.Valid {
			v := int(avgAngle.Int64)
			sum.Summary.AvgReleaseAngle = &v
		}
		if missReason.Valid {
			r, err := shot.ParseReason(missReason.String)
			if err != nil {
				log.Printf("ListSessions: Session '%s' has a bad miss reason, got '%v'", sum.SessionID, err)
			} else {
				sum.Summary.MostMissReason = &r
				sum.Summary.MostMissLabel = r.String()
			}
		}
		sessions = append(sessions, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

//ShotsForSession returns a session's shots in the order they were taken
func (s *Store) ShotsForSession(sessionID string) ([]game.ShotRecord, error) {
	rows, err := s.Query(`
		SELECT id, session_id, shot_index, result, reason, speed, release_angle, path, recorded_at
		FROM shots
		WHERE session_id = ?
		ORDER BY shot_index, recorded_at
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("ShotsForSession: Query failed, got '%v'", err)
	}
	defer rows.Close()

	shots := make([]game.ShotRecord, 0)
	for rows.Next() {
		var (
			r                    game.ShotRecord
			result, reason, path string
			speed                sql.NullFloat64
			recordedAt           int64
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Index, &result, &reason, &speed,
			&r.Metrics.ReleaseAngleDegrees, &path, &recordedAt); err != nil {
			return nil, fmt.Errorf("ShotsForSession: Scan failed, got '%v'", err)
		}

		outcome, err := parseOutcome(result, reason)
		if err != nil {
			return nil, fmt.Errorf("ShotsForSession: Shot '%s', got '%v'", r.ID, err)
		}
		r.Metrics.Outcome = outcome

		r.Metrics.SpeedMetersPerSecond = math.NaN()
		if speed.Valid {
			r.Metrics.SpeedMetersPerSecond = speed.Float64
		}

		r.Path = make([]geometry.Point, 0)
		if err := json.Unmarshal([]byte(path), &r.Path); err != nil {
			return nil, fmt.Errorf("ShotsForSession: Shot '%s' has a bad path, got '%v'", r.ID, err)
		}
		r.RecordedAt = time.Unix(0, recordedAt).UTC()
		shots = append(shots, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return shots, nil
}

//Listen registers the store on the orchestrator so every shot and summary gets persisted
func (s *Store) Listen(o *game.Orchestrator) {
	o.OnShot(func(r game.ShotRecord) {
		if err := s.SaveShot(r); err != nil {
			log.Printf("Store: Error, got '%v'", err)
		}
	})
	o.OnSummary(func(sum game.SessionSummary) {
		if err := s.SaveSummary(sum); err != nil {
			log.Printf("Store: Error, got '%v'", err)
		}
	})
}

func parseOutcome(result, reason string) (shot.Outcome, error) {
	switch result {
	case "score":
		return shot.Scored(), nil
	case "miss":
		r, err := shot.ParseReason(reason)
		if err != nil {
			return shot.Outcome{}, err
		}
		return shot.Missed(r), nil
	}
	return shot.Outcome{}, fmt.Errorf("unknown shot result %q", result)
}

func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
