package shot

import (
	"encoding/json"
	"fmt"
	"math"
)

//Kind tells whether a shot went in. The zero value is not a valid kind.
type Kind int

const (
	Unknown Kind = iota
	Score
	Miss
)

//Reason explains a miss
type Reason int

const (
	NoReason Reason = iota
	Short
	Long
	Rim
)

func (r Reason) String() string {
	switch r {
	case Short:
		return "short"
	case Long:
		return "long"
	case Rim:
		return "rim"
	}
	return ""
}

//ParseReason is the inverse of Reason.String
func ParseReason(s string) (Reason, error) {
	switch s {
	case "":
		return NoReason, nil
	case "short":
		return Short, nil
	case "long":
		return Long, nil
	case "rim":
		return Rim, nil
	}
	return NoReason, fmt.Errorf("unknown miss reason %q", s)
}

//Outcome is Score or Miss(reason). Use Scored and Missed to build one.
type Outcome struct {
	kind   Kind
	reason Reason
}

func Scored() Outcome {
	return Outcome{kind: Score}
}

func Missed(reason Reason) Outcome {
	return Outcome{kind: Miss, reason: reason}
}

func (o Outcome) Kind() Kind { return o.kind }
func (o Outcome) Reason() Reason { return o.reason }
func (o Outcome) IsScore() bool { return o.kind == Score }

func (o Outcome) String() string {
	switch o.kind {
	case Score:
		return "score"
	case Miss:
		return "miss(" + o.reason.String() + ")"
	}
	return "unknown"
}

type outcomeJSON struct {
	Result string `json:"result"`
	Reason string `json:"reason,omitempty"`
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	switch o.kind {
	case Score:
		return json.Marshal(outcomeJSON{Result: "score"})
	case Miss:
		return json.Marshal(outcomeJSON{Result: "miss", Reason: o.reason.String()})
	}
	return nil, fmt.Errorf("outcome has no result")
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var v outcomeJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v.Result {
	case "score":
		*o = Scored()
	case "miss":
		r, err := ParseReason(v.Reason)
		if err != nil {
			return err
		}
		*o = Missed(r)
	default:
		return fmt.Errorf("unknown shot result %q", v.Result)
	}
	return nil
}

//Metrics is created once per completed shot and never mutated afterwards
type Metrics struct {
	Outcome              Outcome `json:"outcome"`
	SpeedMetersPerSecond float64 `json:"speedMetersPerSecond"`
	ReleaseAngleDegrees  float64 `json:"releaseAngleDegrees"`
}

//MarshalJSON reports an unknown (non-finite) speed as null
func (m Metrics) MarshalJSON() ([]byte, error) {
	var speed *float64
	if !math.IsNaN(m.SpeedMetersPerSecond) && !math.IsInf(m.SpeedMetersPerSecond, 0) {
		speed = &m.SpeedMetersPerSecond
	}
	return json.Marshal(struct {
		Outcome              Outcome  `json:"outcome"`
		SpeedMetersPerSecond *float64 `json:"speedMetersPerSecond"`
		ReleaseAngleDegrees  float64  `json:"releaseAngleDegrees"`
	}{m.Outcome, speed, m.ReleaseAngleDegrees})
}
