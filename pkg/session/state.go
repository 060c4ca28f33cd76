package session

import "fmt"

//State is a phase of a shooting session
type State int

const (
	Inactive State = iota
	SetupCamera
	DetectingHoop
	DetectedHoop
	DetectingPlayer
	DetectedPlayer
	TrackShots
	ShotCompleted
	ShowSummary
)

var stateNames = map[State]string{
	Inactive:        "Inactive",
	SetupCamera:     "SetupCamera",
	DetectingHoop:   "DetectingHoop",
	DetectedHoop:    "DetectedHoop",
	DetectingPlayer: "DetectingPlayer",
	DetectedPlayer:  "DetectedPlayer",
	TrackShots:      "TrackShots",
	ShotCompleted:   "ShotCompleted",
	ShowSummary:     "ShowSummary",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

//MarshalText lets states appear by name in JSON payloads
func (s State) MarshalText() ([]byte, error) {
	if _, ok := stateNames[s]; !ok {
		return nil, fmt.Errorf("unknown state %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", string(text))
}

//transitions lists, for each source state, the states it may move to. Inactive is added for every source except Inactive itself.
var transitions = map[State][]State{
	Inactive:        {SetupCamera},
	SetupCamera:     {DetectingHoop},
	DetectingHoop:   {DetectedHoop},
	DetectedHoop:    {DetectingPlayer, TrackShots},
	DetectingPlayer: {DetectedPlayer},
	DetectedPlayer:  {TrackShots},
	TrackShots:      {ShotCompleted, ShowSummary, DetectingHoop},
	ShotCompleted:   {ShowSummary, TrackShots},
	ShowSummary:     {DetectingPlayer},
}

//CanTransition reports whether the table allows moving from 'from' to 'to'
func CanTransition(from, to State) bool {
	if to == Inactive {
		return from != Inactive
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
