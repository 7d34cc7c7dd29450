// ABOUTME: Response outcomes and the fields persisted for each response
// ABOUTME: Hit, Miss and FalseAlarm form a closed set of outcome variants
package stimulus

// Side identifies which response button was pressed.
type Side int

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideLeft {
		return "left"
	}
	return "right"
}

// SideOf returns the side reported for a pressed input. Left wins when both
// buttons are held.
func SideOf(left, right bool) Side {
	if left {
		return SideLeft
	}
	return SideRight
}

// Outcome is the classification of a tick that ended a response window.
type Outcome interface {
	outcome()
}

// Hit is a response made inside the detection window.
type Hit struct {
	ResponseTimeSec float64
	RespondedFaster bool
}

// Miss is a change that received no response within the detection window.
type Miss struct{}

// FalseAlarm is a response made while the train was steady.
type FalseAlarm struct {
	RespondedFaster bool
	At              float64    // trial-relative seconds
	State           TrainState // train state when the press was seen
}

func (Hit) outcome()        {}
func (Miss) outcome()       {}
func (FalseAlarm) outcome() {}

// Response is the direction judgement stored with each record.
type Response int

const (
	ResponseNone   Response = -1
	ResponseSlower Response = 0
	ResponseFaster Response = 1
)

// ResponseOf maps a direction judgement to a Response.
func ResponseOf(faster bool) Response {
	if faster {
		return ResponseFaster
	}
	return ResponseSlower
}

func (r Response) String() string {
	switch r {
	case ResponseFaster:
		return "faster"
	case ResponseSlower:
		return "slower"
	default:
		return "none"
	}
}

// NoClick marks ClickOnsetTime and ResponseTimeSec when nobody responded.
const NoClick = -1.0

// TrialInfo is the trial context set at trial start.
type TrialInfo struct {
	Index      int // trial number across the session
	BlockID    int
	TrialID    int // trial within block
	BlockType  int // 0 stationary, 1 slow walk, 2 natural walk
	Stationary bool
}

// ResponseFields are the trial-scoped outcome values stored next to an Event.
type ResponseFields struct {
	Trial           TrialInfo
	Correct         bool
	Response        Response
	ClickOnsetTime  float64
	ResponseTimeSec float64
}
