package adjustment

// Phase is the lifecycle stage of an instrument's overlay.
type Phase string

const (
	PhaseIdle      Phase = "IDLE"
	PhaseActive    Phase = "ACTIVE"
	PhaseReturning Phase = "RETURNING"
)

// State is the per-instrument memory carried between ApplyTick calls.
// It is owned by one display session and is not safe for concurrent use.
type State struct {
	Instrument string

	GoverningID           string
	AnchorPrice           float64
	Phase                 Phase
	LastSyntheticClose    float64
	LastPercent           float64
	ReturningStepCount    int
	ReturningStartPercent float64

	// anchors captured during the current episode, by adjustment id
	anchors map[string]float64

	// session bookkeeping; survives the adjustment lifecycle
	seen         bool
	lastEval     int64
	periodStart  int64
	periodOpen   float64
	periodHigh   float64
	periodLow    float64
	periodForced bool
}

// NewState creates an empty IDLE state bound to instrument.
func NewState(instrument string) *State {
	return &State{Instrument: instrument, Phase: PhaseIdle}
}

// Started reports whether at least one bar has been emitted.
func (s *State) Started() bool { return s.seen }

// LastEval is the evaluation time (epoch ms) of the latest accepted bar.
func (s *State) LastEval() int64 { return s.lastEval }

func (s *State) enterActive(id string, anchor float64) {
	s.Phase = PhaseActive
	s.GoverningID = id
	s.AnchorPrice = anchor
	if s.anchors == nil {
		s.anchors = make(map[string]float64)
	}
	s.anchors[id] = anchor
	s.ReturningStepCount = 0
	s.ReturningStartPercent = 0
}

func (s *State) enterReturning() {
	s.Phase = PhaseReturning
	s.ReturningStartPercent = s.LastPercent
	s.ReturningStepCount = 0
}

// reset drops everything tied to an adjustment and returns to IDLE.
func (s *State) reset() {
	s.Phase = PhaseIdle
	s.GoverningID = ""
	s.AnchorPrice = 0
	s.ReturningStepCount = 0
	s.ReturningStartPercent = 0
	s.anchors = nil
}

// anchorFor returns the anchor already captured for id in this episode.
func (s *State) anchorFor(id string) (float64, bool) {
	a, ok := s.anchors[id]
	return a, ok
}

func (s *State) record(bar Tick, at int64, modified bool) {
	s.seen = true
	s.lastEval = at
	s.LastSyntheticClose = bar.Bar.Close
	s.LastPercent = bar.Bar.ManipulationPercent
	if bar.NewPeriod {
		s.periodStart = bar.Bar.Timestamp
		s.periodOpen = bar.Bar.Open
		s.periodHigh = bar.Bar.High
		s.periodLow = bar.Bar.Low
		s.periodForced = modified
		return
	}
	s.periodHigh = max(s.periodHigh, bar.Bar.High)
	s.periodLow = min(s.periodLow, bar.Bar.Low)
	s.periodForced = s.periodForced || modified
}
