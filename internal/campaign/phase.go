package campaign

// Phase is the Wyckoff accumulation/distribution phase a campaign is in.
type Phase string

const (
	PhaseNone Phase = ""
	PhaseA    Phase = "A"
	PhaseB    Phase = "B"
	PhaseC    Phase = "C"
	PhaseD    Phase = "D"
	PhaseE    Phase = "E"
)

var phaseRank = map[Phase]int{
	PhaseA: 1,
	PhaseB: 2,
	PhaseC: 3,
	PhaseD: 4,
	PhaseE: 5,
}

// Rank returns the position of the phase in the A→E progression; PhaseNone is 0.
func (p Phase) Rank() int {
	return phaseRank[p]
}

func (p Phase) Known() bool {
	return p == PhaseNone || phaseRank[p] > 0
}

// PhaseStepAllowed reports whether a campaign in phase `from` may observe a
// pattern belonging to phase `to`. The progression is monotonic: staying in
// the current phase or advancing exactly one phase is legal, reverting or
// skipping is not. The single exception is a reset to Phase A when a new
// trading range is detected, which callers signal with newRange.
func PhaseStepAllowed(from, to Phase, newRange bool) bool {
	if to == PhaseA && newRange {
		return true
	}
	if from == PhaseNone {
		return to.Rank() > 0
	}
	diff := to.Rank() - from.Rank()
	return diff == 0 || diff == 1
}

// PatternPhases maps each pattern type to the phases in which it is
// structurally valid. A pattern observed outside its phases is a hard
// sequence rejection, not a confidence penalty.
var PatternPhases = map[PatternType][]Phase{
	PatternSellingClimax:      {PhaseA},
	PatternAutomaticRally:     {PhaseA},
	PatternSecondaryTest:      {PhaseB},
	PatternSpring:             {PhaseC},
	PatternSignOfStrength:     {PhaseC, PhaseD},
	PatternLastPointOfSupport: {PhaseD, PhaseE},
	PatternUpthrust:           {PhaseC, PhaseD},
}

// PhaseFor returns the earliest phase a pattern type may appear in. Used to
// place the first pattern of a new campaign.
func PhaseFor(t PatternType) Phase {
	phases := PatternPhases[t]
	if len(phases) == 0 {
		return PhaseNone
	}
	return phases[0]
}

// PatternAllowedIn reports whether the pattern type is structurally valid in
// the given phase.
func PatternAllowedIn(t PatternType, p Phase) bool {
	for _, allowed := range PatternPhases[t] {
		if allowed == p {
			return true
		}
	}
	return false
}
