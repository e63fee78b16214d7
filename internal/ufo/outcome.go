package ufo

// Outcome classifies the result of one physics step.
type Outcome int

const (
	Continuing Outcome = iota
	Landed
	Crashed
)

func (o Outcome) String() string {
	switch o {
	case Continuing:
		return "continuing"
	case Landed:
		return "landed"
	case Crashed:
		return "crashed"
	default:
		return "unknown"
	}
}
