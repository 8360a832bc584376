package pipeline

import (
	"fmt"
	"strings"
)

// Phase is one of the four sequential stages of a pipeline.
type Phase int

const (
	PhaseRead Phase = iota
	PhaseProcess
	PhaseRender
	PhaseWrite
)

// Phases lists every phase in execution order.
var Phases = []Phase{PhaseRead, PhaseProcess, PhaseRender, PhaseWrite}

func (p Phase) String() string {
	switch p {
	case PhaseRead:
		return "read"
	case PhaseProcess:
		return "process"
	case PhaseRender:
		return "render"
	case PhaseWrite:
		return "write"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ParsePhase converts a phase name as written in configuration files.
func ParsePhase(s string) (Phase, error) {
	for _, p := range Phases {
		if strings.EqualFold(strings.TrimSpace(s), p.String()) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", s)
}

func (p Phase) valid() bool { return p >= PhaseRead && p <= PhaseWrite }
