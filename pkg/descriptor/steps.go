package descriptor

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/gplmt/pkg/isodate"
	"github.com/cuemby/gplmt/pkg/types"
)

func convertSteps(xmlSteps []xmlStep) ([]types.StepNode, error) {
	nodes := make([]types.StepNode, 0, len(xmlSteps))
	for _, s := range xmlSteps {
		n, err := convertStep(s)
		if err != nil {
			return nil, err
		}
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

func targetList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}

func convertStep(s xmlStep) (types.StepNode, error) {
	switch s.XMLName.Local {
	case "step":
		if s.Targets == "" || s.Tasklist == "" {
			// Matches the original's "step has no targets/tasklist,
			// skipping" warning path rather than a syntax error.
			return nil, nil
		}
		startRel, startAbs, err := parseDelayAttrs(s.StartRelative, s.StartAbsolute)
		if err != nil {
			return nil, err
		}
		stopRel, stopAbs, err := parseDelayAttrs(s.StopRelative, s.StopAbsolute)
		if err != nil {
			return nil, err
		}
		return types.StepTasklist{
			Tasklist:      s.Tasklist,
			Targets:       targetList(s.Targets),
			Env:           convertExportEnv(s.ExportEnv),
			Background:    strings.EqualFold(s.Background, "true"),
			StartRelative: startRel,
			StartAbsolute: startAbs,
			StopRelative:  stopRel,
			StopAbsolute:  stopAbs,
		}, nil

	case "synchronize":
		return types.StepSynchronize{}, nil

	case "register-teardown":
		if s.Targets == "" || s.Tasklist == "" {
			return nil, nil
		}
		return types.StepRegisterTeardown{
			Tasklist: s.Tasklist,
			Targets:  targetList(s.Targets),
			Env:      convertExportEnv(s.ExportEnv),
		}, nil

	case "loop":
		return convertLoop(s)

	default:
		return nil, &types.SyntaxError{Message: fmt.Sprintf("invalid step %q", s.XMLName.Local)}
	}
}

// convertLoop enforces the mutual exclusivity the original implements
// as a sequence of early-returns (repeat, then duration, then
// list+param, then until) by instead rejecting any description that
// specifies more than one mode up front -- ambiguous intent is a
// syntax error rather than "whichever attribute happens to be checked
// first wins" (spec.md §9 Open Question decision).
func convertLoop(s xmlStep) (types.StepNode, error) {
	body, err := convertSteps(s.Children)
	if err != nil {
		return nil, err
	}

	modes := 0
	if s.Repeat != "" {
		modes++
	}
	if s.Duration != "" {
		modes++
	}
	if s.List != "" || s.Param != "" {
		modes++
	}
	if s.Until != "" {
		modes++
	}
	if modes == 0 {
		return nil, &types.SyntaxError{Message: "loop has no repeat, duration, list, or until"}
	}
	if modes > 1 {
		return nil, &types.SyntaxError{Message: "loop specifies more than one of repeat/duration/list/until"}
	}

	if s.Repeat != "" {
		n, err := strconv.Atoi(s.Repeat)
		if err != nil {
			return nil, &types.SyntaxError{Message: fmt.Sprintf("loop has malformed repeat attribute %q", s.Repeat)}
		}
		return types.StepLoop{Mode: types.LoopCounted, Repeat: n, Body: body}, nil
	}

	if s.Duration != "" {
		d, err := isodate.ParseDuration(s.Duration)
		if err != nil {
			return nil, &types.SyntaxError{Message: fmt.Sprintf("loop has invalid duration %q: %v", s.Duration, err)}
		}
		return types.StepLoop{Mode: types.LoopUntil, Duration: d, Body: body}, nil
	}

	if s.List != "" || s.Param != "" {
		if s.List == "" {
			return nil, &types.SyntaxError{Message: "missing list definition"}
		}
		if s.Param == "" {
			return nil, &types.SyntaxError{Message: "missing parameter definition"}
		}
		return types.StepLoop{Mode: types.LoopListing, List: expandListing(s.List), Param: s.Param, Body: body}, nil
	}

	until, err := isodate.ParseTimestamp(s.Until)
	if err != nil {
		return nil, &types.SyntaxError{Message: fmt.Sprintf("loop has invalid until %q: %v", s.Until, err)}
	}
	return types.StepLoop{Mode: types.LoopUntil, Until: until, Body: body}, nil
}

// expandListing implements the original's two listing syntaxes: an
// "a:b" integer range (inclusive of both ends) or a space-separated
// literal element list.
func expandListing(listing string) []string {
	if lo, hi, ok := parseRange(listing); ok {
		out := make([]string, 0, hi-lo+1)
		for i := lo; i <= hi; i++ {
			out = append(out, strconv.Itoa(i))
		}
		return out
	}
	return strings.Fields(listing)
}

// parseDelayAttrs parses the "<prefix>_relative"/"<prefix>_absolute"
// attribute pair used by start/stop delays on a <step>; at most one of
// relative/absolute is expected to be non-empty, matching the
// original's get_delay_attr.
func parseDelayAttrs(relative, absolute string) (time.Duration, time.Time, error) {
	if relative != "" {
		d, err := isodate.ParseDuration(relative)
		if err != nil {
			return 0, time.Time{}, &types.SyntaxError{Message: fmt.Sprintf("invalid relative delay %q: %v", relative, err)}
		}
		return d, time.Time{}, nil
	}
	if absolute != "" {
		t, err := isodate.ParseTimestamp(absolute)
		if err != nil {
			return 0, time.Time{}, &types.SyntaxError{Message: fmt.Sprintf("invalid absolute delay %q: %v", absolute, err)}
		}
		return 0, t, nil
	}
	return 0, time.Time{}, nil
}

func parseRange(listing string) (lo, hi int, ok bool) {
	parts := strings.Split(listing, ":")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lo, err1 := strconv.Atoi(parts[0])
	hi, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lo, hi, true
}
