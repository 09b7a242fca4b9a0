/*
pattern.go - Work/rest cycle inference from daily history

PURPOSE:
  Infers the rotating work/rest cycle governing a post from its daily
  assignment history. The two rotations that dominate the field are
  4-on/4-off (cycle 8) and 5-on/2-off (cycle 7), but the detector runs a
  generic shortest-cycle search so that other real rotations (6x1, 7x7, ...)
  come back as a tagged custom descriptor instead of being silently
  misclassified.

ALGORITHM:
  A candidate cycle of length L is the first L days of the history, and is
  admissible only when it has the canonical shape: a block of worked days
  followed by a block of rest days, both non-empty. The candidate matches
  when every day i of the history equals the candidate at i mod L. The
  shortest matching candidate wins.

FALLBACK:
  Detection never fails: with fewer than 7 days of history, or when no
  candidate matches (noisy history, manual overrides), the detector returns
  the default 4x4 descriptor tagged KindDefault so callers can tell a
  verified detection from a guess. Downstream generation must proceed even
  with unusable history.

SEE ALSO:
  - continuity.go: Projects a detected pattern into the next period
  - generator.go: Runs detection per post during monthly replication
*/
package rota

// =============================================================================
// PATTERN DESCRIPTOR
// =============================================================================

type PatternKind string

const (
	// KindFourFour is the 4 worked / 4 rest rotation (cycle length 8).
	KindFourFour PatternKind = "4x4"

	// KindFiveTwo is the 5 worked / 2 rest rotation (cycle length 7).
	KindFiveTwo PatternKind = "5x2"

	// KindCustom is any other verified work/rest rotation.
	KindCustom PatternKind = "custom"

	// KindDefault marks the 4x4 fallback used when history is too short
	// or inconsistent. It is a documented guess, not a verified detection.
	KindDefault PatternKind = "default"
)

// PatternDescriptor describes a rotation: WorkDays worked days followed by
// RestDays rest days, repeating every CycleLength days.
type PatternDescriptor struct {
	Kind        PatternKind
	CycleLength int
	WorkDays    int
	RestDays    int
}

// Verified reports whether the descriptor came from an actual match rather
// than the fallback.
func (p PatternDescriptor) Verified() bool { return p.Kind != KindDefault }

// DefaultPattern returns the 4x4 fallback descriptor.
func DefaultPattern() PatternDescriptor {
	return PatternDescriptor{Kind: KindDefault, CycleLength: 8, WorkDays: 4, RestDays: 4}
}

// Descriptor maps a role's configured rotation onto a descriptor. Unlike
// the detector fallback this is a verified rotation; it carries the
// matching named kind.
func (r RolePattern) Descriptor() PatternDescriptor {
	return describe(r.CycleLength(), r.WorkDays)
}

// Detection bounds. Histories shorter than minHistoryDays are not trusted;
// rotations longer than maxCycleLength are not searched for.
const (
	minHistoryDays = 7
	maxCycleLength = 14
)

// =============================================================================
// DETECTOR
// =============================================================================

// DetectPattern infers the rotation from an ordered worked/rest history
// (true = duty day). It always returns a usable descriptor; see the
// fallback notes in the file header.
func DetectPattern(history []bool) PatternDescriptor {
	if len(history) < minHistoryDays {
		return DefaultPattern()
	}

	// Leading worked run. A history that opens mid-rest has no canonical
	// candidate window and falls through to the default.
	lead := 0
	for lead < len(history) && history[lead] {
		lead++
	}
	if lead == 0 {
		return DefaultPattern()
	}

	for length := lead + 1; length <= maxCycleLength && length <= len(history); length++ {
		workDays := lead
		if !canonicalWindow(history[:length], workDays) {
			continue
		}
		if matchesCycle(history, length, workDays) {
			return describe(length, workDays)
		}
	}

	return DefaultPattern()
}

// StatesToWorked classifies an ordered day-state sequence for detection.
func StatesToWorked(states []DayState) []bool {
	worked := make([]bool, len(states))
	for i, s := range states {
		worked[i] = !s.IsRest()
	}
	return worked
}

// canonicalWindow checks that the window is workDays worked days followed
// only by rest days.
func canonicalWindow(window []bool, workDays int) bool {
	if workDays < 1 || workDays >= len(window) {
		return false
	}
	for i, w := range window {
		if w != (i < workDays) {
			return false
		}
	}
	return true
}

// matchesCycle checks that the whole history replicates the candidate at
// index mod length.
func matchesCycle(history []bool, length, workDays int) bool {
	for i, w := range history {
		if w != (i%length < workDays) {
			return false
		}
	}
	return true
}

func describe(length, workDays int) PatternDescriptor {
	kind := KindCustom
	switch {
	case length == 8 && workDays == 4:
		kind = KindFourFour
	case length == 7 && workDays == 5:
		kind = KindFiveTwo
	}
	return PatternDescriptor{
		Kind:        kind,
		CycleLength: length,
		WorkDays:    workDays,
		RestDays:    length - workDays,
	}
}
