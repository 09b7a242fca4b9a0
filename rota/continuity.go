/*
continuity.go - Phase-preserving projection across period boundaries

PURPOSE:
  Given a detected rotation and the day-by-day history of the source period,
  generates the worked/rest sequence for every day of the target period so
  that the rotation continues seamlessly across the month boundary,
  regardless of the two periods' differing lengths.

KEY INSIGHT:
  The only thing that matters from the source period is the PHASE reached
  on its last day: how deep into the current worked (or rest) block the
  rotation is. The phase is recovered from the trailing run of identical
  state ending on the last source day:

    trailing worked run of r days -> phase = r - 1
    trailing rest run of r days   -> phase = workDays + r - 1

  Day d (1-based) of the target period is then worked iff
  (phase + d) mod cycleLength < workDays.

FALLBACK:
  An empty source period projects every target day as worked. A brand-new
  post must not receive an all-rest month; the first real month of history
  corrects the rotation.

SEE ALSO:
  - pattern.go: Produces the descriptor consumed here
  - generator.go: Applies the projected sequence to daily assignments
*/
package rota

// =============================================================================
// CONTINUITY PROJECTOR
// =============================================================================

// ProjectContinuity extends the rotation from the source sequence into a
// target period of targetDays days. The source sequence uses the same
// classification as the detector (true = duty day).
func ProjectContinuity(p PatternDescriptor, source []bool, targetDays int) []bool {
	if targetDays <= 0 {
		return nil
	}

	out := make([]bool, targetDays)
	if len(source) == 0 {
		for i := range out {
			out[i] = true
		}
		return out
	}

	phase := endPhase(p, source)
	for d := 1; d <= targetDays; d++ {
		dayPhase := (phase + d) % p.CycleLength
		out[d-1] = dayPhase < p.WorkDays
	}
	return out
}

// endPhase computes the cycle position reached on the last source day.
func endPhase(p PatternDescriptor, source []bool) int {
	last := source[len(source)-1]
	run := 0
	for i := len(source) - 1; i >= 0 && source[i] == last; i-- {
		run++
	}

	if last {
		return (run - 1) % p.CycleLength
	}
	return (p.WorkDays + run - 1) % p.CycleLength
}
