package checks

// Policy decides what a check's detection error means.
type Policy int

const (
	// FailClosed treats any detection error as a violation. Used for
	// checks whose false-negative is high-risk: silently passing would let
	// a bad edit through undetected.
	FailClosed Policy = iota

	// FailOpen logs a detection error and treats the check as passed.
	// Used for best-effort polish checks so transient parsing noise does
	// not block otherwise-correct edits.
	FailOpen
)

// String renders the policy for logs.
func (p Policy) String() string {
	if p == FailOpen {
		return "fail-open"
	}
	return "fail-closed"
}

// policyTable is the explicit, reviewable check-to-policy mapping.
// Geometry and opening checks are fail-closed; realism polish is
// fail-open. Miscategorizing a safety-critical check as fail-open would
// silently defeat the validator, so additions here get reviewed against
// that risk tier, not convenience.
var policyTable = map[string]Policy{
	CheckPerspective: FailClosed,
	CheckWallPlane:   FailClosed,
	CheckWindowCount: FailClosed,
	CheckFixtures:    FailClosed,
	CheckFieldOfView: FailClosed,
	CheckFurniture:   FailOpen,
	CheckRealism:     FailOpen,
}

// PolicyFor returns the fail policy for a check name. Unknown checks are
// fail-closed: the safe default for anything not yet reviewed.
func PolicyFor(name string) Policy {
	if p, ok := policyTable[name]; ok {
		return p
	}
	return FailClosed
}
