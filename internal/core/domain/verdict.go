// internal/core/domain/verdict.go
package domain

// Verdict is the outcome of a single rule
type Verdict string

const (
	VerdictPass   Verdict = "pass"
	VerdictWarn   Verdict = "warn"
	VerdictReject Verdict = "reject"
)

// Finding is one rule's verdict with a human readable explanation
type Finding struct {
	Rule    string  `json:"rule"`
	Verdict Verdict `json:"verdict"`
	Message string  `json:"message,omitempty"`
}

// Pass returns a passing finding for rule
func Pass(rule string) Finding {
	return Finding{Rule: rule, Verdict: VerdictPass}
}

// Warn returns a warning finding for rule
func Warn(rule, msg string) Finding {
	return Finding{Rule: rule, Verdict: VerdictWarn, Message: msg}
}

// Reject returns a rejecting finding for rule
func Reject(rule, msg string) Finding {
	return Finding{Rule: rule, Verdict: VerdictReject, Message: msg}
}

// VerdictSet is the ordered result of evaluating every enabled rule.
// Findings holds only non-pass outcomes, so a clean movement has none.
type VerdictSet struct {
	Findings  []Finding `json:"findings"`
	Evaluated []string  `json:"evaluated"`
}

// Add records f, keeping it only when it is not a pass
func (v *VerdictSet) Add(f Finding) {
	v.Evaluated = append(v.Evaluated, f.Rule)
	if f.Verdict != VerdictPass {
		v.Findings = append(v.Findings, f)
	}
}

// Overall folds the findings into one verdict
func (v VerdictSet) Overall() Verdict {
	overall := VerdictPass
	for _, f := range v.Findings {
		switch f.Verdict {
		case VerdictReject:
			return VerdictReject
		case VerdictWarn:
			overall = VerdictWarn
		}
	}
	return overall
}

// Rejected reports whether any finding rejects
func (v VerdictSet) Rejected() bool {
	return v.Overall() == VerdictReject
}

// Rejections returns the rejecting findings
func (v VerdictSet) Rejections() []Finding {
	var out []Finding
	for _, f := range v.Findings {
		if f.Verdict == VerdictReject {
			out = append(out, f)
		}
	}
	return out
}

// Has reports whether rule produced a finding with the given verdict
func (v VerdictSet) Has(rule string, verdict Verdict) bool {
	for _, f := range v.Findings {
		if f.Rule == rule && f.Verdict == verdict {
			return true
		}
	}
	return false
}
