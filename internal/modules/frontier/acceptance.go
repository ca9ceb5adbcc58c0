package frontier

import "fmt"

// Acceptability rule names
const (
	RuleReturnOverRisk = "return_over_risk"
	RuleMinSharpe      = "min_sharpe"
	RuleMaxRisk        = "max_risk"
	RuleAll            = "all"
)

// Acceptance decides whether an envelope record is worth keeping
type Acceptance func(Record) bool

// ReturnCoversRisk accepts records whose return is at least ratio times their risk.
// ratio 1 is the default 1:1 rule.
func ReturnCoversRisk(ratio float64) Acceptance {
	return func(r Record) bool {
		return r.Metrics.Return-ratio*r.Metrics.Risk >= 0
	}
}

// SharpeAbove accepts records with a Sharpe ratio strictly above floor
func SharpeAbove(floor float64) Acceptance {
	return func(r Record) bool {
		return r.Metrics.Sharpe > floor
	}
}

// RiskAtMost accepts records whose risk does not exceed limit
func RiskAtMost(limit float64) Acceptance {
	return func(r Record) bool {
		return r.Metrics.Risk <= limit
	}
}

// AcceptAll keeps every record
func AcceptAll(Record) bool {
	return true
}

// DefaultAcceptance is the 1:1 return-to-risk rule
var DefaultAcceptance = ReturnCoversRisk(1)

// ParseAcceptance builds a named rule with its threshold
func ParseAcceptance(rule string, threshold float64) (Acceptance, error) {
	switch rule {
	case "", RuleReturnOverRisk:
		return ReturnCoversRisk(threshold), nil
	case RuleMinSharpe:
		return SharpeAbove(threshold), nil
	case RuleMaxRisk:
		return RiskAtMost(threshold), nil
	case RuleAll:
		return AcceptAll, nil
	default:
		return nil, fmt.Errorf("unknown acceptability rule: %s", rule)
	}
}
