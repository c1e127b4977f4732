// Package rules enforces externally generated entry vetoes. The rule file is
// produced offline by the optimizer and promoted by replacing the file; it is
// re-read on every check so promotions take effect without a restart.
package rules

import (
	"encoding/json"
	"os"

	"greenlight-go/internal/signal"
)

// Rule is one veto condition against a named signal.
type Rule struct {
	Name      string  `json:"rule"`
	Signal    string  `json:"signal"`
	Op        string  `json:"op"` // "gt", "lt", "gte", "lte"
	Threshold float64 `json:"threshold"`
}

type ruleFile struct {
	GeneratedRules []Rule `json:"generated_rules"`
}

// Checker evaluates the rule file at Path against a signal snapshot. An empty
// path disables vetoes entirely.
type Checker struct {
	Path string
}

// load reads the file fresh. Any failure means no active rules; vetoes are an
// optimization, not a safety control, so unavailability fails open.
func (c Checker) load() []Rule {
	if c.Path == "" {
		return nil
	}
	raw, err := os.ReadFile(c.Path)
	if err != nil {
		return nil
	}
	var f ruleFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return f.GeneratedRules
}

func (r Rule) matches(v float64) bool {
	switch r.Op {
	case "gt":
		return v > r.Threshold
	case "lt":
		return v < r.Threshold
	case "gte":
		return v >= r.Threshold
	case "lte":
		return v <= r.Threshold
	default:
		return false
	}
}

// Veto returns the first rule whose referenced signal is present and matches.
// A rule over an absent signal never blocks.
func (c Checker) Veto(signals map[string]signal.Float) (Rule, bool) {
	for _, r := range c.load() {
		v, ok := signals[r.Signal]
		if !ok || !v.Valid {
			continue
		}
		if r.matches(v.Value) {
			return r, true
		}
	}
	return Rule{}, false
}
