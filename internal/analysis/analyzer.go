// Package analysis classifies log entries by matching their messages
// against compiled pattern sets.
package analysis

import (
	"regexp"

	"github.com/coffersTech/logpipe/internal/model"
)

// Severity levels in escalation order.
const (
	SeverityNormal   = "normal"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Category names attached to matched entries.
const (
	CategoryError    = "error"
	CategoryWarning  = "warning"
	CategorySecurity = "security"
)

// Report is the outcome of analyzing one entry.
type Report struct {
	Severity    string   `json:"severity"`
	Categories  []string `json:"categories"`
	Suggestions []string `json:"suggestions"`
	Patterns    []string `json:"patterns_found"`
}

var (
	errorPatterns = compileAll(
		`Exception|Error|Failed|Timeout|Connection refused`,
		`HTTP \d{3}`,
		`ORA-\d{5}`,
		`MySQL.*error`,
	)
	warningPatterns = compileAll(
		`Warning|Deprecated|Deprecation`,
		`Slow query|Performance issue`,
		`Resource.*low|Memory.*high`,
	)
	securityPatterns = compileAll(
		`Unauthorized|Forbidden|Authentication failed`,
		`SQL injection|XSS|CSRF`,
		`Failed login|Invalid credentials`,
	)

	suggestions = map[string]string{
		CategoryError:    "Check related services and dependencies",
		CategorySecurity: "Review security configuration immediately",
		CategoryWarning:  "Monitor system performance",
	}
)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		out = append(out, regexp.MustCompile(`(?i)`+expr))
	}
	return out
}

// Analyzer classifies entries into severity, categories and advisory
// suggestions. It is a pure function of the entry's message: deterministic
// and free of side effects, safe for any number of concurrent callers.
type Analyzer struct{}

// NewAnalyzer returns an Analyzer. Pattern sets are compiled once at package
// load.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze matches the entry's message against the error, warning and
// security pattern sets. Severity escalates monotonically: normal -> medium
// (warning) -> high (error) -> critical (security, overrides everything).
// Categories accumulate without duplicates.
func (a *Analyzer) Analyze(entry model.LogEntry) Report {
	report := Report{
		Severity:    SeverityNormal,
		Categories:  []string{},
		Suggestions: []string{},
		Patterns:    []string{},
	}
	msg := entry.Message

	for _, re := range errorPatterns {
		if re.MatchString(msg) {
			report.Severity = SeverityHigh
			addCategory(&report, CategoryError)
			report.Patterns = append(report.Patterns, re.String())
		}
	}

	for _, re := range warningPatterns {
		if re.MatchString(msg) {
			if report.Severity == SeverityNormal {
				report.Severity = SeverityMedium
			}
			addCategory(&report, CategoryWarning)
			report.Patterns = append(report.Patterns, re.String())
		}
	}

	for _, re := range securityPatterns {
		if re.MatchString(msg) {
			report.Severity = SeverityCritical
			addCategory(&report, CategorySecurity)
			report.Patterns = append(report.Patterns, re.String())
		}
	}

	for _, cat := range report.Categories {
		if s, ok := suggestions[cat]; ok {
			report.Suggestions = append(report.Suggestions, s)
		}
	}

	return report
}

func addCategory(r *Report, cat string) {
	for _, existing := range r.Categories {
		if existing == cat {
			return
		}
	}
	r.Categories = append(r.Categories, cat)
}
