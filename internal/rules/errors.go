package rules

import "fmt"

// InvalidRuleError reports a malformed segment condition. It is raised at
// compile time and surfaced synchronously to the caller (segment preview,
// campaign creation); it is never swallowed into the delivery path.
type InvalidRuleError struct {
	Field    string
	Operator string
	Reason   string
}

func (e *InvalidRuleError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid rule: %s", e.Reason)
	}
	return fmt.Sprintf("invalid rule on field %q (operator %q): %s", e.Field, e.Operator, e.Reason)
}
