package rules

// Operator is the closed set of condition operators. Rule sets arrive with
// stringly-typed operators from the API; ParseOperator rejects anything
// outside this set at compile time instead of silently falling back to
// equality.
type Operator int

const (
	OpEquals Operator = iota
	OpNotEquals
	OpGreaterThan
	OpLessThan
	OpGreaterThanOrEqual
	OpLessThanOrEqual
	OpBetween
	OpContains
	OpStartsWith
	OpEndsWith
	OpInLast
	OpNotInLast
	OpIsNull
	OpIsNotNull
	OpExists
	OpNotExists
)

var operatorNames = map[string]Operator{
	"equals":             OpEquals,
	"notEquals":          OpNotEquals,
	"greaterThan":        OpGreaterThan,
	"lessThan":           OpLessThan,
	"greaterThanOrEqual": OpGreaterThanOrEqual,
	"lessThanOrEqual":    OpLessThanOrEqual,
	"between":            OpBetween,
	"contains":           OpContains,
	"startsWith":         OpStartsWith,
	"endsWith":           OpEndsWith,
	"inLast":             OpInLast,
	"notInLast":          OpNotInLast,
	"isNull":             OpIsNull,
	"isNotNull":          OpIsNotNull,
	"exists":             OpExists,
	"notExists":          OpNotExists,
}

// ParseOperator maps a wire-format operator name to its Operator.
func ParseOperator(name string) (Operator, bool) {
	op, ok := operatorNames[name]
	return op, ok
}

// String returns the wire-format name of the operator.
func (o Operator) String() string {
	for name, op := range operatorNames {
		if op == o {
			return name
		}
	}
	return "unknown"
}

// NeedsValue reports whether the operator requires a comparison value.
// Existence checks carry no value.
func (o Operator) NeedsValue() bool {
	switch o {
	case OpIsNull, OpIsNotNull, OpExists, OpNotExists:
		return false
	}
	return true
}
