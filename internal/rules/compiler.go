// Package rules compiles declarative segment rule sets into executable
// audience predicates. A compiled predicate evaluates customers in memory and
// renders the equivalent MongoDB filter, so previews, tests and the store all
// share one set of operator semantics.
package rules

import (
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/pulsecrm/pulse-crm-backend/internal/models"
)

// clause is one compiled condition: an in-memory matcher plus its Mongo
// filter document.
type clause struct {
	match  func(*models.Customer) bool
	filter bson.M
}

// Predicate is a compiled rule set.
type Predicate struct {
	conditionType string
	clauses       []clause
}

// Compile validates and compiles a rule set using the wall clock for
// relative-date operators.
func Compile(rs models.RuleSet) (*Predicate, error) {
	return CompileAt(rs, time.Now)
}

// CompileAt compiles a rule set with an injected clock. Relative-date cutoffs
// (inLast/notInLast) are fixed at compile time.
func CompileAt(rs models.RuleSet, now func() time.Time) (*Predicate, error) {
	conditionType := rs.ConditionType
	switch conditionType {
	case "":
		conditionType = models.ConditionTypeAnd
	case models.ConditionTypeAnd, models.ConditionTypeOr:
	default:
		return nil, &InvalidRuleError{Reason: "conditionType must be AND or OR"}
	}
	if len(rs.Conditions) == 0 {
		return nil, &InvalidRuleError{Reason: "conditions must not be empty"}
	}

	p := &Predicate{conditionType: conditionType}
	for _, cond := range rs.Conditions {
		cl, err := compileCondition(cond, now)
		if err != nil {
			return nil, err
		}
		p.clauses = append(p.clauses, cl)
	}
	return p, nil
}

// Matches evaluates the predicate against a single customer.
func (p *Predicate) Matches(c *models.Customer) bool {
	if p.conditionType == models.ConditionTypeOr {
		for _, cl := range p.clauses {
			if cl.match(c) {
				return true
			}
		}
		return false
	}
	for _, cl := range p.clauses {
		if !cl.match(c) {
			return false
		}
	}
	return true
}

// MongoFilter renders the predicate as a MongoDB filter document.
func (p *Predicate) MongoFilter() bson.M {
	filters := make([]bson.M, 0, len(p.clauses))
	for _, cl := range p.clauses {
		filters = append(filters, cl.filter)
	}
	if p.conditionType == models.ConditionTypeOr {
		return bson.M{"$or": filters}
	}
	return bson.M{"$and": filters}
}

func compileCondition(cond models.Condition, now func() time.Time) (clause, error) {
	if cond.Field == "" {
		return clause{}, &InvalidRuleError{Operator: cond.Operator, Reason: "field is required"}
	}
	if cond.Operator == "" {
		return clause{}, &InvalidRuleError{Field: cond.Field, Reason: "operator is required"}
	}
	op, known := ParseOperator(cond.Operator)
	if !known {
		return clause{}, &InvalidRuleError{Field: cond.Field, Operator: cond.Operator, Reason: "unknown operator"}
	}
	if op.NeedsValue() && cond.Value == nil {
		return clause{}, &InvalidRuleError{Field: cond.Field, Operator: cond.Operator, Reason: "value is required"}
	}

	field := cond.Field
	value := cond.Value

	switch op {
	case OpEquals, OpNotEquals:
		return compileEquality(field, op, value)

	case OpGreaterThan, OpLessThan, OpGreaterThanOrEqual, OpLessThanOrEqual:
		return compileOrdering(field, op, value)

	case OpBetween:
		return compileBetween(field, value)

	case OpContains, OpStartsWith, OpEndsWith:
		text, ok := value.(string)
		if !ok {
			return clause{}, &InvalidRuleError{Field: field, Operator: cond.Operator, Reason: "value must be a string"}
		}
		return compileText(field, op, text), nil

	case OpInLast, OpNotInLast:
		days, ok := toFloat(value)
		if !ok || days < 0 {
			return clause{}, &InvalidRuleError{Field: field, Operator: cond.Operator, Reason: "value must be a non-negative number of days"}
		}
		return compileRelativeDate(field, op, days, now), nil

	case OpIsNull, OpNotExists:
		return clause{
			match: func(c *models.Customer) bool {
				_, present := fieldValue(c, field)
				return !present
			},
			filter: existenceFilter(field, op),
		}, nil

	case OpIsNotNull, OpExists:
		return clause{
			match: func(c *models.Customer) bool {
				_, present := fieldValue(c, field)
				return present
			},
			filter: existenceFilter(field, op),
		}, nil
	}

	return clause{}, &InvalidRuleError{Field: field, Operator: cond.Operator, Reason: "unknown operator"}
}

func compileEquality(field string, op Operator, value interface{}) (clause, error) {
	match := func(c *models.Customer) bool {
		v, present := fieldValue(c, field)
		if !present {
			return false
		}
		equal := valuesEqual(v, value, isDateField(field))
		if op == OpNotEquals {
			return !equal
		}
		return equal
	}

	var filter bson.M
	if text, ok := value.(string); ok && !isDateField(field) {
		// Text equality is case-insensitive.
		pattern := "^" + regexp.QuoteMeta(text) + "$"
		if op == OpNotEquals {
			filter = bson.M{field: bson.M{"$not": bson.M{"$regex": pattern, "$options": "i"}}}
		} else {
			filter = bson.M{field: bson.M{"$regex": pattern, "$options": "i"}}
		}
	} else {
		stored := storedValue(field, value)
		if op == OpNotEquals {
			filter = bson.M{field: bson.M{"$ne": stored}}
		} else {
			filter = bson.M{field: stored}
		}
	}
	return clause{match: match, filter: filter}, nil
}

func compileOrdering(field string, op Operator, value interface{}) (clause, error) {
	mongoOp := map[Operator]string{
		OpGreaterThan:        "$gt",
		OpLessThan:           "$lt",
		OpGreaterThanOrEqual: "$gte",
		OpLessThanOrEqual:    "$lte",
	}[op]

	match := func(c *models.Customer) bool {
		v, present := fieldValue(c, field)
		if !present {
			return false
		}
		cmp, ok := compareValues(v, value)
		if !ok {
			return false
		}
		switch op {
		case OpGreaterThan:
			return cmp > 0
		case OpLessThan:
			return cmp < 0
		case OpGreaterThanOrEqual:
			return cmp >= 0
		default:
			return cmp <= 0
		}
	}
	return clause{match: match, filter: bson.M{field: bson.M{mongoOp: storedValue(field, value)}}}, nil
}

func compileBetween(field string, value interface{}) (clause, error) {
	min, max, ok := betweenBounds(value)
	if !ok {
		return clause{}, &InvalidRuleError{Field: field, Operator: "between", Reason: "value must be a [min, max] pair"}
	}
	match := func(c *models.Customer) bool {
		v, present := fieldValue(c, field)
		if !present {
			return false
		}
		lo, okLo := compareValues(v, min)
		hi, okHi := compareValues(v, max)
		return okLo && okHi && lo >= 0 && hi <= 0
	}
	filter := bson.M{field: bson.M{"$gte": storedValue(field, min), "$lte": storedValue(field, max)}}
	return clause{match: match, filter: filter}, nil
}

func compileText(field string, op Operator, text string) clause {
	needle := strings.ToLower(text)
	match := func(c *models.Customer) bool {
		v, present := fieldValue(c, field)
		if !present {
			return false
		}
		switch actual := v.(type) {
		case string:
			return textMatch(op, strings.ToLower(actual), needle)
		case []string:
			for _, item := range actual {
				if textMatch(op, strings.ToLower(item), needle) {
					return true
				}
			}
		}
		return false
	}

	pattern := regexp.QuoteMeta(text)
	switch op {
	case OpStartsWith:
		pattern = "^" + pattern
	case OpEndsWith:
		pattern = pattern + "$"
	}
	return clause{match: match, filter: bson.M{field: bson.M{"$regex": pattern, "$options": "i"}}}
}

func textMatch(op Operator, haystack, needle string) bool {
	switch op {
	case OpStartsWith:
		return strings.HasPrefix(haystack, needle)
	case OpEndsWith:
		return strings.HasSuffix(haystack, needle)
	default:
		return strings.Contains(haystack, needle)
	}
}

func compileRelativeDate(field string, op Operator, days float64, now func() time.Time) clause {
	cutoff := now().Add(-time.Duration(days * 24 * float64(time.Hour)))
	match := func(c *models.Customer) bool {
		v, present := fieldValue(c, field)
		if !present {
			return false
		}
		t, ok := toTime(v)
		if !ok {
			return false
		}
		if op == OpInLast {
			return !t.Before(cutoff)
		}
		return t.Before(cutoff)
	}
	mongoOp := "$gte"
	if op == OpNotInLast {
		mongoOp = "$lt"
	}
	return clause{match: match, filter: bson.M{field: bson.M{mongoOp: cutoff}}}
}

func existenceFilter(field string, op Operator) bson.M {
	switch op {
	case OpIsNull:
		return bson.M{field: nil}
	case OpIsNotNull:
		return bson.M{field: bson.M{"$ne": nil}}
	case OpExists:
		return bson.M{field: bson.M{"$exists": true}}
	default:
		return bson.M{field: bson.M{"$exists": false}}
	}
}

// valuesEqual compares a customer field value with a condition value.
func valuesEqual(actual, expected interface{}, dateField bool) bool {
	if dateField {
		at, okA := toTime(actual)
		et, okE := toTime(expected)
		return okA && okE && at.Equal(et)
	}
	switch v := actual.(type) {
	case string:
		e, ok := expected.(string)
		return ok && strings.EqualFold(v, e)
	case []string:
		e, ok := expected.(string)
		if !ok {
			return false
		}
		for _, item := range v {
			if strings.EqualFold(item, e) {
				return true
			}
		}
		return false
	case bool:
		e, ok := toBool(expected)
		return ok && v == e
	default:
		af, okA := toFloat(actual)
		ef, okE := toFloat(expected)
		return okA && okE && af == ef
	}
}

// compareValues orders a customer field value against a condition value.
// Returns -1/0/1 and whether the pair is orderable (numbers and dates are,
// text and booleans are not).
func compareValues(actual, expected interface{}) (int, bool) {
	if t, ok := actual.(time.Time); ok {
		et, okE := toTime(expected)
		if !okE {
			return 0, false
		}
		switch {
		case t.Before(et):
			return -1, true
		case t.After(et):
			return 1, true
		default:
			return 0, true
		}
	}
	af, okA := toFloat(actual)
	ef, okE := toFloat(expected)
	if !okA || !okE {
		return 0, false
	}
	switch {
	case af < ef:
		return -1, true
	case af > ef:
		return 1, true
	default:
		return 0, true
	}
}

// storedValue coerces a condition value to the type the store holds for the
// field, so filters compare like-for-like.
func storedValue(field string, value interface{}) interface{} {
	if isDateField(field) {
		if t, ok := toTime(value); ok {
			return t
		}
	}
	if _, isString := value.(string); !isString {
		return value
	}
	if f, ok := toFloat(value); ok && !isDateField(field) && isNumericField(field) {
		return f
	}
	return value
}

func isNumericField(field string) bool {
	switch field {
	case "totalSpend", "orderCount":
		return true
	}
	return false
}
