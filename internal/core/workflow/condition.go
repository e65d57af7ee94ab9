package workflow

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ConditionEvaluator evaluates automation entry conditions against a context
type ConditionEvaluator struct{}

// NewConditionEvaluator creates a new condition evaluator
func NewConditionEvaluator() *ConditionEvaluator {
	return &ConditionEvaluator{}
}

// Evaluate returns true when the conditions hold for data. Conditions are
// AND-ed unless any of them asks for OR. No conditions always pass.
func (e *ConditionEvaluator) Evaluate(conditions []Condition, data map[string]interface{}) (bool, error) {
	if len(conditions) == 0 {
		return true, nil
	}

	anyOf := false
	for _, condition := range conditions {
		if strings.EqualFold(condition.Logic, "OR") {
			anyOf = true
			break
		}
	}

	for _, condition := range conditions {
		ok, err := e.evaluateSingle(condition, data)
		if err != nil {
			return false, err
		}
		if anyOf && ok {
			return true, nil
		}
		if !anyOf && !ok {
			return false, nil
		}
	}
	return !anyOf, nil
}

func (e *ConditionEvaluator) evaluateSingle(condition Condition, data map[string]interface{}) (bool, error) {
	fieldValue, exists := data[condition.Field]
	if !exists {
		// an absent field is not equal to anything and matches nothing else
		switch condition.Operator {
		case "not_equals", "not_contains", "not_in_list":
			return true, nil
		}
		if !knownOperator(condition.Operator) {
			return false, fmt.Errorf("unknown operator: %s", condition.Operator)
		}
		return false, nil
	}

	switch condition.Operator {
	case "equals":
		return looselyEqual(fieldValue, condition.Value), nil
	case "not_equals":
		return !looselyEqual(fieldValue, condition.Value), nil

	case "greater_than":
		return compareNumbers(fieldValue, condition.Value, func(a, b float64) bool { return a > b })
	case "greater_or_equal":
		return compareNumbers(fieldValue, condition.Value, func(a, b float64) bool { return a >= b })
	case "less_than":
		return compareNumbers(fieldValue, condition.Value, func(a, b float64) bool { return a < b })
	case "less_or_equal":
		return compareNumbers(fieldValue, condition.Value, func(a, b float64) bool { return a <= b })

	case "contains":
		return compareStrings(fieldValue, condition.Value, strings.Contains)
	case "not_contains":
		ok, err := compareStrings(fieldValue, condition.Value, strings.Contains)
		return !ok && err == nil, err
	case "starts_with":
		return compareStrings(fieldValue, condition.Value, strings.HasPrefix)
	case "ends_with":
		return compareStrings(fieldValue, condition.Value, strings.HasSuffix)

	case "in_list":
		return inList(fieldValue, condition.Value)
	case "not_in_list":
		ok, err := inList(fieldValue, condition.Value)
		return !ok && err == nil, err

	default:
		return false, fmt.Errorf("unknown operator: %s", condition.Operator)
	}
}

func knownOperator(op string) bool {
	switch op {
	case "equals", "not_equals", "greater_than", "greater_or_equal", "less_than", "less_or_equal",
		"contains", "not_contains", "starts_with", "ends_with", "in_list", "not_in_list":
		return true
	}
	return false
}

// looselyEqual compares numbers numerically and everything else by its
// string form, case-insensitively
func looselyEqual(a, b interface{}) bool {
	if x, err := toFloat64(a); err == nil {
		if y, err := toFloat64(b); err == nil {
			return x == y
		}
	}
	return strings.EqualFold(fmt.Sprint(a), fmt.Sprint(b))
}

func compareNumbers(fieldValue, conditionValue interface{}, cmp func(a, b float64) bool) (bool, error) {
	a, err := toFloat64(fieldValue)
	if err != nil {
		return false, fmt.Errorf("field value is not a number: %w", err)
	}
	b, err := toFloat64(conditionValue)
	if err != nil {
		return false, fmt.Errorf("condition value is not a number: %w", err)
	}
	return cmp(a, b), nil
}

func compareStrings(fieldValue, conditionValue interface{}, cmp func(s, substr string) bool) (bool, error) {
	s, ok := fieldValue.(string)
	if !ok {
		return false, fmt.Errorf("field value is not a string")
	}
	substr, ok := conditionValue.(string)
	if !ok {
		return false, fmt.Errorf("condition value is not a string")
	}
	return cmp(strings.ToLower(s), strings.ToLower(substr)), nil
}

func inList(fieldValue, conditionValue interface{}) (bool, error) {
	list, ok := conditionValue.([]interface{})
	if !ok {
		return false, fmt.Errorf("condition value is not a list")
	}
	for _, item := range list {
		if looselyEqual(fieldValue, item) {
			return true, nil
		}
	}
	return false, nil
}

// toFloat64 converts numeric values, JSON numbers and numeric strings
func toFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", value)
	}
}
