package local

import (
	"bytes"
	"math/big"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// --------------------------------------------------------------------------
// Attribute values
// --------------------------------------------------------------------------

// kindOf returns the DynamoDB type descriptor of av ("S", "N", "SS", ...).
func kindOf(av types.AttributeValue) string {
	switch av.(type) {
	case *types.AttributeValueMemberS:
		return "S"
	case *types.AttributeValueMemberN:
		return "N"
	case *types.AttributeValueMemberB:
		return "B"
	case *types.AttributeValueMemberBOOL:
		return "BOOL"
	case *types.AttributeValueMemberNULL:
		return "NULL"
	case *types.AttributeValueMemberSS:
		return "SS"
	case *types.AttributeValueMemberNS:
		return "NS"
	case *types.AttributeValueMemberBS:
		return "BS"
	case *types.AttributeValueMemberL:
		return "L"
	case *types.AttributeValueMemberM:
		return "M"
	default:
		return ""
	}
}

// parseNumber parses a DynamoDB number. Numbers are exact decimals.
func parseNumber(s string) (*big.Rat, error) {
	s = strings.TrimSpace(s)
	if strings.ContainsRune(s, '/') {
		return nil, validationError("the parameter cannot be converted to a numeric value: %s", s)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, validationError("the parameter cannot be converted to a numeric value: %s", s)
	}
	return r, nil
}

// formatNumber renders r as the shortest exact decimal.
func formatNumber(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	s := r.FloatString(38)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// canonicalNumber normalizes s so that equal numbers have equal strings ("1.0" == "1").
func canonicalNumber(s string) (string, error) {
	r, err := parseNumber(s)
	if err != nil {
		return "", err
	}
	return formatNumber(r), nil
}

func numbersEqual(a, b string) bool {
	x, errX := parseNumber(a)
	y, errY := parseNumber(b)
	if errX != nil || errY != nil {
		return a == b
	}
	return x.Cmp(y) == 0
}

// equal reports whether a and b hold the same type and value. Sets are unordered.
func equal(a, b types.AttributeValue) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case *types.AttributeValueMemberS:
		y, ok := b.(*types.AttributeValueMemberS)
		return ok && x.Value == y.Value
	case *types.AttributeValueMemberN:
		y, ok := b.(*types.AttributeValueMemberN)
		return ok && numbersEqual(x.Value, y.Value)
	case *types.AttributeValueMemberB:
		y, ok := b.(*types.AttributeValueMemberB)
		return ok && bytes.Equal(x.Value, y.Value)
	case *types.AttributeValueMemberBOOL:
		y, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && x.Value == y.Value
	case *types.AttributeValueMemberNULL:
		y, ok := b.(*types.AttributeValueMemberNULL)
		return ok && x.Value == y.Value
	case *types.AttributeValueMemberSS:
		y, ok := b.(*types.AttributeValueMemberSS)
		return ok && sameSet(x.Value, y.Value, func(p, q string) bool { return p == q })
	case *types.AttributeValueMemberNS:
		y, ok := b.(*types.AttributeValueMemberNS)
		return ok && sameSet(x.Value, y.Value, numbersEqual)
	case *types.AttributeValueMemberBS:
		y, ok := b.(*types.AttributeValueMemberBS)
		return ok && sameSet(x.Value, y.Value, bytes.Equal)
	case *types.AttributeValueMemberL:
		y, ok := b.(*types.AttributeValueMemberL)
		if !ok || len(x.Value) != len(y.Value) {
			return false
		}
		for i := range x.Value {
			if !equal(x.Value[i], y.Value[i]) {
				return false
			}
		}
		return true
	case *types.AttributeValueMemberM:
		y, ok := b.(*types.AttributeValueMemberM)
		if !ok || len(x.Value) != len(y.Value) {
			return false
		}
		for k, v := range x.Value {
			if !equal(v, y.Value[k]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func sameSet[T any](a, b []T, eq func(T, T) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for _, v := range a {
		if indexOf(b, v, eq) < 0 {
			return false
		}
	}
	return true
}

func indexOf[T any](set []T, v T, eq func(T, T) bool) int {
	for i, e := range set {
		if eq(e, v) {
			return i
		}
	}
	return -1
}

// compare orders two scalars of the same type (S, N or B).
// ok is false if the values are not comparable.
func compare(a, b types.AttributeValue) (int, bool) {
	switch x := a.(type) {
	case *types.AttributeValueMemberS:
		y, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 0, false
		}
		return strings.Compare(x.Value, y.Value), true
	case *types.AttributeValueMemberN:
		y, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return 0, false
		}
		p, errP := parseNumber(x.Value)
		q, errQ := parseNumber(y.Value)
		if errP != nil || errQ != nil {
			return 0, false
		}
		return p.Cmp(q), true
	case *types.AttributeValueMemberB:
		y, ok := b.(*types.AttributeValueMemberB)
		if !ok {
			return 0, false
		}
		return bytes.Compare(x.Value, y.Value), true
	default:
		return 0, false
	}
}

func isScalar(av types.AttributeValue) bool {
	switch av.(type) {
	case *types.AttributeValueMemberS, *types.AttributeValueMemberN, *types.AttributeValueMemberB:
		return true
	default:
		return false
	}
}

// --------------------------------------------------------------------------
// Conditions
// --------------------------------------------------------------------------

// argCount returns the number of arguments op expects, -1 for "one or more".
func argCount(op types.ComparisonOperator) (int, bool) {
	switch op {
	case types.ComparisonOperatorEq, types.ComparisonOperatorNe,
		types.ComparisonOperatorLt, types.ComparisonOperatorLe,
		types.ComparisonOperatorGt, types.ComparisonOperatorGe,
		types.ComparisonOperatorBeginsWith,
		types.ComparisonOperatorContains, types.ComparisonOperatorNotContains:
		return 1, true
	case types.ComparisonOperatorBetween:
		return 2, true
	case types.ComparisonOperatorNull, types.ComparisonOperatorNotNull:
		return 0, true
	case types.ComparisonOperatorIn:
		return -1, true
	default:
		return 0, false
	}
}

// evalCondition evaluates a legacy Condition against attr (nil = attribute absent).
func evalCondition(attr types.AttributeValue, op types.ComparisonOperator, args []types.AttributeValue) (bool, error) {
	want, ok := argCount(op)
	if !ok {
		return false, validationError("unsupported comparison operator %q", op)
	}
	if (want >= 0 && len(args) != want) || (want < 0 && len(args) == 0) {
		return false, validationError("invalid number of arguments for comparison operator %s: %d", op, len(args))
	}

	switch op {
	case types.ComparisonOperatorNull:
		return attr == nil, nil
	case types.ComparisonOperatorNotNull:
		return attr != nil, nil
	case types.ComparisonOperatorEq:
		return attr != nil && equal(attr, args[0]), nil
	case types.ComparisonOperatorNe:
		return attr == nil || !equal(attr, args[0]), nil
	case types.ComparisonOperatorIn:
		if attr == nil {
			return false, nil
		}
		for _, arg := range args {
			if equal(attr, arg) {
				return true, nil
			}
		}
		return false, nil
	case types.ComparisonOperatorLt, types.ComparisonOperatorLe,
		types.ComparisonOperatorGt, types.ComparisonOperatorGe:
		if !isScalar(args[0]) {
			return false, validationError("comparison operator %s requires a scalar argument", op)
		}
		if attr == nil {
			return false, nil
		}
		c, ok := compare(attr, args[0])
		if !ok {
			return false, nil
		}
		switch op {
		case types.ComparisonOperatorLt:
			return c < 0, nil
		case types.ComparisonOperatorLe:
			return c <= 0, nil
		case types.ComparisonOperatorGt:
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	case types.ComparisonOperatorBetween:
		if !isScalar(args[0]) || kindOf(args[0]) != kindOf(args[1]) {
			return false, validationError("BETWEEN requires two scalar arguments of the same type")
		}
		if c, _ := compare(args[0], args[1]); c > 0 {
			return false, validationError("BETWEEN: lower bound is greater than upper bound")
		}
		if attr == nil {
			return false, nil
		}
		lo, okLo := compare(attr, args[0])
		hi, okHi := compare(attr, args[1])
		return okLo && okHi && lo >= 0 && hi <= 0, nil
	case types.ComparisonOperatorBeginsWith:
		switch arg := args[0].(type) {
		case *types.AttributeValueMemberS:
			v, ok := attr.(*types.AttributeValueMemberS)
			return ok && strings.HasPrefix(v.Value, arg.Value), nil
		case *types.AttributeValueMemberB:
			v, ok := attr.(*types.AttributeValueMemberB)
			return ok && bytes.HasPrefix(v.Value, arg.Value), nil
		default:
			return false, validationError("BEGINS_WITH requires a string or binary argument")
		}
	case types.ComparisonOperatorContains:
		return attr != nil && contains(attr, args[0]), nil
	case types.ComparisonOperatorNotContains:
		return attr != nil && !contains(attr, args[0]), nil
	}
	return false, nil
}

// contains implements CONTAINS for strings, binaries, sets and lists.
func contains(attr, arg types.AttributeValue) bool {
	switch v := attr.(type) {
	case *types.AttributeValueMemberS:
		s, ok := arg.(*types.AttributeValueMemberS)
		return ok && strings.Contains(v.Value, s.Value)
	case *types.AttributeValueMemberB:
		b, ok := arg.(*types.AttributeValueMemberB)
		return ok && bytes.Contains(v.Value, b.Value)
	case *types.AttributeValueMemberSS:
		s, ok := arg.(*types.AttributeValueMemberS)
		return ok && indexOf(v.Value, s.Value, func(p, q string) bool { return p == q }) >= 0
	case *types.AttributeValueMemberNS:
		n, ok := arg.(*types.AttributeValueMemberN)
		return ok && indexOf(v.Value, n.Value, numbersEqual) >= 0
	case *types.AttributeValueMemberBS:
		b, ok := arg.(*types.AttributeValueMemberB)
		return ok && indexOf(v.Value, b.Value, bytes.Equal) >= 0
	case *types.AttributeValueMemberL:
		for _, e := range v.Value {
			if equal(e, arg) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// matchConditions evaluates conditions (ScanFilter, KeyConditions) joined by op.
func matchConditions(item map[string]types.AttributeValue, conditions map[string]types.Condition, op types.ConditionalOperator) (bool, error) {
	if len(conditions) == 0 {
		return true, nil
	}
	or := op == types.ConditionalOperatorOr
	for name, cond := range conditions {
		ok, err := evalCondition(item[name], cond.ComparisonOperator, cond.AttributeValueList)
		if err != nil {
			return false, err
		}
		if or && ok {
			return true, nil
		}
		if !or && !ok {
			return false, nil
		}
	}
	return !or, nil
}

// checkExpected evaluates the legacy Expected map of a write against the current item
// (nil if absent). A failed check yields a ConditionalCheckFailedException.
func checkExpected(item map[string]types.AttributeValue, expected map[string]types.ExpectedAttributeValue, op types.ConditionalOperator) error {
	if len(expected) == 0 {
		return nil
	}
	if op != "" && op != types.ConditionalOperatorAnd && op != types.ConditionalOperatorOr {
		return validationError("unsupported conditional operator %q", op)
	}

	or := op == types.ConditionalOperatorOr
	result := !or
	for name, ev := range expected {
		ok, err := evalExpected(item[name], ev)
		if err != nil {
			return err
		}
		if or {
			result = result || ok
		} else {
			result = result && ok
		}
	}
	if !result {
		return conditionFailed()
	}
	return nil
}

func evalExpected(attr types.AttributeValue, ev types.ExpectedAttributeValue) (bool, error) {
	if ev.ComparisonOperator != "" {
		if ev.Exists != nil {
			return false, validationError("Exists and ComparisonOperator cannot be used together")
		}
		args := ev.AttributeValueList
		if ev.Value != nil {
			if len(args) > 0 {
				return false, validationError("Value and AttributeValueList cannot be used together")
			}
			args = []types.AttributeValue{ev.Value}
		}
		return evalCondition(attr, ev.ComparisonOperator, args)
	}

	if ev.Exists != nil && !*ev.Exists {
		if ev.Value != nil {
			return false, validationError("Value cannot be used when Exists is false")
		}
		return attr == nil, nil
	}
	if ev.Value == nil {
		return false, validationError("Value must be provided when Exists is true")
	}
	return attr != nil && equal(attr, ev.Value), nil
}
