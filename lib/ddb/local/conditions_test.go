package local

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestEvalCondition(t *testing.T) {
	ss := &types.AttributeValueMemberSS{Value: []string{"red", "blue"}}
	ns := &types.AttributeValueMemberNS{Value: []string{"1", "2.5"}}
	list := &types.AttributeValueMemberL{Value: []types.AttributeValue{s("x"), n("1")}}
	bin := &types.AttributeValueMemberB{Value: []byte{1, 2, 3}}

	tests := []struct {
		name string
		attr types.AttributeValue
		op   types.ComparisonOperator
		args []types.AttributeValue
		want bool
	}{
		{"EQ string", s("a"), types.ComparisonOperatorEq, []types.AttributeValue{s("a")}, true},
		{"EQ different type", s("1"), types.ComparisonOperatorEq, []types.AttributeValue{n("1")}, false},
		{"EQ absent", nil, types.ComparisonOperatorEq, []types.AttributeValue{s("a")}, false},
		{"EQ set ignores order", ss, types.ComparisonOperatorEq, []types.AttributeValue{&types.AttributeValueMemberSS{Value: []string{"blue", "red"}}}, true},
		{"NE absent", nil, types.ComparisonOperatorNe, []types.AttributeValue{s("a")}, true},
		{"LT numbers", n("9"), types.ComparisonOperatorLt, []types.AttributeValue{n("10")}, true},
		{"LT strings", s("9"), types.ComparisonOperatorLt, []types.AttributeValue{s("10")}, false},
		{"LE equal", n("1.0"), types.ComparisonOperatorLe, []types.AttributeValue{n("1")}, true},
		{"GT mixed types", s("b"), types.ComparisonOperatorGt, []types.AttributeValue{n("1")}, false},
		{"GE binary", bin, types.ComparisonOperatorGe, []types.AttributeValue{&types.AttributeValueMemberB{Value: []byte{1, 2}}}, true},
		{"BETWEEN inside", n("5"), types.ComparisonOperatorBetween, []types.AttributeValue{n("1"), n("5")}, true},
		{"BETWEEN outside", n("6"), types.ComparisonOperatorBetween, []types.AttributeValue{n("1"), n("5")}, false},
		{"BEGINS_WITH", s("order#1"), types.ComparisonOperatorBeginsWith, []types.AttributeValue{s("order#")}, true},
		{"BEGINS_WITH binary", bin, types.ComparisonOperatorBeginsWith, []types.AttributeValue{&types.AttributeValueMemberB{Value: []byte{1}}}, true},
		{"CONTAINS substring", s("hello"), types.ComparisonOperatorContains, []types.AttributeValue{s("ell")}, true},
		{"CONTAINS string set", ss, types.ComparisonOperatorContains, []types.AttributeValue{s("red")}, true},
		{"CONTAINS number set", ns, types.ComparisonOperatorContains, []types.AttributeValue{n("2.50")}, true},
		{"CONTAINS list", list, types.ComparisonOperatorContains, []types.AttributeValue{n("1")}, true},
		{"NOT_CONTAINS", ss, types.ComparisonOperatorNotContains, []types.AttributeValue{s("green")}, true},
		{"NOT_CONTAINS absent", nil, types.ComparisonOperatorNotContains, []types.AttributeValue{s("green")}, false},
		{"IN", s("b"), types.ComparisonOperatorIn, []types.AttributeValue{s("a"), s("b")}, true},
		{"IN miss", s("c"), types.ComparisonOperatorIn, []types.AttributeValue{s("a"), s("b")}, false},
		{"NULL", nil, types.ComparisonOperatorNull, nil, true},
		{"NOT_NULL", s("a"), types.ComparisonOperatorNotNull, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evalCondition(tt.attr, tt.op, tt.args)
			if err != nil {
				t.Fatalf("evalCondition failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("evalCondition = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvalConditionInvalid(t *testing.T) {
	tests := []struct {
		name string
		op   types.ComparisonOperator
		args []types.AttributeValue
	}{
		{"unknown operator", "LIKE", []types.AttributeValue{s("a")}},
		{"EQ without argument", types.ComparisonOperatorEq, nil},
		{"BETWEEN with one argument", types.ComparisonOperatorBetween, []types.AttributeValue{n("1")}},
		{"BETWEEN reversed", types.ComparisonOperatorBetween, []types.AttributeValue{n("5"), n("1")}},
		{"NULL with argument", types.ComparisonOperatorNull, []types.AttributeValue{s("a")}},
		{"IN without arguments", types.ComparisonOperatorIn, nil},
		{"LT on a set", types.ComparisonOperatorLt, []types.AttributeValue{&types.AttributeValueMemberSS{Value: []string{"a"}}}},
		{"BEGINS_WITH number", types.ComparisonOperatorBeginsWith, []types.AttributeValue{n("1")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := evalCondition(s("a"), tt.op, tt.args); !isValidation(err) {
				t.Errorf("Expected ValidationException, got %v", err)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[string]string{
		"1":      "1",
		"1.0":    "1",
		"1.50":   "1.5",
		"-0.25":  "-0.25",
		"1e3":    "1000",
		"0.0001": "0.0001",
	}
	for in, want := range tests {
		got, err := canonicalNumber(in)
		if err != nil {
			t.Errorf("canonicalNumber(%s) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("canonicalNumber(%s) = %s, want %s", in, got, want)
		}
	}

	for _, in := range []string{"abc", "1/2", ""} {
		if _, err := parseNumber(in); err == nil {
			t.Errorf("parseNumber(%q) should fail", in)
		}
	}
}

func TestCodecPreservesAllTypes(t *testing.T) {
	c, err := newCodec()
	if err != nil {
		t.Fatalf("newCodec failed: %v", err)
	}

	original := map[string]types.AttributeValue{
		"s":    s("text"),
		"n":    n("-12.5"),
		"b":    &types.AttributeValueMemberB{Value: []byte{0, 1, 2}},
		"bool": &types.AttributeValueMemberBOOL{Value: true},
		"null": &types.AttributeValueMemberNULL{Value: true},
		"ss":   &types.AttributeValueMemberSS{Value: []string{"a", "b"}},
		"ns":   &types.AttributeValueMemberNS{Value: []string{"1", "2"}},
		"bs":   &types.AttributeValueMemberBS{Value: [][]byte{{1}, {2}}},
		"l":    &types.AttributeValueMemberL{Value: []types.AttributeValue{s("x"), &types.AttributeValueMemberL{Value: []types.AttributeValue{n("1")}}}},
		"m": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"nested": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{"deep": s("y")}},
		}},
	}

	buf, err := c.encodeItem(original)
	if err != nil {
		t.Fatalf("encodeItem failed: %v", err)
	}
	decoded, err := c.decodeItem(buf)
	if err != nil {
		t.Fatalf("decodeItem failed: %v", err)
	}

	if !equal(&types.AttributeValueMemberM{Value: decoded}, &types.AttributeValueMemberM{Value: original}) {
		t.Errorf("decoded item differs:\n got  %v\n want %v", decoded, original)
	}
}
