package workflow

import "testing"

func TestConditionEvaluator(t *testing.T) {
	data := map[string]interface{}{
		"property_kind": "Departamento",
		"sale_price":    250000.0,
		"owner_id":      "jperez",
		"has_visit":     true,
	}

	tests := []struct {
		name       string
		conditions []Condition
		want       bool
		wantErr    bool
	}{
		{"no conditions", nil, true, false},
		{"equals is case-insensitive", []Condition{{Field: "property_kind", Operator: "equals", Value: "departamento"}}, true, false},
		{"number compares numerically", []Condition{{Field: "sale_price", Operator: "equals", Value: "250000"}}, true, false},
		{"greater than", []Condition{{Field: "sale_price", Operator: "greater_than", Value: 300000}}, false, false},
		{"contains", []Condition{{Field: "property_kind", Operator: "contains", Value: "depa"}}, true, false},
		{"in list", []Condition{{Field: "owner_id", Operator: "in_list", Value: []interface{}{"ana", "jperez"}}}, true, false},
		{"boolean", []Condition{{Field: "has_visit", Operator: "equals", Value: true}}, true, false},
		{
			"and requires all",
			[]Condition{
				{Field: "property_kind", Operator: "contains", Value: "depa"},
				{Field: "sale_price", Operator: "less_than", Value: 100000},
			},
			false, false,
		},
		{
			"or requires one",
			[]Condition{
				{Field: "property_kind", Operator: "equals", Value: "casa", Logic: "OR"},
				{Field: "sale_price", Operator: "less_or_equal", Value: 250000},
			},
			true, false,
		},
		{"missing field fails closed", []Condition{{Field: "project_id", Operator: "equals", Value: "x"}}, false, false},
		{"missing field not_equals", []Condition{{Field: "project_id", Operator: "not_equals", Value: "x"}}, true, false},
		{"unknown operator", []Condition{{Field: "owner_id", Operator: "matches", Value: "x"}}, false, true},
		{"non numeric", []Condition{{Field: "owner_id", Operator: "greater_than", Value: 1}}, false, true},
	}

	e := NewConditionEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(tt.conditions, data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Evaluate = %v, want %v", got, tt.want)
			}
		})
	}
}
