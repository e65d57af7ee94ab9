package utils

import (
	"strings"
	"testing"
)

type sample struct {
	Event      string `validate:"required,oneof=lead.created visit.completed"`
	CustomerID string `validate:"required,uuid"`
	Limit      int    `validate:"gte=0,max=500"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name    string
		in      sample
		wantErr []string
	}{
		{"valid", sample{Event: "lead.created", CustomerID: "5f0c7a1e-8d0b-4b57-9f7e-2f3b8a1c9d10"}, nil},
		{"missing fields", sample{}, []string{"event is required", "customerid is required"}},
		{"bad values", sample{Event: "lead.deleted", CustomerID: "abc", Limit: 900}, []string{
			"event must be one of: lead.created visit.completed",
			"customerid must be a valid uuid",
			"limit must be at most 500",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.in)
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected an error")
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q missing %q", err, want)
				}
			}
		})
	}
}
