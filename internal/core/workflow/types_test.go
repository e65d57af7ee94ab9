package workflow

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestActionsUnmarshal(t *testing.T) {
	raw := `[
		{"type":"send_template","template_id":"t-1","delay_minutes":30,"only_if_no_reply":true},
		{"type":"assign_owner","owner_id":"jperez"},
		{"type":"update_stage","new_stage":"contacted"},
		{"type":"wait","delay_minutes":1440}
	]`

	var actions Actions
	if err := json.Unmarshal([]byte(raw), &actions); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	want := Actions{
		SendTemplate{TemplateID: "t-1", DelayMinutes: 30, OnlyIfNoReply: true},
		AssignOwner{OwnerID: "jperez"},
		UpdateStage{NewStage: "contacted"},
		Wait{DelayMinutes: 1440},
	}
	if len(actions) != len(want) {
		t.Fatalf("decoded %d actions, want %d", len(actions), len(want))
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Errorf("action %d = %#v, want %#v", i, actions[i], want[i])
		}
	}

	encoded, err := json.Marshal(actions)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(encoded), `"type":"wait"`) {
		t.Errorf("encoded list lost its tags: %s", encoded)
	}
}

func TestActionsUnmarshalRejectsUnknownType(t *testing.T) {
	var actions Actions
	err := json.Unmarshal([]byte(`[{"type":"send_sms","template_id":"x"}]`), &actions)
	if err == nil || !strings.Contains(err.Error(), "send_sms") {
		t.Errorf("err = %v, want unknown action type error", err)
	}
}

func TestDelayOf(t *testing.T) {
	tests := []struct {
		action Action
		want   time.Duration
	}{
		{SendTemplate{DelayMinutes: 60}, time.Hour},
		{Wait{DelayMinutes: 15}, 15 * time.Minute},
		{Wait{}, 0},
		{AssignOwner{OwnerID: "x"}, 0},
	}
	for _, tt := range tests {
		if got := DelayOf(tt.action); got != tt.want {
			t.Errorf("DelayOf(%#v) = %v, want %v", tt.action, got, tt.want)
		}
	}
}

func TestExecutionDue(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Minute), now.Add(time.Minute)

	tests := []struct {
		name string
		exec Execution
		due  bool
	}{
		{"parked past due", Execution{State: StateRunning, NextActionAt: &past}, true},
		{"parked exactly now", Execution{State: StateRunning, NextActionAt: &now}, true},
		{"parked in future", Execution{State: StateRunning, NextActionAt: &future}, false},
		{"actively running", Execution{State: StateRunning}, false},
		{"completed", Execution{State: StateCompleted}, false},
	}
	for _, tt := range tests {
		if got := tt.exec.IsDue(now); got != tt.due {
			t.Errorf("%s: IsDue = %v, want %v", tt.name, got, tt.due)
		}
	}
}
