package tools

import (
	"context"
	"testing"

	"github.com/matryer/is"
)

func TestTransferCallTool_Transfer(t *testing.T) {
	is := is.New(t)
	tool := NewTransferCallTool()
	is.True(tool.Transfer())
	is.Equal(tool.Name(), "transfer_call_to_destination")
}

func TestTransferCallTool_Execute(t *testing.T) {
	tests := []struct {
		name        string
		args        map[string]interface{}
		wantSuccess bool
		wantType    string
	}{
		{
			name:        "missing destination",
			args:        map[string]interface{}{"reason": "angry caller"},
			wantSuccess: false,
		},
		{
			name:        "missing reason",
			args:        map[string]interface{}{"destination": "+15551234567"},
			wantSuccess: false,
		},
		{
			name:        "defaults transfer_type to cold",
			args:        map[string]interface{}{"destination": "+15551234567", "reason": "billing"},
			wantSuccess: true,
			wantType:    "cold",
		},
		{
			name: "honors explicit warm transfer_type",
			args: map[string]interface{}{
				"destination":   "+15551234567",
				"reason":        "billing",
				"transfer_type": "warm",
			},
			wantSuccess: true,
			wantType:    "warm",
		},
	}

	tool := NewTransferCallTool()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			result, err := tool.Execute(context.Background(), tt.args)
			is.NoErr(err)
			is.Equal(result["success"], tt.wantSuccess)
			if tt.wantSuccess {
				is.Equal(result["should_interrupt_playback"], true)
				is.Equal(result["transfer_type"], tt.wantType)
				is.Equal(result["transfer_destination"], tt.args["destination"])
			}
		})
	}
}

func TestTransferCallTool_Schema(t *testing.T) {
	is := is.New(t)
	schema := NewTransferCallTool().Schema()
	required, ok := schema["required"].([]string)
	is.True(ok) // required field must be []string

	want := map[string]bool{"destination": false, "reason": false}
	for _, r := range required {
		if _, ok := want[r]; ok {
			want[r] = true
		}
	}
	for _, found := range want {
		is.True(found) // expected field in required schema fields
	}
}
