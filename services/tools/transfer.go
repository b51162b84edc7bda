package tools

import (
	"context"
	"strings"
	"time"
)

// TransferCallTool is a reference "transfer" tool (§9 Open Question #3):
// transfer tools are the only FunctionTool implementations permitted to
// signal should_interrupt_playback in their result, since they preempt
// whatever the assistant is currently saying to hand the caller to a human
// or external destination. Grounded on
// registries/toolstore/call_transfer.py's transfer_call_to_destination in
// the retrieved original source; not wired to a real PBX (out of scope per
// §1), so Execute only reports the transfer as initiated.
type TransferCallTool struct{}

func NewTransferCallTool() *TransferCallTool { return &TransferCallTool{} }

func (TransferCallTool) Name() string { return "transfer_call_to_destination" }

func (TransferCallTool) Description() string {
	return "Transfer the call to a specific phone number or SIP destination. " +
		"Use for external transfers outside the agent network."
}

func (TransferCallTool) Schema() Schema {
	return Schema{
		"type": "object",
		"properties": map[string]interface{}{
			"destination": map[string]interface{}{
				"type":        "string",
				"description": "Phone number or SIP URI to transfer to",
			},
			"reason": map[string]interface{}{
				"type":        "string",
				"description": "Reason for transfer",
			},
			"transfer_type": map[string]interface{}{
				"type":        "string",
				"enum":        []string{"cold", "warm", "blind"},
				"description": "Type of transfer (cold=no announcement, warm=with context)",
			},
			"context_summary": map[string]interface{}{
				"type":        "string",
				"description": "Summary to provide to receiving party (for warm transfers)",
			},
		},
		"required": []string{"destination", "reason"},
	}
}

// Transfer marks this as a "transfer" tool: the only category permitted to
// set should_interrupt_playback on its result (§9).
func (TransferCallTool) Transfer() bool { return true }

func (TransferCallTool) Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	destination := strings.TrimSpace(stringArg(args, "destination"))
	reason := strings.TrimSpace(stringArg(args, "reason"))
	transferType := strings.TrimSpace(stringArg(args, "transfer_type"))
	if transferType == "" {
		transferType = "cold"
	}
	contextSummary := strings.TrimSpace(stringArg(args, "context_summary"))

	if destination == "" {
		return map[string]interface{}{"success": false, "message": "destination is required"}, nil
	}
	if reason == "" {
		return map[string]interface{}{"success": false, "message": "reason is required"}, nil
	}

	return map[string]interface{}{
		"success":               true,
		"transfer_initiated":    true,
		"destination":           destination,
		"transfer_type":         transferType,
		"reason":                reason,
		"context_transferred":   contextSummary != "",
		"timestamp":             time.Now().UTC().Format(time.RFC3339),
		"message":               "Transferring call to " + destination + ".",
		"should_interrupt_playback": true,
		"perform_transfer":      true,
		"transfer_destination":  destination,
	}, nil
}

func stringArg(args map[string]interface{}, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
