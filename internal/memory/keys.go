package memory

// Session state key names, adopted from the original session_state.py
// SessionStateKeys constants so the persisted field layout matches the
// system this orchestrator was distilled from.
const (
	KeyActiveAgent         = "active_agent"
	KeyVisitedAgents       = "visited_agents"
	KeySessionProfile      = "session_profile"
	KeyClientID            = "client_id"
	KeyCallerName          = "caller_name"
	KeyInstitutionName     = "institution_name"
	KeyCustomerIntel       = "customer_intelligence"
	KeyPendingHandoff      = "pending_handoff"
	KeyHandoffContext      = "handoff_context"
	KeyUserMessageHistory  = "user_message_history"
	KeyTurnCount           = "turn_count"
	KeyTokenCounts         = "token_counts"

	// Session-scoped (context/{session_id}) keys.
	KeySlots       = "slots"
	KeyToolOutputs = "tool_outputs"
)

// persistentKeys enumerates every key written into the corememory namespace.
var persistentKeys = []string{
	KeyActiveAgent,
	KeyVisitedAgents,
	KeySessionProfile,
	KeyClientID,
	KeyCallerName,
	KeyInstitutionName,
	KeyCustomerIntel,
	KeyPendingHandoff,
	KeyHandoffContext,
	KeyUserMessageHistory,
	KeyTurnCount,
	KeyTokenCounts,
}

// sessionScopedKeys enumerates every key written into the context namespace.
var sessionScopedKeys = []string{
	KeySlots,
	KeyToolOutputs,
}
