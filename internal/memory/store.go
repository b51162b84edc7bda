// Package memory implements the Session State Store Adapter (C2): a thin,
// namespaced interface over a durable key/value store, grounded on the
// original system's corememory/{session_id} and context/{session_id}
// partitioning (see session_state.py in the retrieved original source).
//
// The backing store here is Redis (github.com/redis/go-redis/v9), addressed
// as one logical connection per process per §5's "Shared resources".
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// PendingHandoff is the {target, reason, context} tuple recorded when a
// handoff has been requested but not yet honored.
type PendingHandoff struct {
	Target  string         `json:"target"`
	Reason  string         `json:"reason,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// SessionState is the materialized view load_snapshot returns: orchestrator
// state plus a flattened system_vars bag ready for prompt-template rendering.
type SessionState struct {
	ActiveAgent    string
	VisitedAgents  map[string]bool
	SystemVars     map[string]any
	PendingHandoff *PendingHandoff
	TurnCount      int64
	TokenCounts    map[string]int64
	History        []HistoryEntry
}

// HistoryEntry is one bounded entry of the cross-agent user-message deque.
type HistoryEntry struct {
	Agent string `json:"agent"`
	Role  string `json:"role"`
	Text  string `json:"text"`
}

// Store is the C2 adapter. Safe for concurrent use across sessions; callers
// are responsible for scoping reads/writes to their own session_id.
type Store struct {
	client *redis.Client
	log    *slog.Logger

	mu          chan struct{} // binary semaphore per Store instance for flush serialization
	historyMu   map[string]*pendingHistory
}

type pendingHistory struct {
	entries []HistoryEntry
}

// NewStore constructs a Store bound to an existing Redis client. The caller
// owns the client's lifecycle (construction, auth, close).
func NewStore(client *redis.Client) *Store {
	return &Store{
		client:    client,
		log:       slog.With("component", "memory"),
		mu:        make(chan struct{}, 1),
		historyMu: make(map[string]*pendingHistory),
	}
}

func corememoryKey(sessionID string) string { return fmt.Sprintf("corememory/%s", sessionID) }
func contextKey(sessionID string) string    { return fmt.Sprintf("context/%s", sessionID) }

// LoadSnapshot reads the corememory/context namespaces for sessionID and
// validates active_agent against availableAgents, per §4.2: a mismatch is
// logged and ignored rather than treated as fatal.
func (s *Store) LoadSnapshot(ctx context.Context, sessionID string, availableAgents map[string]bool) (*SessionState, error) {
	raw, err := s.client.HGetAll(ctx, corememoryKey(sessionID)).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("memory: load corememory: %w", err)
	}

	state := &SessionState{
		VisitedAgents: map[string]bool{},
		SystemVars:    map[string]any{},
		TokenCounts:   map[string]int64{},
	}

	if agent, ok := raw[KeyActiveAgent]; ok && agent != "" {
		if availableAgents[agent] {
			state.ActiveAgent = agent
		} else {
			s.log.Warn("active_agent not in registry, ignoring", "session_id", sessionID, "agent", agent)
		}
	}

	if raw[KeyVisitedAgents] != "" {
		var visited []string
		if err := json.Unmarshal([]byte(raw[KeyVisitedAgents]), &visited); err == nil {
			for _, a := range visited {
				state.VisitedAgents[a] = true
			}
		}
	}

	if raw[KeyPendingHandoff] != "" {
		var ph PendingHandoff
		if err := json.Unmarshal([]byte(raw[KeyPendingHandoff]), &ph); err == nil {
			state.PendingHandoff = &ph
		}
	}

	if raw[KeyTurnCount] != "" {
		var n int64
		fmt.Sscanf(raw[KeyTurnCount], "%d", &n)
		state.TurnCount = n
	}

	if raw[KeyTokenCounts] != "" {
		_ = json.Unmarshal([]byte(raw[KeyTokenCounts]), &state.TokenCounts)
	}

	if raw[KeyUserMessageHistory] != "" {
		_ = json.Unmarshal([]byte(raw[KeyUserMessageHistory]), &state.History)
	}

	// Promote selected session_profile fields into the top-level system_vars
	// bag used for prompt rendering, per §4.2.
	if raw[KeySessionProfile] != "" {
		var profile map[string]any
		if err := json.Unmarshal([]byte(raw[KeySessionProfile]), &profile); err == nil {
			for k, v := range profile {
				state.SystemVars[k] = v
			}
		}
	}
	for _, k := range []string{KeyClientID, KeyCallerName, KeyInstitutionName, KeyCustomerIntel} {
		if v, ok := raw[k]; ok && v != "" {
			state.SystemVars[k] = v
		}
	}

	ctxRaw, err := s.client.HGetAll(ctx, contextKey(sessionID)).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("memory: load context: %w", err)
	}
	if slots, ok := ctxRaw[KeySlots]; ok && slots != "" {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(slots), &parsed); err == nil {
			for k, v := range parsed {
				state.SystemVars[k] = v
			}
		}
	}

	return state, nil
}

// PersistSnapshot writes orchestrator state back. Idempotent: calling it
// twice with the same arguments produces the same stored values, and
// LoadSnapshot(PersistSnapshot(S)) round-trips on all persistent fields (§8).
func (s *Store) PersistSnapshot(ctx context.Context, sessionID, activeAgent string, visitedAgents map[string]bool, systemVars map[string]any, clearPendingHandoff bool) error {
	visited := make([]string, 0, len(visitedAgents))
	for a := range visitedAgents {
		visited = append(visited, a)
	}
	visitedJSON, _ := json.Marshal(visited)

	profile := map[string]any{}
	for k, v := range systemVars {
		switch k {
		case KeyClientID, KeyCallerName, KeyInstitutionName, KeyCustomerIntel:
			continue
		default:
			profile[k] = v
		}
	}
	profileJSON, _ := json.Marshal(profile)

	fields := map[string]any{
		KeyActiveAgent:    activeAgent,
		KeyVisitedAgents:  string(visitedJSON),
		KeySessionProfile: string(profileJSON),
	}
	for _, k := range []string{KeyClientID, KeyCallerName, KeyInstitutionName, KeyCustomerIntel} {
		if v, ok := systemVars[k]; ok {
			fields[k] = fmt.Sprintf("%v", v)
		}
	}

	if err := s.client.HSet(ctx, corememoryKey(sessionID), fields).Err(); err != nil {
		return fmt.Errorf("memory: persist corememory: %w", err)
	}

	if clearPendingHandoff {
		if err := s.client.HDel(ctx, corememoryKey(sessionID), KeyPendingHandoff).Err(); err != nil {
			s.log.Warn("failed to clear pending_handoff", "error", err)
		}
	}

	return nil
}

// PersistPendingHandoff records a requested-but-not-yet-honored handoff.
func (s *Store) PersistPendingHandoff(ctx context.Context, sessionID string, ph PendingHandoff) error {
	data, err := json.Marshal(ph)
	if err != nil {
		return fmt.Errorf("memory: marshal pending_handoff: %w", err)
	}
	return s.client.HSet(ctx, corememoryKey(sessionID), KeyPendingHandoff, string(data)).Err()
}

// ClearPendingHandoff removes a honored pending_handoff entry (§4.5.4
// "if a pending_handoff is found and its target is in the registry, honor it
// and clear the key").
func (s *Store) ClearPendingHandoff(ctx context.Context, sessionID string) error {
	return s.client.HDel(ctx, corememoryKey(sessionID), KeyPendingHandoff).Err()
}

// PersistTokenCounts merges one turn's LLM token usage into the session's
// persisted token_counts bag (§3 Orchestrator State).
func (s *Store) PersistTokenCounts(ctx context.Context, sessionID string, inputTokens, outputTokens int) error {
	if inputTokens == 0 && outputTokens == 0 {
		return nil
	}
	existing, err := s.client.HGet(ctx, corememoryKey(sessionID), KeyTokenCounts).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("memory: read token_counts: %w", err)
	}
	counts := map[string]int64{}
	if existing != "" {
		_ = json.Unmarshal([]byte(existing), &counts)
	}
	counts["input_tokens"] += int64(inputTokens)
	counts["output_tokens"] += int64(outputTokens)
	data, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("memory: marshal token_counts: %w", err)
	}
	return s.client.HSet(ctx, corememoryKey(sessionID), KeyTokenCounts, string(data)).Err()
}

// AppendToHistory is the hot-path conversation append: in-memory first,
// lazily flushed to Redis by FlushHistory. Bounded to the most recent
// UserMessageHistoryDepth entries per session.
func (s *Store) AppendToHistory(sessionID, agent, role, text string, maxDepth int) {
	s.mu <- struct{}{}
	defer func() { <-s.mu }()

	p, ok := s.historyMu[sessionID]
	if !ok {
		p = &pendingHistory{}
		s.historyMu[sessionID] = p
	}
	p.entries = append(p.entries, HistoryEntry{Agent: agent, Role: role, Text: text})
	if len(p.entries) > maxDepth {
		p.entries = p.entries[len(p.entries)-maxDepth:]
	}
}

// FlushHistory performs the best-effort durability write for buffered history
// appends. Intended to be called fire-and-forget from a background goroutine
// per §4.5.4 ("the memory store's own durability flush is fire-and-forget").
func (s *Store) FlushHistory(ctx context.Context, sessionID string) error {
	s.mu <- struct{}{}
	p, ok := s.historyMu[sessionID]
	var entries []HistoryEntry
	if ok {
		entries = append(entries, p.entries...)
	}
	<-s.mu

	if len(entries) == 0 {
		return nil
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("memory: marshal history: %w", err)
	}
	return s.client.HSet(ctx, corememoryKey(sessionID), KeyUserMessageHistory, string(data)).Err()
}

// IncrementTurnCount bumps the persisted turn counter and returns the new value.
func (s *Store) IncrementTurnCount(ctx context.Context, sessionID string) (int64, error) {
	n, err := s.client.HIncrBy(ctx, corememoryKey(sessionID), KeyTurnCount, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("memory: increment turn_count: %w", err)
	}
	return n, nil
}

// PersistSlots merges slot updates into the session-scoped context namespace.
func (s *Store) PersistSlots(ctx context.Context, sessionID string, slots map[string]any) error {
	if len(slots) == 0 {
		return nil
	}
	existing, err := s.client.HGet(ctx, contextKey(sessionID), KeySlots).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("memory: read slots: %w", err)
	}
	merged := map[string]any{}
	if existing != "" {
		_ = json.Unmarshal([]byte(existing), &merged)
	}
	for k, v := range slots {
		merged[k] = v
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("memory: marshal slots: %w", err)
	}
	return s.client.HSet(ctx, contextKey(sessionID), KeySlots, string(data)).Err()
}

// PersistToolOutput records a compact summary of a tool's result for later
// prompt assembly, keyed by tool name.
func (s *Store) PersistToolOutput(ctx context.Context, sessionID, toolName string, summary any) error {
	existing, err := s.client.HGet(ctx, contextKey(sessionID), KeyToolOutputs).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("memory: read tool_outputs: %w", err)
	}
	merged := map[string]any{}
	if existing != "" {
		_ = json.Unmarshal([]byte(existing), &merged)
	}
	merged[toolName] = summary
	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("memory: marshal tool_outputs: %w", err)
	}
	return s.client.HSet(ctx, contextKey(sessionID), KeyToolOutputs, string(data)).Err()
}

// Close releases the underlying Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}

// NewRedisClient is a small convenience constructor mirroring how the rest of
// this codebase keeps provider wiring (openai.NewClient, etc.) close to the
// package that uses it.
func NewRedisClient(addr string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
		DialTimeout: 5 * time.Second,
	})
}
