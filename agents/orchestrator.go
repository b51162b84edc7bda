package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/artvoice/turnengine/internal/config"
	"github.com/artvoice/turnengine/internal/memory"
	"github.com/artvoice/turnengine/internal/sessioncore"
	"github.com/artvoice/turnengine/internal/turnengine"
	"github.com/artvoice/turnengine/services/llm"
	"github.com/artvoice/turnengine/services/tools"
)

// handoffToolName is the generic handoff tool every agent's tool set
// includes implicitly; its arguments name the target agent and optionally
// carry greeting-selection overrides (§4.5.1 step 3, §4.5.2).
const handoffToolName = "handoff_to_agent"

// crossAgentMinLength is the length in bytes a user message from another
// agent's history must exceed before it's surfaced as cross-agent context
// (§4.5.1 step 2).
const crossAgentMinLength = 10

// greetingLikePhrases filters trivial acknowledgements and greetings out of
// cross-agent context; they carry no information worth repeating to a
// different persona.
var greetingLikePhrases = map[string]bool{
	"hello": true, "hi": true, "hey": true, "hi there": true, "hello there": true,
	"good morning": true, "good afternoon": true, "good evening": true,
	"yes": true, "no": true, "ok": true, "okay": true, "thanks": true, "thank you": true,
}

func isGreetingLike(text string) bool {
	return greetingLikePhrases[strings.ToLower(strings.TrimSpace(text))]
}

// SentenceDispatcher hands one complete sentence to TTS Playback (C3). The
// orchestrator never talks to playback directly, mirroring turnengine's
// DispatchTTSFunc boundary.
type SentenceDispatcher func(ctx context.Context, text string) error

// Orchestrator implements process_turn (§4.5.1) and the surrounding
// lifecycle operations (§4.5.2-4.5.5). One Orchestrator instance serves one
// session.
type Orchestrator struct {
	Registry *Registry
	Tools    *tools.ToolRegistry
	Memory   *memory.Store
	LLM      llm.LLM

	sessCtx *sessioncore.Context
	dispatch SentenceDispatcher
	suppress func(bool)

	// histories holds one ChatContext per agent name visited this session,
	// so each persona keeps its own conversation rather than sharing one
	// global context (§4.5.1 step 2).
	histories map[string]*llm.ChatContext

	mu      sync.Mutex
	visited map[string]bool
	log     *slog.Logger
}

// NewOrchestrator constructs an orchestrator bound to one session.
// suppressBargeIn toggles the turn engine's barge-in suppression flag: it is
// set when a handoff_to_agent call is accepted and cleared once the
// post-handoff response has been spoken. Greeting does not toggle it.
func NewOrchestrator(sessCtx *sessioncore.Context, registry *Registry, toolRegistry *tools.ToolRegistry, store *memory.Store, llmService llm.LLM, dispatch SentenceDispatcher, suppressBargeIn func(bool)) *Orchestrator {
	return &Orchestrator{
		Registry:  registry,
		Tools:     toolRegistry,
		Memory:    store,
		LLM:       llmService,
		sessCtx:   sessCtx,
		dispatch:  dispatch,
		suppress:  suppressBargeIn,
		histories: make(map[string]*llm.ChatContext),
		visited:   make(map[string]bool),
		log:       slog.With("component", "orchestrator", "session_id", sessCtx.SessionID),
	}
}

// historyFor returns the named agent's own chat history, creating an empty
// one the first time it's visited.
func (o *Orchestrator) historyFor(agentName string) *llm.ChatContext {
	hist, ok := o.histories[agentName]
	if !ok {
		hist = llm.NewChatContext()
		o.histories[agentName] = hist
	}
	return hist
}

// crossAgentContext collects other agents' user messages long enough and
// substantive enough to matter, deduplicated by lowercased content, in
// agent-name order for determinism (§4.5.1 step 2).
func (o *Orchestrator) crossAgentContext(activeName string) []string {
	names := make([]string, 0, len(o.histories))
	for name := range o.histories {
		if name != activeName {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	seen := make(map[string]bool)
	var notes []string
	for _, name := range names {
		for _, m := range o.histories[name].Messages {
			if m.Role != llm.RoleUser {
				continue
			}
			text := strings.TrimSpace(m.Content)
			if len(text) <= crossAgentMinLength || isGreetingLike(text) {
				continue
			}
			key := strings.ToLower(text)
			if seen[key] {
				continue
			}
			seen[key] = true
			notes = append(notes, text)
		}
	}
	return notes
}

// assembleMessages builds the final message slice for activeName's next LLM
// call: its system message first, then cross-agent context, then its own
// history verbatim (the turn's current user message is already the last
// entry in that history by the time this is called) (§4.5.1 step 2).
func (o *Orchestrator) assembleMessages(activeName string) []llm.Message {
	all := o.historyFor(activeName).GetMessages()

	var msgs []llm.Message
	start := 0
	if len(all) > 0 && all[0].Role == llm.RoleSystem {
		msgs = append(msgs, all[0])
		start = 1
	}
	for _, note := range o.crossAgentContext(activeName) {
		msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: note, Name: "cross_agent_context"})
	}
	return append(msgs, all[start:]...)
}

// ProcessTurn implements turnengine.ProcessTurnFunc (§4.5.1): assemble
// messages, stream the LLM response sentence-by-sentence to TTS, run any
// tool calls (including handoffs) up to config.MaxToolIterations, and
// persist the updated state.
func (o *Orchestrator) ProcessTurn(ctx context.Context, input turnengine.TurnInput) (*turnengine.TurnResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	activeName, _ := o.sessCtx.GetActiveAgent().(string)
	if activeName == "" {
		return nil, ErrNoActiveAgent
	}
	descriptor, ok := o.Registry.Get(activeName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAgentNotRegistered, activeName)
	}

	hist := o.historyFor(activeName)
	o.ensureSystemPromptFor(descriptor, hist)
	hist.AddUserMessage(input.Text)
	if o.Memory != nil {
		o.Memory.AppendToHistory(o.sessCtx.SessionID, activeName, "user", input.Text, config.UserMessageHistoryDepth)
	}

	splitter := NewSentenceSplitter()
	result := &turnengine.TurnResult{AgentName: activeName}

	for iteration := 0; iteration < config.MaxToolIterations; iteration++ {
		if o.sessCtx.CancelSignal().IsSet() {
			result.Interrupted = true
			return result, nil
		}

		content, toolCalls, usage, err := o.streamOneCompletion(ctx, activeName, descriptor, splitter)
		if err != nil {
			return result, fmt.Errorf("agents: stream completion: %w", err)
		}
		result.InputTokens += usage.PromptTokens
		result.OutputTokens += usage.CompletionTokens
		if content != "" {
			result.ResponseText = content
		}
		if o.sessCtx.CancelSignal().IsSet() {
			result.Interrupted = true
		}

		if len(toolCalls) == 0 {
			if err := o.afterTurn(activeName, result.InputTokens, result.OutputTokens); err != nil {
				o.log.Warn("failed to persist turn state", "error", err)
			}
			return result, nil
		}

		for _, tc := range toolCalls {
			result.ToolCalls = append(result.ToolCalls, tc.Function.Name)
		}
		hist.AddToolCallMessage(toolCalls)

		handoffTarget, directive, handled, runErr := o.runToolCalls(ctx, activeName, descriptor, toolCalls)
		if runErr != nil {
			o.log.Warn("tool execution failed", "error", runErr)
		}
		if !handled {
			continue
		}

		if handoffTarget != "" {
			next, ok := o.Registry.Get(handoffTarget)
			if !ok {
				o.log.Error("handoff target not registered", "target", handoffTarget)
				continue
			}
			descriptor = next
			activeName = handoffTarget
			hist = o.historyFor(activeName)
			o.sessCtx.SetActiveAgent(activeName)
			result.AgentName = activeName
			if err := o.postHandoffGreeting(ctx, descriptor, directive, input.Text); err != nil {
				o.log.Warn("post-handoff response failed", "error", err)
			}
		}
	}

	return result, ErrToolIterationLimitExceeded
}

// streamOneCompletion runs one ChatStream call for activeName, flushing
// complete sentences to o.dispatch as they arrive, merging tool-call
// argument fragments by Index (§6 LLM contract: "arguments arrive as
// concatenated JSON fragments"), and accumulating the terminal chunk's
// token usage (§4.5.1 step 7).
func (o *Orchestrator) streamOneCompletion(ctx context.Context, activeName string, descriptor Descriptor, splitter *SentenceSplitter) (string, []llm.ToolCall, llm.Usage, error) {
	llmTools := o.buildToolSet(descriptor)
	opts := descriptor.ChatOptions(llmTools)

	stream, err := o.LLM.ChatStream(ctx, o.assembleMessages(activeName), opts)
	if err != nil {
		return "", nil, llm.Usage{}, err
	}
	defer stream.Close()

	var content string
	var toolCalls []llm.ToolCall
	var usage llm.Usage

	for {
		if o.sessCtx.CancelSignal().IsSet() {
			return content, toolCalls, usage, nil
		}

		chunk, err := stream.Recv()
		if err != nil {
			break
		}

		if chunk.Usage != nil {
			usage = *chunk.Usage
		}

		if chunk.Delta.Content != "" {
			content += chunk.Delta.Content
			for _, sentence := range splitter.Feed(chunk.Delta.Content) {
				if o.sessCtx.CancelSignal().IsSet() {
					return content, toolCalls, usage, nil
				}
				if err := o.dispatch(ctx, sentence); err != nil {
					o.log.Warn("sentence dispatch failed", "error", err)
				}
			}
		}

		if len(chunk.Delta.ToolCalls) > 0 {
			toolCalls = mergeToolCallDeltas(toolCalls, chunk.Delta.ToolCalls)
		}
	}

	for _, sentence := range splitter.Flush() {
		if err := o.dispatch(ctx, sentence); err != nil {
			o.log.Warn("sentence dispatch failed", "error", err)
		}
	}

	if content != "" {
		o.historyFor(activeName).AddAssistantMessage(content)
		if o.Memory != nil {
			o.Memory.AppendToHistory(o.sessCtx.SessionID, activeName, "assistant", content, config.UserMessageHistoryDepth)
		}
	}

	return content, toolCalls, usage, nil
}

// mergeToolCallDeltas concatenates argument fragments for the tool call at
// each delta's Index, creating a new entry when Index is unseen.
func mergeToolCallDeltas(existing []llm.ToolCall, deltas []llm.ToolCall) []llm.ToolCall {
	byIndex := make(map[int]int, len(existing))
	for i, tc := range existing {
		byIndex[tc.Index] = i
	}

	for _, d := range deltas {
		if i, ok := byIndex[d.Index]; ok {
			existing[i].Function.Arguments += d.Function.Arguments
			if d.ID != "" {
				existing[i].ID = d.ID
			}
			if d.Function.Name != "" {
				existing[i].Function.Name = d.Function.Name
			}
			continue
		}
		byIndex[d.Index] = len(existing)
		existing = append(existing, d)
	}
	return existing
}

// runToolCalls executes each tool call (transfer tools included) and writes
// its result back to activeName's chat history. It returns the handoff
// target agent name if a permitted handoff_to_agent call fired, the greeting directive
// resolved from that call's own arguments (§4.5.2 rules 1-2), and
// handled=false if no call could be resolved (caller should not loop
// further on this iteration).
func (o *Orchestrator) runToolCalls(ctx context.Context, activeName string, descriptor Descriptor, calls []llm.ToolCall) (handoffTarget string, directive HandoffDirective, handled bool, err error) {
	hist := o.historyFor(activeName)
	directive = DefaultHandoffDirective()

	for _, call := range calls {
		var args map[string]interface{}
		if call.Function.Arguments != "" {
			if jsonErr := json.Unmarshal([]byte(call.Function.Arguments), &args); jsonErr != nil {
				hist.AddToolResultMessage(fmt.Sprintf(`{"error": %q}`, jsonErr.Error()), call.ID, call.Function.Name)
				continue
			}
		}

		if call.Function.Name == handoffToolName {
			target, _ := args["target"].(string)
			if !descriptor.AllowsHandoffTo(target) {
				hist.AddToolResultMessage(`{"error": "handoff not permitted"}`, call.ID, call.Function.Name)
				err = ErrHandoffNotDeclared
				continue
			}
			if o.suppress != nil {
				o.suppress(true)
			}
			hist.AddToolResultMessage(fmt.Sprintf(`{"handed_off_to": %q}`, target), call.ID, call.Function.Name)
			handoffTarget = target
			handled = true

			directive = HandoffDirective{GreetOnSwitch: true}
			if greeting, ok := args["greeting"].(string); ok {
				directive.GreetingOverride = greeting
			}
			if greetOnSwitch, ok := args["greet_on_switch"].(bool); ok {
				directive.GreetOnSwitch = greetOnSwitch
			}
			continue
		}

		tool, ok := o.Tools.Lookup(call.Function.Name)
		if !ok {
			hist.AddToolResultMessage(`{"error": "tool not found"}`, call.ID, call.Function.Name)
			continue
		}

		result, execErr := o.Tools.Execute(ctx, call.Function.Name, args)
		if execErr != nil {
			hist.AddToolResultMessage(fmt.Sprintf(`{"error": %q}`, execErr.Error()), call.ID, call.Function.Name)
			err = execErr
			continue
		}

		raw, _ := json.Marshal(result)
		hist.AddToolResultMessage(string(raw), call.ID, call.Function.Name)
		handled = true

		if slots, ok := result["slots"].(map[string]interface{}); ok && o.Memory != nil {
			if persistErr := o.Memory.PersistSlots(ctx, o.sessCtx.SessionID, slots); persistErr != nil {
				o.log.Warn("failed to persist slots", "error", persistErr)
			}
		}

		// Only tools tagged "transfer" may request playback interruption
		// (§9 Open Question #3); a non-transfer tool setting the same key
		// in its result is ignored.
		if interrupt, _ := result["should_interrupt_playback"].(bool); interrupt && tool.Transfer() {
			o.sessCtx.RequestCancel()
		}
	}
	return handoffTarget, directive, handled, err
}

// buildToolSet converts the descriptor's declared tool_names into LLM tool
// definitions plus the generic handoff_to_agent tool when the descriptor
// declares any outgoing handoffs (§4.5.1 step 3). The handoff tool's
// optional greeting/greet_on_switch arguments let a model-issued handoff
// drive §4.5.2 rules 1-2 directly.
func (o *Orchestrator) buildToolSet(descriptor Descriptor) []llm.Tool {
	var llmTools []llm.Tool
	for _, name := range descriptor.ToolNames {
		tool, ok := o.Tools.Lookup(name)
		if !ok {
			continue
		}
		llmTools = append(llmTools, llm.Tool{
			Type: "function",
			Function: llm.ToolFunc{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  map[string]interface{}(tool.Schema()),
			},
		})
	}

	if len(descriptor.OutgoingHandoffs) > 0 {
		llmTools = append(llmTools, llm.Tool{
			Type: "function",
			Function: llm.ToolFunc{
				Name:        handoffToolName,
				Description: "Transfer the conversation to another specialist agent.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"target": map[string]interface{}{
							"type": "string",
							"enum": descriptor.OutgoingHandoffs,
						},
						"reason": map[string]interface{}{
							"type":        "string",
							"description": "Why the conversation is being transferred.",
						},
						"greeting": map[string]interface{}{
							"type":        "string",
							"description": "Exact greeting the new agent should speak, overriding its own template.",
						},
						"greet_on_switch": map[string]interface{}{
							"type":        "boolean",
							"description": "Set to false for a discrete handoff where the new agent should not announce itself.",
						},
					},
					"required": []string{"target"},
				},
			},
		})
	}

	return llmTools
}

// ensureSystemPromptFor installs descriptor's rendered prompt as hist's
// system message, refreshing it so a persona's instructions are always
// current even if templateVars changed since hist was created (§4.5.1 step 1).
func (o *Orchestrator) ensureSystemPromptFor(descriptor Descriptor, hist *llm.ChatContext) {
	vars := o.templateVars()
	prompt := descriptor.RenderPrompt(vars)
	hist.SystemPrompt = prompt
	if len(hist.Messages) == 0 {
		hist.AddMessage(llm.RoleSystem, prompt)
		return
	}
	if hist.Messages[0].Role == llm.RoleSystem {
		hist.Messages[0].Content = prompt
		return
	}
	hist.Messages = append([]llm.ChatMessage{{Role: llm.RoleSystem, Content: prompt}}, hist.Messages...)
}

func (o *Orchestrator) templateVars() map[string]string {
	return map[string]string{
		"session_id": o.sessCtx.SessionID,
	}
}

// afterTurn persists the turn's state to memory and marks the agent
// visited (§4.5.4), bumping the persisted turn counter and token_counts
// bag (§3 Orchestrator State).
func (o *Orchestrator) afterTurn(activeAgent string, inputTokens, outputTokens int) error {
	o.visited[activeAgent] = true
	if o.Memory == nil {
		return nil
	}
	if _, err := o.Memory.IncrementTurnCount(context.Background(), o.sessCtx.SessionID); err != nil {
		o.log.Warn("failed to increment turn_count", "error", err)
	}
	if err := o.Memory.PersistTokenCounts(context.Background(), o.sessCtx.SessionID, inputTokens, outputTokens); err != nil {
		o.log.Warn("failed to persist token_counts", "error", err)
	}
	return o.Memory.PersistSnapshot(context.Background(), o.sessCtx.SessionID, activeAgent, o.visited, nil, false)
}

// Greeting implements §4.5.2: select and render the greeting for the
// session's initial active agent, marking it visited. The initial greeting
// has no handoff call behind it, so it always uses the default directive
// (no override, announced).
func (o *Orchestrator) Greeting(ctx context.Context, agentName string, returning bool) (string, error) {
	descriptor, ok := o.Registry.Get(agentName)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrAgentNotRegistered, agentName)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	hist := o.historyFor(agentName)
	o.ensureSystemPromptFor(descriptor, hist)
	o.sessCtx.SetActiveAgent(agentName)
	o.visited[agentName] = true

	greeting, shouldSpeak := descriptor.SelectGreeting(o.templateVars(), returning, DefaultHandoffDirective())
	if !shouldSpeak {
		return "", nil
	}
	hist.AddAssistantMessage(greeting)
	if o.Memory != nil {
		o.Memory.AppendToHistory(o.sessCtx.SessionID, agentName, "assistant", greeting, config.UserMessageHistoryDepth)
	}
	return greeting, nil
}

// postHandoffGreeting implements §4.5.3: after a handoff completes, the new
// agent produces a fresh response from its own prompt and per-agent
// history (seeded with the triggering utterance if it has none yet),
// falling back to the selected greeting template when that response is too
// short to be substantive or the LLM call itself fails.
func (o *Orchestrator) postHandoffGreeting(ctx context.Context, descriptor Descriptor, directive HandoffDirective, userText string) error {
	defer func() {
		if o.suppress != nil {
			o.suppress(false)
		}
	}()

	returning := o.visited[descriptor.Name]
	o.visited[descriptor.Name] = true

	fallback, shouldSpeak := descriptor.SelectGreeting(o.templateVars(), returning, directive)
	if !shouldSpeak {
		// Discrete handoff (§4.5.2 rule 2): no response at all.
		return nil
	}

	hist := o.historyFor(descriptor.Name)
	o.ensureSystemPromptFor(descriptor, hist)
	if len(hist.Messages) <= 1 && userText != "" {
		hist.AddUserMessage(userText)
	}

	response, err := o.freshResponse(ctx, descriptor.Name, descriptor)
	if err != nil {
		o.log.Warn("post-handoff LLM call failed, falling back to greeting", "agent", descriptor.Name, "error", err)
		return o.speakAndRecord(ctx, descriptor.Name, fallback)
	}
	if len(strings.TrimSpace(response)) < 10 {
		return o.speakAndRecord(ctx, descriptor.Name, fallback)
	}
	return o.speakAndRecord(ctx, descriptor.Name, response)
}

// freshResponse issues one non-streaming LLM call against agentName's
// current assembled messages (§4.5.3's "fresh LLM call with the new
// agent's prompt and its existing per-agent history").
func (o *Orchestrator) freshResponse(ctx context.Context, agentName string, descriptor Descriptor) (string, error) {
	completion, err := o.LLM.Chat(ctx, o.assembleMessages(agentName), descriptor.ChatOptions(o.buildToolSet(descriptor)))
	if err != nil {
		return "", err
	}
	return completion.Message.Content, nil
}

// speakAndRecord records text as agentName's assistant turn and dispatches
// it to TTS sentence by sentence.
func (o *Orchestrator) speakAndRecord(ctx context.Context, agentName, text string) error {
	o.historyFor(agentName).AddAssistantMessage(text)
	if o.Memory != nil {
		o.Memory.AppendToHistory(o.sessCtx.SessionID, agentName, "assistant", text, config.UserMessageHistoryDepth)
	}

	splitter := NewSentenceSplitter()
	for _, sentence := range splitter.Feed(text) {
		if err := o.dispatch(ctx, sentence); err != nil {
			return err
		}
	}
	for _, sentence := range splitter.Flush() {
		if err := o.dispatch(ctx, sentence); err != nil {
			return err
		}
	}
	return nil
}

// ActiveVoice returns the active agent's declared voice profile, for TTS
// Playback's voice-resolution fallback chain (§4.3 step 1b).
func (o *Orchestrator) ActiveVoice() (VoiceProfile, bool) {
	name, _ := o.sessCtx.GetActiveAgent().(string)
	if name == "" {
		return VoiceProfile{}, false
	}
	d, ok := o.Registry.Get(name)
	if !ok {
		return VoiceProfile{}, false
	}
	return d.Voice, true
}

// SyncFromMemory restores chat history and active-agent state from the
// session's persisted snapshot, per §4.5.4, and honors any pending_handoff
// recorded since the last sync: if its target is still registered, the
// session switches to it and the key is cleared; otherwise it's logged and
// ignored.
func (o *Orchestrator) SyncFromMemory(ctx context.Context) error {
	if o.Memory == nil {
		return nil
	}
	available := make(map[string]bool)
	for _, name := range o.Registry.Names() {
		available[name] = true
	}
	state, err := o.Memory.LoadSnapshot(ctx, o.sessCtx.SessionID, available)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	for name := range state.VisitedAgents {
		o.visited[name] = true
	}
	if state.ActiveAgent != "" {
		o.sessCtx.SetActiveAgent(state.ActiveAgent)
	}
	for _, entry := range state.History {
		agent := entry.Agent
		if agent == "" {
			agent = state.ActiveAgent
		}
		o.historyFor(agent).AddMessage(llm.MessageRole(entry.Role), entry.Text)
	}

	if state.PendingHandoff != nil {
		target := state.PendingHandoff.Target
		if _, ok := o.Registry.Get(target); ok {
			o.sessCtx.SetActiveAgent(target)
			o.visited[target] = true
			if err := o.Memory.ClearPendingHandoff(ctx, o.sessCtx.SessionID); err != nil {
				o.log.Warn("failed to clear pending_handoff", "error", err)
			}
		} else {
			o.log.Warn("pending_handoff target not registered, ignoring", "target", target)
		}
	}
	return nil
}

// UpdateScenario implements update_scenario (§4.5.5): atomically replaces
// the agent registry, clears visited_agents for a fresh experience, and
// switches the active agent to newStartAgent, or — when that's empty —
// keeps the current active agent if it still exists in the new registry,
// else falls back to the new registry's first agent in name order.
//
// This design has no persistent LLM-connection object to push a
// session.update to; ensureSystemPromptFor already re-renders the system
// message from the new registry on the very next process_turn call, which
// is this implementation's equivalent of that signal.
func (o *Orchestrator) UpdateScenario(newRegistry *Registry, newStartAgent string) error {
	if err := newRegistry.ValidateHandoffs(); err != nil {
		return fmt.Errorf("agents: update_scenario: %w", err)
	}
	names := newRegistry.Names()
	if len(names) == 0 {
		return fmt.Errorf("agents: update_scenario: %w", ErrEmptyRegistry)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.Registry = newRegistry
	o.visited = make(map[string]bool)
	o.histories = make(map[string]*llm.ChatContext)

	target := newStartAgent
	if target == "" {
		if current, _ := o.sessCtx.GetActiveAgent().(string); current != "" {
			if _, ok := newRegistry.Get(current); ok {
				target = current
			}
		}
		if target == "" {
			sort.Strings(names)
			target = names[0]
		}
	}
	if _, ok := newRegistry.Get(target); !ok {
		return fmt.Errorf("%w: %q", ErrAgentNotRegistered, target)
	}

	o.sessCtx.SetActiveAgent(target)
	o.visited[target] = true
	return nil
}
