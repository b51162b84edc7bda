package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/matryer/is"

	"github.com/artvoice/turnengine/internal/sessioncore"
	"github.com/artvoice/turnengine/internal/turnengine"
	"github.com/artvoice/turnengine/services/llm"
	"github.com/artvoice/turnengine/services/tools"
)

// --- fake LLM -----------------------------------------------------------

// scriptedStream replays a fixed slice of chunks, then returns io.EOF-like
// behavior via a sentinel error.
type scriptedStream struct {
	chunks []llm.ChatCompletionChunk
	idx    int
}

var errStreamDone = fmt.Errorf("stream done")

func (s *scriptedStream) Recv() (*llm.ChatCompletionChunk, error) {
	if s.idx >= len(s.chunks) {
		return nil, errStreamDone
	}
	c := s.chunks[s.idx]
	s.idx++
	return &c, nil
}
func (s *scriptedStream) Close() error { return nil }

// fakeLLM scripts one ChatStream response per call (consumed in order) and
// one Chat response per call (also consumed in order), so a test can drive
// a multi-turn tool loop deterministically.
type fakeLLM struct {
	streamResponses []*scriptedStream
	streamIdx       int
	chatResponses   []llm.ChatCompletion
	chatIdx         int
	chatErr         error

	lastStreamMessages [][]llm.Message
	lastChatMessages   [][]llm.Message
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string, opts *llm.CompletionOptions) (*llm.Completion, error) {
	return nil, fmt.Errorf("not implemented")
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (*llm.ChatCompletion, error) {
	f.lastChatMessages = append(f.lastChatMessages, messages)
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	if f.chatIdx >= len(f.chatResponses) {
		return &llm.ChatCompletion{Message: llm.Message{Role: llm.RoleAssistant, Content: ""}}, nil
	}
	r := f.chatResponses[f.chatIdx]
	f.chatIdx++
	return &r, nil
}

func (f *fakeLLM) ChatStream(ctx context.Context, messages []llm.Message, opts *llm.ChatOptions) (llm.ChatStream, error) {
	f.lastStreamMessages = append(f.lastStreamMessages, messages)
	if f.streamIdx >= len(f.streamResponses) {
		return &scriptedStream{}, nil
	}
	s := f.streamResponses[f.streamIdx]
	f.streamIdx++
	return s, nil
}

func (f *fakeLLM) Name() string    { return "fake-llm" }
func (f *fakeLLM) Version() string { return "test" }

func textStream(text string, usage llm.Usage) *scriptedStream {
	u := usage
	return &scriptedStream{chunks: []llm.ChatCompletionChunk{
		{Delta: llm.MessageDelta{Content: text}, Usage: &u},
	}}
}

func toolCallStream(toolName, argsJSON string) *scriptedStream {
	return &scriptedStream{chunks: []llm.ChatCompletionChunk{
		{Delta: llm.MessageDelta{ToolCalls: []llm.ToolCall{
			{Index: 0, ID: "call-1", Function: llm.Function{Name: toolName, Arguments: argsJSON}},
		}}},
	}}
}

// --- fake tool ------------------------------------------------------------

type fakeTool struct {
	name       string
	result     map[string]interface{}
	err        error
	isTransfer bool
	calls      [][]interface{}
}

func (t *fakeTool) Name() string        { return t.name }
func (t *fakeTool) Description() string { return "a fake tool" }
func (t *fakeTool) Schema() tools.Schema {
	return tools.Schema{"type": "object", "properties": map[string]interface{}{}}
}
func (t *fakeTool) Transfer() bool { return t.isTransfer }
func (t *fakeTool) Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	t.calls = append(t.calls, []interface{}{args})
	if t.err != nil {
		return nil, t.err
	}
	return t.result, nil
}

// --- fixtures ---------------------------------------------------------------

func newTestDescriptor(name string, outgoingHandoffs ...string) Descriptor {
	return Descriptor{
		Name:                   name,
		GreetingTemplate:       "Hello, I'm " + name + ".",
		ReturnGreetingTemplate: "Welcome back, I'm " + name + " again.",
		PromptTemplate:         name + " prompt for session {session_id}",
		ToolNames:              []string{"lookup_balance"},
		OutgoingHandoffs:       outgoingHandoffs,
	}
}

func newTestOrchestrator(t *testing.T, fl *fakeLLM, registeredTools ...tools.FunctionTool) (*Orchestrator, *[]string) {
	t.Helper()
	sessCtx := sessioncore.New("orch-test-session", "conn-1", sessioncore.TransportBrowser)

	registry := NewRegistry()
	_ = registry.Register(newTestDescriptor("billing", "sales"))
	_ = registry.Register(newTestDescriptor("sales", "billing"))

	toolRegistry := tools.NewToolRegistry()
	for _, tool := range registeredTools {
		_ = toolRegistry.Register(tool)
	}

	var dispatched []string
	dispatch := func(ctx context.Context, text string) error {
		dispatched = append(dispatched, text)
		return nil
	}

	orch := NewOrchestrator(sessCtx, registry, toolRegistry, nil, fl, dispatch, nil)
	sessCtx.SetActiveAgent("billing")
	return orch, &dispatched
}

// --- tests ------------------------------------------------------------------

func TestOrchestrator_ProcessTurn_NoToolCallReturnsResponse(t *testing.T) {
	is := is.New(t)
	fl := &fakeLLM{streamResponses: []*scriptedStream{
		textStream("Your balance is $42.", llm.Usage{PromptTokens: 10, CompletionTokens: 5}),
	}}
	orch, dispatched := newTestOrchestrator(t, fl)

	result, err := orch.ProcessTurn(context.Background(), turnengine.TurnInput{Text: "what's my balance"})
	is.NoErr(err)
	is.Equal(result.AgentName, "billing")
	is.Equal(result.ResponseText, "Your balance is $42.")
	is.Equal(result.InputTokens, 10)
	is.Equal(result.OutputTokens, 5)
	is.True(!result.Interrupted)
	is.Equal(len(result.ToolCalls), 0)
	is.True(len(*dispatched) >= 1)
}

// TestOrchestrator_ProcessTurn_ToolLoop exercises §8 scenario 5: a tool call
// returns a result, which is merged into the loop (persisted to memory is
// skipped since Memory is nil here), and the next completion produces the
// final response with no further tool calls.
func TestOrchestrator_ProcessTurn_ToolLoop(t *testing.T) {
	is := is.New(t)
	tool := &fakeTool{name: "lookup_balance", result: map[string]interface{}{"balance": 42}}
	fl := &fakeLLM{streamResponses: []*scriptedStream{
		toolCallStream("lookup_balance", `{}`),
		textStream("Your balance is $42.", llm.Usage{PromptTokens: 20, CompletionTokens: 8}),
	}}
	orch, _ := newTestOrchestrator(t, fl, tool)

	result, err := orch.ProcessTurn(context.Background(), turnengine.TurnInput{Text: "what's my balance"})
	is.NoErr(err)
	is.Equal(len(tool.calls), 1)
	is.Equal(result.ResponseText, "Your balance is $42.")
	is.Equal(len(result.ToolCalls), 1)
	is.Equal(result.ToolCalls[0], "lookup_balance")
}

// TestOrchestrator_ProcessTurn_HandoffAtomicity exercises §8 "handoff
// atomicity": after a handoff tool call resolves, the very next completion
// in the same turn is issued against the target agent's own prompt/history,
// and the active agent switches before that call is made.
func TestOrchestrator_ProcessTurn_HandoffAtomicity(t *testing.T) {
	is := is.New(t)
	fl := &fakeLLM{
		streamResponses: []*scriptedStream{
			toolCallStream("handoff_to_agent", `{"target":"sales","reason":"wants to upgrade"}`),
		},
		chatResponses: []llm.ChatCompletion{
			{Message: llm.Message{Role: llm.RoleAssistant, Content: "Hi, this is sales, happy to help you upgrade today."}},
		},
	}
	orch, dispatched := newTestOrchestrator(t, fl)

	result, err := orch.ProcessTurn(context.Background(), turnengine.TurnInput{Text: "I want to upgrade my plan"})
	is.NoErr(err)
	is.Equal(result.AgentName, "sales")

	is.Equal(len(fl.lastChatMessages), 1)
	lastMessages := fl.lastChatMessages[0]
	is.True(len(lastMessages) > 0)
	is.Equal(lastMessages[0].Role, llm.RoleSystem)
	is.True(lastMessages[0].Content == "sales prompt for session orch-test-session")

	is.True(len(*dispatched) >= 1)
	is.Equal((*dispatched)[len(*dispatched)-1], "Hi, this is sales, happy to help you upgrade today.")
}

// TestOrchestrator_ProcessTurn_HandoffGreetingOverride exercises §4.5.2 rule
// 1: when the fresh LLM call produces nothing substantive, the explicit
// greeting override (not the agent's template) is what gets spoken.
func TestOrchestrator_ProcessTurn_HandoffGreetingOverride(t *testing.T) {
	is := is.New(t)
	fl := &fakeLLM{
		streamResponses: []*scriptedStream{
			toolCallStream("handoff_to_agent", `{"target":"sales","greeting":"Sales here, one moment."}`),
		},
	}
	orch, dispatched := newTestOrchestrator(t, fl)

	_, err := orch.ProcessTurn(context.Background(), turnengine.TurnInput{Text: "transfer me"})
	is.NoErr(err)
	is.Equal((*dispatched)[len(*dispatched)-1], "Sales here, one moment.")
}

// TestOrchestrator_ProcessTurn_DiscreteHandoffStaysSilent exercises §4.5.2
// rule 2: greet_on_switch=false means nothing is spoken after the handoff.
func TestOrchestrator_ProcessTurn_DiscreteHandoffStaysSilent(t *testing.T) {
	is := is.New(t)
	fl := &fakeLLM{
		streamResponses: []*scriptedStream{
			toolCallStream("handoff_to_agent", `{"target":"sales","greet_on_switch":false}`),
		},
	}
	orch, dispatched := newTestOrchestrator(t, fl)
	before := len(*dispatched)

	result, err := orch.ProcessTurn(context.Background(), turnengine.TurnInput{Text: "quietly transfer me"})
	is.NoErr(err)
	is.Equal(result.AgentName, "sales")
	is.Equal(len(*dispatched), before) // nothing additional spoken
}

// TestOrchestrator_ProcessTurn_HandoffNotAllowed exercises the
// AllowsHandoffTo guard: a target not in OutgoingHandoffs never switches the
// active agent.
func TestOrchestrator_ProcessTurn_HandoffNotAllowed(t *testing.T) {
	is := is.New(t)
	fl := &fakeLLM{streamResponses: []*scriptedStream{
		toolCallStream("handoff_to_agent", `{"target":"unregistered_agent"}`),
		textStream("Sorry, I can't do that, let me help another way.", llm.Usage{}),
	}}
	orch, _ := newTestOrchestrator(t, fl)

	result, err := orch.ProcessTurn(context.Background(), turnengine.TurnInput{Text: "send me somewhere odd"})
	is.NoErr(err)
	is.Equal(result.AgentName, "billing") // stayed put; handoff target wasn't declared
}

func TestOrchestrator_Greeting_InitialAgentUsesGreetingTemplate(t *testing.T) {
	is := is.New(t)
	fl := &fakeLLM{}
	orch, _ := newTestOrchestrator(t, fl)

	greeting, err := orch.Greeting(context.Background(), "billing", false)
	is.NoErr(err)
	is.Equal(greeting, "Hello, I'm billing.")
}

func TestOrchestrator_Greeting_ReturningAgentUsesReturnTemplate(t *testing.T) {
	is := is.New(t)
	fl := &fakeLLM{}
	orch, _ := newTestOrchestrator(t, fl)

	greeting, err := orch.Greeting(context.Background(), "billing", true)
	is.NoErr(err)
	is.Equal(greeting, "Welcome back, I'm billing again.")
}

// TestOrchestrator_CrossAgentContext_FiltersShortAndGreetingLike exercises
// the cross-agent note assembly: short utterances and greeting-like phrases
// are excluded, substantive ones from another agent's history surface as
// cross_agent_context user notes.
func TestOrchestrator_CrossAgentContext_FiltersShortAndGreetingLike(t *testing.T) {
	is := is.New(t)
	fl := &fakeLLM{}
	orch, _ := newTestOrchestrator(t, fl)

	salesHist := orch.historyFor("sales")
	salesHist.AddUserMessage("hi")                                    // greeting-like, filtered
	salesHist.AddUserMessage("ok")                                    // too short, filtered
	salesHist.AddUserMessage("I need help upgrading my enterprise plan") // substantive, kept
	salesHist.AddUserMessage("I need help upgrading my enterprise plan") // duplicate, deduped

	notes := orch.crossAgentContext("billing")
	is.Equal(len(notes), 1)
	is.Equal(notes[0], "I need help upgrading my enterprise plan")
}

func TestOrchestrator_ProcessTurn_NoActiveAgentErrors(t *testing.T) {
	is := is.New(t)
	fl := &fakeLLM{}
	orch, _ := newTestOrchestrator(t, fl)
	orch.sessCtx.SetActiveAgent("")

	_, err := orch.ProcessTurn(context.Background(), turnengine.TurnInput{Text: "hello"})
	is.True(err != nil)
}

func TestOrchestrator_ProcessTurn_InterruptedWhenCancelledBeforeStart(t *testing.T) {
	is := is.New(t)
	fl := &fakeLLM{streamResponses: []*scriptedStream{
		textStream("should never be reached", llm.Usage{}),
	}}
	orch, _ := newTestOrchestrator(t, fl)
	orch.sessCtx.RequestCancel()

	result, err := orch.ProcessTurn(context.Background(), turnengine.TurnInput{Text: "hello"})
	is.NoErr(err)
	is.True(result.Interrupted)
}

func TestOrchestrator_UpdateScenario_SwitchesRegistryAndAgent(t *testing.T) {
	is := is.New(t)
	fl := &fakeLLM{}
	orch, _ := newTestOrchestrator(t, fl)

	newRegistry := NewRegistry()
	_ = newRegistry.Register(newTestDescriptor("support"))

	is.NoErr(orch.UpdateScenario(newRegistry, "support"))
	active, _ := orch.sessCtx.GetActiveAgent().(string)
	is.Equal(active, "support")
}

func TestOrchestrator_UpdateScenario_RejectsEmptyRegistry(t *testing.T) {
	is := is.New(t)
	fl := &fakeLLM{}
	orch, _ := newTestOrchestrator(t, fl)

	err := orch.UpdateScenario(NewRegistry(), "")
	is.True(err != nil)
}

func TestOrchestrator_UpdateScenario_RejectsBadHandoffGraph(t *testing.T) {
	is := is.New(t)
	fl := &fakeLLM{}
	orch, _ := newTestOrchestrator(t, fl)

	bad := NewRegistry()
	_ = bad.Register(newTestDescriptor("support", "nonexistent_agent"))

	err := orch.UpdateScenario(bad, "support")
	is.True(err != nil)
}

// helper retained for potential JSON-args assertions in future tests.
func mustJSON(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}
