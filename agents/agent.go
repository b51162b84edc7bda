// Package agents implements the Multi-Agent Orchestrator (C5): declarative
// Agent Descriptors, a name-keyed registry, and the process_turn state
// machine that drives the LLM/tool loop and feeds text to TTS Playback.
// Grounded on the prior AgentSession's streaming chat-completion loop
// (agents/session.go), generalized from one hardcoded agent to the
// registry-resolved, handoff-capable model §4.5 describes.
package agents

import (
	"strings"

	"github.com/artvoice/turnengine/services/llm"
)

// VoiceProfile is the {name, style, rate} triple an Agent Descriptor
// declares for TTS Playback (§3).
type VoiceProfile struct {
	Name  string
	Style string
	Rate  float64
}

func (v VoiceProfile) VoiceName() string   { return v.Name }
func (v VoiceProfile) VoiceStyle() string  { return v.Style }
func (v VoiceProfile) VoiceRate() float64  { return v.Rate }

// ModelProfile is the {deployment_id, temperature, top_p, max_tokens} tuple
// an Agent Descriptor declares for its LLM calls, plus optional cascade/
// realtime overrides (§3).
type ModelProfile struct {
	DeploymentID    string
	Temperature     float64
	TopP            float64
	MaxTokens       int
	ModelCascade    []string
	ModelRealtime   string
}

// Descriptor is the immutable Agent Descriptor data record (§3). It carries
// no behavior of its own: the orchestrator interprets it.
type Descriptor struct {
	Name                  string
	Description           string
	GreetingTemplate      string
	ReturnGreetingTemplate string
	PromptTemplate        string
	Voice                 VoiceProfile
	Model                 ModelProfile
	ToolNames             []string
	OutgoingHandoffs      []string
}

// RenderPrompt fills PromptTemplate with the session's template variables.
// Unknown placeholders are left as-is rather than erroring, matching the
// greeting-selection fallback philosophy in §4.5.2.
func (d Descriptor) RenderPrompt(vars map[string]string) string {
	return renderTemplate(d.PromptTemplate, vars)
}

// RenderGreeting fills GreetingTemplate, or ReturnGreetingTemplate when
// returning is true and that template is non-empty (§4.5.2 rules 3-4).
func (d Descriptor) RenderGreeting(vars map[string]string, returning bool) string {
	tmpl := d.GreetingTemplate
	if returning && d.ReturnGreetingTemplate != "" {
		tmpl = d.ReturnGreetingTemplate
	}
	return renderTemplate(tmpl, vars)
}

// HandoffDirective carries the per-handoff greeting-selection inputs
// resolved from the handoff tool call's own arguments, as distinct from the
// static Descriptor (§4.5.2 rules 1-2).
type HandoffDirective struct {
	// GreetingOverride, when non-empty, is spoken verbatim instead of any
	// template (rule 1: handoff.system_vars.greeting).
	GreetingOverride string
	// GreetOnSwitch false means a discrete handoff: no greeting is spoken at
	// all (rule 2).
	GreetOnSwitch bool
}

// DefaultHandoffDirective is the directive in effect for the session's
// initial greeting, which has no handoff call behind it: no override, and
// greet_on_switch defaults to true.
func DefaultHandoffDirective() HandoffDirective {
	return HandoffDirective{GreetOnSwitch: true}
}

// SelectGreeting implements the full §4.5.2 rule order: an explicit
// per-handoff override (rule 1) beats a discrete/silent handoff (rule 2),
// which beats the template selection RenderGreeting already implements
// (rules 3-4). The second return value is false when nothing should be
// spoken.
func (d Descriptor) SelectGreeting(vars map[string]string, returning bool, directive HandoffDirective) (string, bool) {
	if directive.GreetingOverride != "" {
		return directive.GreetingOverride, true
	}
	if !directive.GreetOnSwitch {
		return "", false
	}
	return d.RenderGreeting(vars, returning), true
}

// AllowsHandoffTo reports whether target is a declared outgoing handoff.
func (d Descriptor) AllowsHandoffTo(target string) bool {
	for _, h := range d.OutgoingHandoffs {
		if h == target {
			return true
		}
	}
	return false
}

// ChatOptions builds the llm.ChatOptions this descriptor's model profile
// implies; the tools slice is supplied by the caller since it depends on the
// runtime ToolRegistry, not the static descriptor.
func (d Descriptor) ChatOptions(tools []llm.Tool) *llm.ChatOptions {
	opts := llm.DefaultChatOptions()
	opts.Model = d.Model.DeploymentID
	opts.Temperature = d.Model.Temperature
	opts.TopP = d.Model.TopP
	opts.MaxTokens = d.Model.MaxTokens
	if len(tools) > 0 {
		opts.Tools = tools
		opts.ToolChoice = "auto"
	}
	return opts
}

func renderTemplate(tmpl string, vars map[string]string) string {
	result := tmpl
	for k, v := range vars {
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}
