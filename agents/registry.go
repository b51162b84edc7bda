package agents

import (
	"fmt"
	"sync"
)

// Registry maps agent_name to its Agent Descriptor (§3). This is distinct
// from plugins.Registry, which resolves STT/TTS/LLM/VAD service factories;
// this registry resolves which persona is active and where it can hand off.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Descriptor
}

// NewRegistry constructs an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Descriptor)}
}

// Register adds or replaces a descriptor by name.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("agents: descriptor name cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[d.Name] = d
	return nil
}

// Get resolves a descriptor by name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.agents[name]
	return d, ok
}

// Names lists all registered agent names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	return names
}

// ValidateHandoffs checks that every descriptor's outgoing_handoffs resolve
// to a registered agent, a startup-time integrity check the spec's handoff
// atomicity invariant depends on (§8).
func (r *Registry) ValidateHandoffs() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, d := range r.agents {
		for _, target := range d.OutgoingHandoffs {
			if _, ok := r.agents[target]; !ok {
				return fmt.Errorf("agents: %q declares outgoing handoff to unregistered agent %q", name, target)
			}
		}
	}
	return nil
}
