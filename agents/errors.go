package agents

import "errors"

var (
	// ErrAgentNotStarted indicates the agent has not been started
	ErrAgentNotStarted = errors.New("agent not started")
	
	// ErrAgentAlreadyStarted indicates the agent is already running
	ErrAgentAlreadyStarted = errors.New("agent already started")
	
	// ErrSessionNotFound indicates the session was not found
	ErrSessionNotFound = errors.New("session not found")
	
	// ErrInvalidConfiguration indicates invalid configuration
	ErrInvalidConfiguration = errors.New("invalid configuration")
	
	// ErrServiceNotAvailable indicates a required service is not available
	ErrServiceNotAvailable = errors.New("service not available")
	
	// ErrPluginNotFound indicates a plugin was not found
	ErrPluginNotFound = errors.New("plugin not found")
	
	// ErrToolNotFound indicates a function tool was not found
	ErrToolNotFound = errors.New("tool not found")
	
	// ErrInvalidArguments indicates invalid function arguments
	ErrInvalidArguments = errors.New("invalid arguments")
	
	// ErrRoomConnectionFailed indicates room connection failed
	ErrRoomConnectionFailed = errors.New("room connection failed")
	
	// ErrAudioProcessingFailed indicates audio processing failed
	ErrAudioProcessingFailed = errors.New("audio processing failed")

	// ErrAgentNotRegistered indicates a handoff target or active_agent name
	// has no registered Agent Descriptor.
	ErrAgentNotRegistered = errors.New("agent not registered")

	// ErrHandoffNotDeclared indicates a requested handoff target is not in
	// the current agent's outgoing_handoffs list (§4.5.1 step 6).
	ErrHandoffNotDeclared = errors.New("handoff target not declared")

	// ErrNoActiveAgent indicates process_turn was invoked before an active
	// agent was established (greeting not yet selected).
	ErrNoActiveAgent = errors.New("no active agent")

	// ErrToolIterationLimitExceeded indicates the tool-call loop in
	// process_turn exceeded config.MaxToolIterations without producing a
	// final assistant message (§4.5.1 step 5).
	ErrToolIterationLimitExceeded = errors.New("tool iteration limit exceeded")

	// ErrEmptyRegistry indicates update_scenario (§4.5.5) was given a
	// registry with no agents, leaving nothing to switch the session to.
	ErrEmptyRegistry = errors.New("registry has no agents")
)