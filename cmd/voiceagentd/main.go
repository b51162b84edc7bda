// Command voiceagentd is the minimal process entrypoint: parse flags,
// construct the process-wide provider registry and agent registry once,
// accept telephony WebSocket connections, and hand each one to
// sessionrunner. It carries no business logic of its own (§1 "HTTP
// routing, authentication, lifecycle bootstrapping ... out of scope"); the
// turn engine and orchestrator packages own every decision made here.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/artvoice/turnengine/agents"
	"github.com/artvoice/turnengine/internal/memory"
	"github.com/artvoice/turnengine/internal/playback"
	"github.com/artvoice/turnengine/internal/sessioncore"
	"github.com/artvoice/turnengine/internal/sessionrunner"
	"github.com/artvoice/turnengine/internal/transport"
	"github.com/artvoice/turnengine/media"
	"github.com/artvoice/turnengine/plugins"
	"github.com/artvoice/turnengine/plugins/deepgram"
	"github.com/artvoice/turnengine/plugins/openai"
	_ "github.com/artvoice/turnengine/plugins/silero"
	"github.com/artvoice/turnengine/pkg/version"
	"github.com/artvoice/turnengine/services/tools"
	"github.com/artvoice/turnengine/services/vad"
)

var (
	flagAddr         string
	flagRedisAddr    string
	flagOpenAIKey    string
	flagDeepgramKey  string
	flagDefaultAgent string
	flagSTTProvider  string
	flagTTSProvider  string
	flagLLMProvider  string
	flagVADProvider  string
)

func main() {
	root := &cobra.Command{
		Use:     "voiceagentd",
		Short:   "Voice conversation orchestrator daemon",
		Version: version.GetVersionInfo(),
		RunE:    run,
	}
	root.SetVersionTemplate("{{.Version}}\n")

	root.Flags().StringVar(&flagAddr, "addr", ":8080", "listen address for the telephony WebSocket endpoint")
	root.Flags().StringVar(&flagRedisAddr, "redis-addr", "localhost:6379", "Redis address backing the session state store")
	root.Flags().StringVar(&flagOpenAIKey, "openai-api-key", os.Getenv("OPENAI_API_KEY"), "OpenAI API key")
	root.Flags().StringVar(&flagDeepgramKey, "deepgram-api-key", os.Getenv("DEEPGRAM_API_KEY"), "Deepgram API key")
	root.Flags().StringVar(&flagDefaultAgent, "default-agent", "concierge", "name of the agent active at session start")
	root.Flags().StringVar(&flagSTTProvider, "stt-provider", "deepgram", "registered STT provider name")
	root.Flags().StringVar(&flagTTSProvider, "tts-provider", "openai-tts", "registered TTS provider name")
	root.Flags().StringVar(&flagLLMProvider, "llm-provider", "gpt-4o-mini", "registered LLM provider name")
	root.Flags().StringVar(&flagVADProvider, "vad-provider", "silero-vad", "registered VAD provider name used to gate silent frames before STT; empty disables the gate")

	if err := root.Execute(); err != nil {
		slog.Error("voiceagentd exited with error", "error", err)
		os.Exit(1)
	}
}

// daemon bundles the process-wide singletons every connection shares: the
// provider registry, the agent and tool registries, and the memory store.
// Each connection gets its own sessionrunner.Runner built from these.
type daemon struct {
	registry      *plugins.Registry
	agentRegistry *agents.Registry
	toolRegistry  *tools.ToolRegistry
	memoryStore   *memory.Store
	ttsPool       *playback.SynthesizerPool
	vadSvc        vad.VAD
}

func run(cmd *cobra.Command, args []string) error {
	registry := plugins.GlobalRegistry()

	if flagOpenAIKey != "" {
		if err := registry.RegisterPlugin(openai.NewPlugin(flagOpenAIKey)); err != nil {
			return fmt.Errorf("register openai plugin: %w", err)
		}
	}
	if flagDeepgramKey != "" {
		if err := registry.RegisterPlugin(deepgram.NewPlugin(flagDeepgramKey)); err != nil {
			return fmt.Errorf("register deepgram plugin: %w", err)
		}
	}

	redisClient := memory.NewRedisClient(flagRedisAddr, 0)
	store := memory.NewStore(redisClient)
	defer store.Close()

	agentRegistry := defaultAgentRegistry()
	if err := agentRegistry.ValidateHandoffs(); err != nil {
		return fmt.Errorf("agent registry: %w", err)
	}

	toolRegistry := tools.NewToolRegistry()
	if err := toolRegistry.Register(tools.NewTransferCallTool()); err != nil {
		return fmt.Errorf("register transfer tool: %w", err)
	}

	var vadSvc vad.VAD
	if flagVADProvider != "" {
		created, err := registry.CreateVAD(flagVADProvider)
		if err != nil || created == nil {
			slog.Warn("vad provider unavailable, proceeding without a silence gate", "provider", flagVADProvider, "error", err)
		} else {
			vadSvc = created
		}
	}

	d := &daemon{
		registry:      registry,
		agentRegistry: agentRegistry,
		toolRegistry:  toolRegistry,
		memoryStore:   store,
		ttsPool:       playback.NewSynthesizerPool(registry, flagTTSProvider),
		vadSvc:        vadSvc,
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/telephony", func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", "error", err)
			return
		}
		d.handleTelephonyConnection(req.Context(), conn)
	})

	server := &http.Server{Addr: flagAddr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	slog.Info("voiceagentd listening", "addr", flagAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// handleTelephonyConnection wires one WebSocket connection into a
// sessionrunner.Runner and drives it until the socket closes. This is the
// only place a transport connection and a session are joined; everything
// downstream of sessionrunner.New only knows about the Runner's interfaces.
func (d *daemon) handleTelephonyConnection(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	sttSvc, err := d.registry.CreateSTT(flagSTTProvider)
	if err != nil {
		slog.Error("create stt service failed", "error", err)
		return
	}
	llmSvc, err := d.registry.CreateLLM(flagLLMProvider)
	if err != nil {
		slog.Error("create llm service failed", "error", err)
		return
	}

	sender := transport.NewWSSender(conn)

	cfg := sessionrunner.Config{
		TransportConnectionID: conn.RemoteAddr().String(),
		TransportKind:          sessioncore.TransportTelephony,
		Sender:                 sender,
		STT:                    sttSvc,
		LLM:                    llmSvc,
		VAD:                    d.vadSvc,
		TTSPool:                d.ttsPool,
		Memory:                 d.memoryStore,
		AgentRegistry:          d.agentRegistry,
		ToolRegistry:           d.toolRegistry,
		StartAgent:             flagDefaultAgent,
		FallbackVoice:          playback.Voice{Name: "alloy", Style: "neutral", Rate: 1.0},
		AudioFormat:            media.AudioFormat16kHz16BitMono,
	}
	runner := sessionrunner.New(cfg)
	log := slog.With("component", "voiceagentd", "session_id", runner.SessionID())

	if err := runner.Greet(ctx, flagDefaultAgent); err != nil {
		log.Warn("greeting failed", "error", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := runner.Run(runCtx); err != nil {
			log.Warn("session run loop exited", "error", err)
		}
	}()

	dtmf := transport.NewDTMFBuffer(func(digits string) {
		runner.SubmitText(runCtx, digits)
	})

	err = transport.ReadTelephonyLoop(runCtx, conn, transport.Handlers{
		OnAudio: func(pcm []byte) {
			frame := media.NewAudioFrame(pcm, cfg.AudioFormat)
			if err := runner.WriteAudio(frame); err != nil {
				log.Warn("write audio failed", "error", err)
			}
		},
		OnStopAudio: func() {
			runner.ScheduleBargeIn(nil)
		},
		OnDTMF: func(digit string) {
			dtmf.Push(digit)
		},
	})
	if err != nil {
		log.Warn("telephony read loop ended", "error", err)
	}

	dtmf.Flush()
	runner.Close(context.Background())
}

// defaultAgentRegistry builds the process-wide set of Agent Descriptors.
// A real deployment would load these from configuration; this is the
// smallest registry that exercises the handoff machinery end to end.
func defaultAgentRegistry() *agents.Registry {
	registry := agents.NewRegistry()

	_ = registry.Register(agents.Descriptor{
		Name:             "concierge",
		Description:      "General-purpose front-desk agent.",
		GreetingTemplate: "Hello, thanks for calling. How can I help you today?",
		PromptTemplate:   "You are a helpful concierge agent. Be concise and friendly.",
		Voice:            agents.VoiceProfile{Name: "alloy", Style: "friendly", Rate: 1.0},
		Model:            agents.ModelProfile{DeploymentID: "gpt-4o-mini", Temperature: 0.4, TopP: 1.0, MaxTokens: 400},
		ToolNames:        []string{"transfer_call_to_destination"},
		OutgoingHandoffs: []string{"advisor"},
	})

	_ = registry.Register(agents.Descriptor{
		Name:                   "advisor",
		Description:            "Investment advisor specialist.",
		GreetingTemplate:       "Hi, this is the investment desk. What can I help you with?",
		ReturnGreetingTemplate: "Welcome back, let's pick up where we left off.",
		PromptTemplate:         "You are an investment advisor agent. Be precise about numbers.",
		Voice:                  agents.VoiceProfile{Name: "verse", Style: "calm", Rate: 1.0},
		Model:                  agents.ModelProfile{DeploymentID: "gpt-4o-mini", Temperature: 0.2, TopP: 1.0, MaxTokens: 400},
		ToolNames:              []string{"transfer_call_to_destination"},
	})

	return registry
}
