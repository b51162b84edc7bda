package silero

import (
	"fmt"
	"github.com/artvoice/turnengine/plugins"
	"github.com/artvoice/turnengine/services/vad"
)

// SileroPlugin provides the Silero VAD plugin
type SileroPlugin struct {
	*plugins.BasePlugin
}

// NewSileroPlugin creates a new Silero plugin instance
func NewSileroPlugin() *SileroPlugin {
	return &SileroPlugin{
		BasePlugin: plugins.NewBasePlugin("silero", "1.0.0", "Silero VAD plugin for advanced voice activity detection"),
	}
}

// Register registers the Silero services with the plugin registry
func (p *SileroPlugin) Register(registry *plugins.Registry) error {
	// Register VAD service
	registry.RegisterVAD("silero-vad", func() vad.VAD {
		// Load the default Silero VAD model
		vadInstance, err := LoadDefaultSileroVAD()
		if err != nil {
			// Return nil; CreateVAD passes the nil result on to its caller.
			// LoadDefaultSileroVAD does not fail with the default 16 kHz options.
			return nil
		}
		return vadInstance
	})

	return nil
}

// RegisterPlugin registers the Silero plugin globally
func RegisterPlugin() error {
	return plugins.RegisterPlugin(NewSileroPlugin())
}

// init automatically registers the Silero plugin when imported
func init() {
	if err := RegisterPlugin(); err != nil {
		// Log error but don't crash; registration fails only when a plugin
		// named "silero" is already registered (no model file is opened here)
		fmt.Printf("⚠️ Silero plugin registration failed: %v\n", err)
	} else {
		fmt.Println("🔊 Silero VAD plugin registered successfully")
	}
}