package preprocess

import (
	"fmt"

	"github.com/slipledger/server/internal/core"
)

// Registry manages the registration and creation of preprocessing commands
type Registry struct {
	factories map[string]Factory
}

// DefaultRegistry holds the built-in commands, registered via init.
var DefaultRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a command factory to the registry
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("command name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("command factory cannot be nil")
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("command %s is already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates a command by name with the given parameters
func (r *Registry) Create(name string, params map[string]any) (Command, error) {
	factory, exists := r.factories[name]
	if !exists {
		return nil, fmt.Errorf("unknown command: %s", name)
	}

	command, err := factory(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create command %s: %w", name, err)
	}

	return command, nil
}

// IsRegistered checks if a command with the given name is registered
func (r *Registry) IsRegistered(name string) bool {
	_, exists := r.factories[name]
	return exists
}

// Pipeline applies a configured sequence of commands in order.
type Pipeline struct {
	commands []Command
}

// NewPipeline builds a pipeline from configuration. Unknown command names or
// invalid parameters fail construction, not execution.
func NewPipeline(registry *Registry, configs []core.CommandConfig) (*Pipeline, error) {
	commands := make([]Command, 0, len(configs))
	for _, config := range configs {
		command, err := registry.Create(config.Name, config.Params)
		if err != nil {
			return nil, err
		}
		commands = append(commands, command)
	}
	return &Pipeline{commands: commands}, nil
}

// Apply runs every command in order on the image bytes.
func (p *Pipeline) Apply(data []byte) ([]byte, error) {
	var err error
	for _, command := range p.commands {
		data, err = command.Execute(data)
		if err != nil {
			return nil, fmt.Errorf("command %s failed: %w", command.Name(), err)
		}
	}
	return data, nil
}
