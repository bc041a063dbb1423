package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alembiq/bunsen-core/core/events"
	"github.com/alembiq/bunsen-core/core/realtime"
	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Tool is one callable function exposed to the live model.
type Tool struct {
	Name        string
	Description string

	parameters *jsonschema.Schema
	call       func(ctx context.Context, args map[string]any) (map[string]any, error)
}

// NewTool builds a tool whose parameter schema is reflected from the typed
// params struct. Arguments are decoded into that struct before the handler
// runs, so handlers never touch raw maps.
func NewTool[T any](name string, description string, handler func(ctx context.Context, params T) (map[string]any, error)) Tool {
	reflector := jsonschema.Reflector{DoNotReference: true}
	var params T

	return Tool{
		Name:        name,
		Description: description,
		parameters:  reflector.Reflect(params),
		call: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			data, err := json.Marshal(args)
			if err != nil {
				return nil, fmt.Errorf("failed to encode tool arguments: %w", err)
			}
			var typed T
			if err := json.Unmarshal(data, &typed); err != nil {
				return nil, fmt.Errorf("failed to decode tool arguments: %w", err)
			}
			return handler(ctx, typed)
		},
	}
}

// toolDispatcher holds the closed name → handler registry. Registration
// ends at construction; dispatch is a plain map lookup, so an unknown name
// is a deliberate branch rather than a runtime failure.
type toolDispatcher struct {
	order []string
	tools map[string]Tool

	emitEvent eventEmitter
}

func newToolDispatcher(tools ...Tool) *toolDispatcher {
	d := &toolDispatcher{
		tools:     map[string]Tool{},
		emitEvent: noopEventEmitter,
	}
	for _, tool := range tools {
		d.register(tool)
	}
	return d
}

func (d *toolDispatcher) register(tool Tool) {
	if _, exists := d.tools[tool.Name]; !exists {
		d.order = append(d.order, tool.Name)
	}
	d.tools[tool.Name] = tool
}

// declarations lists the registered tools in registration order for the
// session setup message. Schema pointers are shared: the registry is
// closed after construction and schemas are never mutated.
func (d *toolDispatcher) declarations() []realtime.Tool {
	declarations := make([]realtime.Tool, 0, len(d.order))
	for _, name := range d.order {
		tool := d.tools[name]
		declarations = append(declarations, realtime.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.parameters,
		})
	}
	return declarations
}

// dispatch executes an inbound batch and produces exactly one response per
// call, in call order. Unknown names and handler failures turn into
// error-shaped responses; they never fail the batch.
func (d *toolDispatcher) dispatch(ctx context.Context, calls []realtime.FunctionCall) []realtime.FunctionResponse {
	responses := make([]realtime.FunctionResponse, 0, len(calls))
	for _, call := range calls {
		responses = append(responses, d.execute(ctx, call))
	}
	return responses
}

func (d *toolDispatcher) execute(ctx context.Context, call realtime.FunctionCall) realtime.FunctionResponse {
	ctx, span := tracer.Start(ctx, "execute tool")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", call.Name))

	arguments, _ := json.Marshal(call.Args)
	d.emitEvent(events.NewToolCallReceived(call.ID, call.Name, string(arguments)))

	tool, ok := d.tools[call.Name]
	if !ok {
		err := fmt.Errorf("tool not found: %s", call.Name)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.emitEvent(events.NewToolCallFailed(call.ID, call.Name, err.Error()))
		return realtime.FunctionResponse{
			ID:       call.ID,
			Name:     call.Name,
			Response: map[string]any{"error": "unknown function"},
		}
	}

	result, err := runTool(ctx, tool, call.Args)
	if err != nil {
		err = fmt.Errorf("failed to execute tool %q: %w", call.Name, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.emitEvent(events.NewToolCallFailed(call.ID, call.Name, err.Error()))
		return realtime.FunctionResponse{
			ID:       call.ID,
			Name:     call.Name,
			Response: map[string]any{"error": err.Error()},
		}
	}

	response, _ := json.Marshal(result)
	d.emitEvent(events.NewToolCallCompleted(call.ID, call.Name, string(response)))
	return realtime.FunctionResponse{ID: call.ID, Name: call.Name, Response: result}
}

// runTool converts a panicking handler into an error so the batch keeps
// its one-response-per-call shape and the read pump survives.
func runTool(ctx context.Context, tool Tool, args map[string]any) (result map[string]any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("handler panicked: %v", recovered)
		}
	}()

	return tool.call(ctx, args)
}

// updateSimulationParams mirror the partial-update contract: nil numeric
// fields retain their previous values.
type updateSimulationParams struct {
	IsActive         bool     `json:"isActive" jsonschema:"description=Whether the kinetics simulation is shown"`
	Temperature      *float64 `json:"temperature,omitempty" jsonschema:"minimum=0,maximum=100,description=Reaction temperature on a 0-100 scale"`
	Concentration    *float64 `json:"concentration,omitempty" jsonschema:"minimum=0,maximum=100,description=Reactant concentration on a 0-100 scale"`
	ActivationEnergy *float64 `json:"activationEnergy,omitempty" jsonschema:"minimum=0,maximum=100,description=Activation energy on a 0-100 scale"`
}

type showMoleculeParams struct {
	MoleculeName string `json:"moleculeName" jsonschema:"description=Common or IUPAC name of the molecule to display"`
}

// builtinTools are the visualization tools every session exposes.
func builtinTools(c *Controller) []Tool {
	return []Tool{
		NewTool("update_simulation", "Activate or adjust the reaction kinetics simulation shown to the student",
			func(_ context.Context, params updateSimulationParams) (map[string]any, error) {
				state := c.visualization.applyKinetics(params.IsActive, params.Temperature, params.Concentration, params.ActivationEnergy)
				c.emitEvent(events.NewVisualizationUpdated(string(state.Mode)))
				return map[string]any{"result": "simulation updated"}, nil
			}),
		NewTool("show_molecule", "Display an interactive 3D model of a molecule to the student",
			func(_ context.Context, params showMoleculeParams) (map[string]any, error) {
				state := c.visualization.showMolecule(params.MoleculeName)
				c.emitEvent(events.NewVisualizationUpdated(string(state.Mode)))
				return map[string]any{"result": fmt.Sprintf("showing %s", params.MoleculeName)}, nil
			}),
	}
}
