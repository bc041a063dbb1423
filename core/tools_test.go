package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/alembiq/bunsen-core/core/events"
	"github.com/alembiq/bunsen-core/core/realtime"
)

func TestUpdateSimulationMergesPartialUpdates(t *testing.T) {
	controller := NewController()

	responses := controller.tools.dispatch(context.Background(), []realtime.FunctionCall{{
		ID:   "call-1",
		Name: "update_simulation",
		Args: map[string]any{"isActive": true, "temperature": float64(80)},
	}})
	if len(responses) != 1 {
		t.Fatalf("expected one response, got %d", len(responses))
	}

	state := controller.Visualization()
	if state.Mode != VisualizationKinetics {
		t.Fatalf("expected kinetics mode, got %q", state.Mode)
	}
	if state.Kinetics.Temperature != 80 {
		t.Fatalf("expected temperature 80, got %v", state.Kinetics.Temperature)
	}

	controller.tools.dispatch(context.Background(), []realtime.FunctionCall{{
		ID:   "call-2",
		Name: "update_simulation",
		Args: map[string]any{"isActive": true, "concentration": float64(30)},
	}})

	state = controller.Visualization()
	if state.Kinetics.Temperature != 80 {
		t.Fatalf("expected temperature to survive the partial update, got %v", state.Kinetics.Temperature)
	}
	if state.Kinetics.Concentration != 30 {
		t.Fatalf("expected concentration 30, got %v", state.Kinetics.Concentration)
	}
}

func TestUpdateSimulationDeactivationRetainsParameters(t *testing.T) {
	controller := NewController()

	controller.tools.dispatch(context.Background(), []realtime.FunctionCall{{
		ID:   "call-1",
		Name: "update_simulation",
		Args: map[string]any{"isActive": true, "temperature": float64(90)},
	}})
	controller.tools.dispatch(context.Background(), []realtime.FunctionCall{{
		ID:   "call-2",
		Name: "update_simulation",
		Args: map[string]any{"isActive": false},
	}})

	state := controller.Visualization()
	if state.Mode != VisualizationInactive {
		t.Fatalf("expected inactive mode, got %q", state.Mode)
	}
	if state.Kinetics.Temperature != 90 {
		t.Fatalf("expected parameters to survive deactivation, got temperature %v", state.Kinetics.Temperature)
	}
}

func TestUpdateSimulationClampsOutOfRangeValues(t *testing.T) {
	controller := NewController()

	controller.tools.dispatch(context.Background(), []realtime.FunctionCall{{
		ID:   "call-1",
		Name: "update_simulation",
		Args: map[string]any{"isActive": true, "temperature": float64(150), "concentration": float64(-20)},
	}})

	state := controller.Visualization()
	if state.Kinetics.Temperature != 100 {
		t.Fatalf("expected temperature clamped to 100, got %v", state.Kinetics.Temperature)
	}
	if state.Kinetics.Concentration != 0 {
		t.Fatalf("expected concentration clamped to 0, got %v", state.Kinetics.Concentration)
	}
}

func TestShowMoleculeSwitchesVisualization(t *testing.T) {
	controller := NewController()

	responses := controller.tools.dispatch(context.Background(), []realtime.FunctionCall{{
		ID:   "call-1",
		Name: "show_molecule",
		Args: map[string]any{"moleculeName": "caffeine"},
	}})
	if len(responses) != 1 {
		t.Fatalf("expected one response, got %d", len(responses))
	}
	if got, ok := responses[0].Response["result"].(string); !ok || !strings.Contains(got, "caffeine") {
		t.Fatalf("expected result naming the molecule, got %v", responses[0].Response)
	}

	state := controller.Visualization()
	if state.Mode != VisualizationMolecule {
		t.Fatalf("expected molecule mode, got %q", state.Mode)
	}
	if state.Molecule.Name != "caffeine" {
		t.Fatalf("expected molecule name %q, got %q", "caffeine", state.Molecule.Name)
	}
}

func TestDispatchAnswersEveryCallInTheBatch(t *testing.T) {
	controller := NewController()

	calls := []realtime.FunctionCall{
		{ID: "call-1", Name: "update_simulation", Args: map[string]any{"isActive": true}},
		{ID: "call-2", Name: "titrate_sample"},
		{ID: "call-3", Name: "show_molecule", Args: map[string]any{"moleculeName": "water"}},
	}
	responses := controller.tools.dispatch(context.Background(), calls)

	if len(responses) != len(calls) {
		t.Fatalf("expected %d responses, got %d", len(calls), len(responses))
	}
	for i, call := range calls {
		if responses[i].ID != call.ID {
			t.Fatalf("expected response %d for call %q, got %q", i, call.ID, responses[i].ID)
		}
		if responses[i].Name != call.Name {
			t.Fatalf("expected response %d to echo name %q, got %q", i, call.Name, responses[i].Name)
		}
	}
	if got := responses[1].Response["error"]; got != "unknown function" {
		t.Fatalf("expected the unknown tool to produce a generic error, got %v", got)
	}
}

func TestDispatchKeepsBatchWhenHandlerFails(t *testing.T) {
	failing := NewTool("shatter_beaker", "Always fails",
		func(_ context.Context, _ struct{}) (map[string]any, error) {
			return nil, errors.New("glass everywhere")
		})
	controller := NewController(WithTool(failing))

	responses := controller.tools.dispatch(context.Background(), []realtime.FunctionCall{
		{ID: "call-1", Name: "shatter_beaker"},
		{ID: "call-2", Name: "update_simulation", Args: map[string]any{"isActive": true}},
	})

	if len(responses) != 2 {
		t.Fatalf("expected both calls answered, got %d responses", len(responses))
	}
	errText, ok := responses[0].Response["error"].(string)
	if !ok || !strings.Contains(errText, "glass everywhere") {
		t.Fatalf("expected the handler failure in the response, got %v", responses[0].Response)
	}
	if _, ok := responses[1].Response["result"]; !ok {
		t.Fatalf("expected the second call to succeed, got %v", responses[1].Response)
	}
}

func TestDispatchSurvivesPanickingHandler(t *testing.T) {
	panicking := NewTool("ignite_sample", "Always panics",
		func(_ context.Context, _ struct{}) (map[string]any, error) {
			panic("flashover")
		})
	controller := NewController(WithTool(panicking))

	responses := controller.tools.dispatch(context.Background(), []realtime.FunctionCall{
		{ID: "call-1", Name: "ignite_sample"},
		{ID: "call-2", Name: "update_simulation", Args: map[string]any{"isActive": true}},
	})

	if len(responses) != 2 {
		t.Fatalf("expected both calls answered, got %d responses", len(responses))
	}
	errText, ok := responses[0].Response["error"].(string)
	if !ok || !strings.Contains(errText, "panicked") {
		t.Fatalf("expected the panic in the response, got %v", responses[0].Response)
	}
	if _, ok := responses[1].Response["result"]; !ok {
		t.Fatalf("expected the second call to succeed, got %v", responses[1].Response)
	}
}

func TestNewToolDecodesTypedArguments(t *testing.T) {
	type weighParams struct {
		Compound string  `json:"compound"`
		Grams    float64 `json:"grams"`
	}

	var got weighParams
	tool := NewTool("weigh_compound", "Weighs a compound",
		func(_ context.Context, params weighParams) (map[string]any, error) {
			got = params
			return map[string]any{"result": "ok"}, nil
		})
	dispatcher := newToolDispatcher(tool)

	responses := dispatcher.dispatch(context.Background(), []realtime.FunctionCall{{
		ID:   "call-1",
		Name: "weigh_compound",
		Args: map[string]any{"compound": "NaCl", "grams": 5.5},
	}})

	if len(responses) != 1 {
		t.Fatalf("expected one response, got %d", len(responses))
	}
	if got.Compound != "NaCl" || got.Grams != 5.5 {
		t.Fatalf("expected decoded arguments, got %+v", got)
	}
}

func TestDeclarationsFollowRegistrationOrder(t *testing.T) {
	extra := NewTool("balance_equation", "Balances a chemical equation",
		func(_ context.Context, _ struct{}) (map[string]any, error) {
			return map[string]any{"result": "balanced"}, nil
		})
	controller := NewController(WithTool(extra))

	declarations := controller.tools.declarations()
	want := []string{"update_simulation", "show_molecule", "balance_equation"}
	if len(declarations) != len(want) {
		t.Fatalf("expected %d declarations, got %d", len(want), len(declarations))
	}
	for i, name := range want {
		if declarations[i].Name != name {
			t.Fatalf("expected declaration %d to be %q, got %q", i, name, declarations[i].Name)
		}
		if declarations[i].Parameters == nil {
			t.Fatalf("expected %q to carry a parameter schema", name)
		}
		if declarations[i].Description == "" {
			t.Fatalf("expected %q to carry a description", name)
		}
	}
}

func TestDispatchEmitsToolCallEvents(t *testing.T) {
	var mu sync.Mutex
	var kinds []events.Kind
	controller := NewController(WithEventCallback(func(event events.Event) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, event.Kind())
	}))

	controller.tools.dispatch(context.Background(), []realtime.FunctionCall{
		{ID: "call-1", Name: "show_molecule", Args: map[string]any{"moleculeName": "ethanol"}},
		{ID: "call-2", Name: "distill_sample"},
	})

	mu.Lock()
	defer mu.Unlock()
	want := []events.Kind{
		events.KindToolCallReceived,
		events.KindVisualizationUpdated,
		events.KindToolCallCompleted,
		events.KindToolCallReceived,
		events.KindToolCallFailed,
	}
	if len(kinds) != len(want) {
		t.Fatalf("expected events %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, kinds)
		}
	}
}
