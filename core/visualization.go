package session

import "sync"

// VisualizationMode selects which visualization the UI should present.
type VisualizationMode string

const (
	VisualizationInactive VisualizationMode = "inactive"
	VisualizationKinetics VisualizationMode = "kinetics"
	VisualizationMolecule VisualizationMode = "molecule"
)

// KineticsParams hold the reaction-kinetics simulation inputs. Every value
// ranges 0-100; out-of-range tool arguments are clamped.
type KineticsParams struct {
	Temperature      float64
	Concentration    float64
	ActivationEnergy float64
}

// MoleculeParams identify the molecule shown in the 3D viewer.
type MoleculeParams struct {
	Name string
}

// VisualizationState is a tagged union over the visualization modes: Mode
// selects which params are meaningful. Kinetics params survive mode switches
// so a deactivated simulation resumes where it left off.
type VisualizationState struct {
	Mode     VisualizationMode
	Kinetics KineticsParams
	Molecule MoleculeParams
}

// visualizationStore owns the visualization state. Only tool handlers mutate
// it; everyone else reads point-in-time copies.
type visualizationStore struct {
	mu    sync.RWMutex
	state VisualizationState
}

func newVisualizationStore() *visualizationStore {
	return &visualizationStore{
		state: VisualizationState{
			Mode:     VisualizationInactive,
			Kinetics: KineticsParams{Temperature: 50, Concentration: 50, ActivationEnergy: 50},
		},
	}
}

func (s *visualizationStore) Snapshot() VisualizationState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// applyKinetics merges a partial simulation update into the kinetics params.
// Nil fields retain their previous values.
func (s *visualizationStore) applyKinetics(isActive bool, temperature, concentration, activationEnergy *float64) VisualizationState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if temperature != nil {
		s.state.Kinetics.Temperature = clampPercent(*temperature)
	}
	if concentration != nil {
		s.state.Kinetics.Concentration = clampPercent(*concentration)
	}
	if activationEnergy != nil {
		s.state.Kinetics.ActivationEnergy = clampPercent(*activationEnergy)
	}

	if isActive {
		s.state.Mode = VisualizationKinetics
	} else {
		s.state.Mode = VisualizationInactive
	}

	return s.state
}

func (s *visualizationStore) showMolecule(name string) VisualizationState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Mode = VisualizationMolecule
	s.state.Molecule.Name = name
	return s.state
}

func clampPercent(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
