package events

const (
	// KindVisualizationUpdated identifies visualization state changes.
	KindVisualizationUpdated Kind = "visualization.updated"
)

// VisualizationUpdated marks a change to the visualization state driven
// by a tool call. Mode is the String rendering of the active mode.
type VisualizationUpdated struct {
	Base
	Mode string
}

// NewVisualizationUpdated creates a visualization updated event.
func NewVisualizationUpdated(mode string) VisualizationUpdated {
	return VisualizationUpdated{Base: NewBase(KindVisualizationUpdated), Mode: mode}
}
