package output

import "github.com/leapstack-labs/leapscale/internal/propagate"

// ExplainOutput is the structured form of leapscale explain.
type ExplainOutput struct {
	RunID       string                 `json:"run_id" yaml:"run_id"`
	Resolutions []propagate.Resolution `json:"resolutions" yaml:"resolutions"`
	Stats       propagate.Stats        `json:"stats" yaml:"stats"`
}

// GraphOutput is the structured form of leapscale graph.
type GraphOutput struct {
	Roots      []string        `json:"roots" yaml:"roots"`
	Leaves     []string        `json:"leaves" yaml:"leaves"`
	Levels     []GraphLevel    `json:"levels" yaml:"levels"`
	Overrides  []OverrideReach `json:"overrides" yaml:"overrides"`
	TotalNodes int             `json:"total_nodes" yaml:"total_nodes"`
	TotalEdges int             `json:"total_edges" yaml:"total_edges"`
}

// GraphLevel groups nodes of equal depth.
type GraphLevel struct {
	Level int         `json:"level" yaml:"level"`
	Nodes []GraphNode `json:"nodes" yaml:"nodes"`
}

// GraphNode is one node with its direct neighbours.
type GraphNode struct {
	ID         string   `json:"id" yaml:"id"`
	Parents    []string `json:"parents" yaml:"parents"`
	Children   []string `json:"children" yaml:"children"`
	Overridden bool     `json:"overridden,omitempty" yaml:"overridden,omitempty"`
}

// OverrideReach lists the nodes an override can rescale.
type OverrideReach struct {
	ID       string   `json:"id" yaml:"id"`
	Affected []string `json:"affected" yaml:"affected"`
}

// ValidateOutput is the structured form of leapscale validate.
type ValidateOutput struct {
	Valid     bool         `json:"valid" yaml:"valid"`
	Rows      int          `json:"rows" yaml:"rows"`
	Overrides int          `json:"overrides" yaml:"overrides"`
	Error     *ErrorDetail `json:"error,omitempty" yaml:"error,omitempty"`
}

// ErrorDetail is a machine-readable error.
type ErrorDetail struct {
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
}
