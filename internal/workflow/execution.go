package workflow

import (
	"github.com/ShaharBand/fluxly/internal/node"
	"github.com/ShaharBand/fluxly/internal/status"
)

// Output is the accumulated result of a workflow attempt: every completed
// NodeExecution, in completion order (not graph order), appended as each
// node finishes rather than sorted by graph position.
type Output struct {
	NodeExecutions []NamedExecution `json:"nodeExecutions"`
}

// NamedExecution pairs a node's execution record with the node's name, so
// Output.NodeExecutions stays a flat, completion-ordered list rather than
// a map keyed by node name.
type NamedExecution struct {
	NodeName  string         `json:"nodeName"`
	Execution node.Execution `json:"execution"`
}

// Execution is one attempt at running an entire workflow.
type Execution struct {
	ID       string   `json:"id"`
	Status   status.Code `json:"status"`
	Metadata Metadata `json:"metadata"`
	Output   Output   `json:"output"`
}
