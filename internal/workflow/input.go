package workflow

import "fmt"

// FieldKind classifies a workflow input field for CLI/HTTP generation
// purposes, replacing the runtime type reflection a dynamically typed
// host would use.
type FieldKind int

const (
	KindString FieldKind = iota
	KindInt
	KindFloat
	KindBool
	KindStringSlice
)

// Field describes one workflow-specific input variable so a CLI command
// or HTTP validator can be generated without reflecting on a struct.
// ExcludeFromCLI marks fields that are accepted programmatically (internal
// bookkeeping) but never exposed as a flag.
type Field struct {
	Name           string
	CLIName        string
	Kind           FieldKind
	Required       bool
	Default        any
	ExcludeFromCLI bool
	Description    string
}

// Schema is the ordered, declarative field list a workflow's custom
// inputs expose. Building this once at registration time is the
// build-time alternative to runtime reflection that Go requires.
type Schema []Field

// Input is the common control surface every workflow run accepts,
// regardless of which domain-specific variables (Extra) it also takes.
type Input struct {
	TimeoutSeconds    float64
	MaxRetries        int
	RetryDelaySeconds float64
	Verbose           bool
	AutoGenerateMD    bool
	MDFilePath        string
	DiagramFilePath   string

	// MaxConcurrency caps how many nodes the scheduler may run at once
	// within a single workflow attempt. Zero means unbounded (every
	// runnable node in a round dispatches immediately).
	MaxConcurrency int

	// CLICommandName is bookkeeping used to echo the invoking command in
	// verbose logs; it is never itself exposed as a CLI flag.
	CLICommandName string

	// Extra carries workflow-specific variables (e.g. "city", "email")
	// described by the workflow's own Schema. These seed the node
	// RunContext's variable map.
	Extra map[string]any
}

// DefaultInput returns the baseline control values used when a caller
// supplies none: a single attempt, a one-minute workflow timeout, quiet
// logging, and no generated artifacts.
func DefaultInput() Input {
	return Input{
		TimeoutSeconds:    60,
		MaxRetries:        0,
		RetryDelaySeconds: 1,
		Verbose:           false,
		AutoGenerateMD:    false,
		Extra:             map[string]any{},
	}
}

// CommonSchema describes Input's own fields. The common CLI flags are
// declared directly by clicmd's applyCommonFlags, which mirrors these
// entries; nothing in the module builds flags from CommonSchema itself.
func CommonSchema() Schema {
	return Schema{
		{Name: "timeout_seconds", CLIName: "timeout-seconds", Kind: KindFloat, Default: 60.0, Description: "workflow-level timeout in seconds"},
		{Name: "max_retries", CLIName: "max-retries", Kind: KindInt, Default: 0, Description: "workflow-level retry attempts after the first"},
		{Name: "retry_delay_seconds", CLIName: "retry-delay-seconds", Kind: KindFloat, Default: 1.0, Description: "delay between workflow retries"},
		{Name: "verbose", CLIName: "verbose", Kind: KindBool, Default: false, Description: "emit detailed per-node logging"},
		{Name: "auto_generate_md", CLIName: "auto-generate-md", Kind: KindBool, Default: false, Description: "write a markdown + diagram summary after the run"},
		{Name: "md_file_path", CLIName: "md-file-path", Kind: KindString, Default: "", Description: "output path for the generated markdown summary"},
		{Name: "diagram_file_path", CLIName: "diagram-file-path", Kind: KindString, Default: "", Description: "output path for the generated diagram"},
		{Name: "max_concurrency", CLIName: "max-concurrency", Kind: KindInt, Default: 0, Description: "cap on concurrently running nodes per attempt (0 = unbounded)"},
		{Name: "cli_command_name", CLIName: "cli-command-name", Kind: KindString, Default: "", ExcludeFromCLI: true},
	}
}

// Validate checks the common control fields for obviously invalid values.
// Domain-specific Extra fields are not checked here: the CLI enforces
// their types and required flags through the cobra flags built from the
// workflow's Schema, and the HTTP path merges them into Extra unchecked.
func (in Input) Validate() error {
	if in.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive, got %v", in.TimeoutSeconds)
	}
	if in.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %v", in.MaxRetries)
	}
	if in.RetryDelaySeconds < 0 {
		return fmt.Errorf("retry_delay_seconds must not be negative, got %v", in.RetryDelaySeconds)
	}
	if in.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must not be negative, got %v", in.MaxConcurrency)
	}
	return nil
}
