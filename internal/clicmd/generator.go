// Package clicmd builds a *cobra.Command per registered workflow
// endpoint from its declarative input Schema, the build-time alternative
// to reflecting on a struct's fields at runtime.
package clicmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShaharBand/fluxly/internal/workflow"
)

// osExit is a var indirection so tests can observe the exit code a run
// would have produced without killing the test process.
var osExit = os.Exit

// BuildRootCommand assembles one subcommand per (name, template) pair.
// Running any subcommand executes that workflow synchronously: the
// process exits 0 on Completed and a distinct non-zero code for every
// other terminal status.
func BuildRootCommand(appName string, endpoints map[string]*workflow.Workflow) *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: fmt.Sprintf("%s workflow runner", appName),
	}
	for name, template := range endpoints {
		root.AddCommand(buildWorkflowCommand(name, template))
	}
	return root
}

func buildWorkflowCommand(name string, template *workflow.Workflow) *cobra.Command {
	extra := make(map[string]*string)
	extraBool := make(map[string]*bool)
	extraFloat := make(map[string]*float64)
	extraInt := make(map[string]*int)
	extraSlice := make(map[string]*[]string)

	cmd := &cobra.Command{
		Use:   name,
		Short: template.Description,
		RunE: func(cmd *cobra.Command, args []string) error {
			run := template.Clone()
			if run.Input.Extra == nil {
				run.Input.Extra = map[string]any{}
			}
			for key, ptr := range extra {
				run.Input.Extra[key] = *ptr
			}
			for key, ptr := range extraBool {
				run.Input.Extra[key] = *ptr
			}
			for key, ptr := range extraFloat {
				run.Input.Extra[key] = *ptr
			}
			for key, ptr := range extraInt {
				run.Input.Extra[key] = *ptr
			}
			for key, ptr := range extraSlice {
				run.Input.Extra[key] = *ptr
			}
			run.Input.CLICommandName = cmd.CommandPath()

			err := run.Execute(context.Background())
			last, ok := run.LastExecution()
			if !ok {
				osExit(1)
				return err
			}
			osExit(last.Status.ExitCode())
			return err
		},
	}

	applyCommonFlags(cmd, &template.Input)

	for _, field := range template.Schema {
		if field.ExcludeFromCLI {
			continue
		}
		flagName := field.CLIName
		if flagName == "" {
			flagName = field.Name
		}
		switch field.Kind {
		case workflow.KindBool:
			def, _ := field.Default.(bool)
			b := new(bool)
			cmd.Flags().BoolVar(b, flagName, def, field.Description)
			extraBool[field.Name] = b
		case workflow.KindFloat:
			def, _ := field.Default.(float64)
			f := new(float64)
			cmd.Flags().Float64Var(f, flagName, def, field.Description)
			extraFloat[field.Name] = f
		case workflow.KindInt:
			def, _ := field.Default.(int)
			i := new(int)
			cmd.Flags().IntVar(i, flagName, def, field.Description)
			extraInt[field.Name] = i
		case workflow.KindStringSlice:
			s := new([]string)
			cmd.Flags().StringArrayVar(s, flagName, nil, field.Description)
			extraSlice[field.Name] = s
		default:
			def, _ := field.Default.(string)
			str := new(string)
			cmd.Flags().StringVar(str, flagName, def, field.Description)
			extra[field.Name] = str
		}
		if field.Required {
			_ = cmd.MarkFlagRequired(flagName)
		}
	}

	return cmd
}

func applyCommonFlags(cmd *cobra.Command, input *workflow.Input) {
	cmd.Flags().Float64Var(&input.TimeoutSeconds, "timeout-seconds", input.TimeoutSeconds, "workflow-level timeout in seconds")
	cmd.Flags().IntVar(&input.MaxRetries, "max-retries", input.MaxRetries, "workflow-level retry attempts after the first")
	cmd.Flags().Float64Var(&input.RetryDelaySeconds, "retry-delay-seconds", input.RetryDelaySeconds, "delay between workflow retries")
	cmd.Flags().BoolVar(&input.Verbose, "verbose", input.Verbose, "emit detailed per-node logging")
	cmd.Flags().BoolVar(&input.AutoGenerateMD, "auto-generate-md", input.AutoGenerateMD, "write a markdown + diagram summary after the run")
	cmd.Flags().StringVar(&input.MDFilePath, "md-file-path", input.MDFilePath, "output path for the generated markdown summary")
	cmd.Flags().StringVar(&input.DiagramFilePath, "diagram-file-path", input.DiagramFilePath, "output path for the generated diagram")
	cmd.Flags().IntVar(&input.MaxConcurrency, "max-concurrency", input.MaxConcurrency, "cap on concurrently running nodes per attempt (0 = unbounded)")
}
