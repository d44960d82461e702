// Package docsgen renders a workflow's structure to disk as a Markdown
// summary and a Graphviz DOT diagram. It is a best-effort collaborator:
// callers are expected to log and swallow any error it returns rather
// than fail the run over documentation.
package docsgen

import (
	"fmt"
	"os"
	"strings"
)

// EdgeDoc describes one edge for documentation purposes.
type EdgeDoc struct {
	Source, Destination string
	Conditional         bool
}

// Document is the host-agnostic shape docsgen renders; it has no
// dependency on the workflow package itself, so either side can change
// without creating an import cycle.
type Document struct {
	Name        string
	Description string
	NodeNames   []string
	Edges       []EdgeDoc
	Groups      [][]string
}

// Generate writes a Markdown summary to mdPath and a Graphviz DOT diagram
// to diagramPath. Either path may be empty to skip that artifact. No
// PNG rasterizer is available, so the diagram format is DOT text rather
// than an image.
func Generate(doc Document, mdPath, diagramPath string) error {
	if mdPath != "" {
		if err := os.WriteFile(mdPath, []byte(renderMarkdown(doc)), 0o644); err != nil {
			return fmt.Errorf("docsgen: writing markdown: %w", err)
		}
	}
	if diagramPath != "" {
		if err := os.WriteFile(diagramPath, []byte(renderDOT(doc)), 0o644); err != nil {
			return fmt.Errorf("docsgen: writing diagram: %w", err)
		}
	}
	return nil
}

func renderMarkdown(doc Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", doc.Name)
	if doc.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", doc.Description)
	}

	b.WriteString("## Nodes\n\n")
	for _, n := range doc.NodeNames {
		fmt.Fprintf(&b, "- %s\n", n)
	}

	b.WriteString("\n## Edges\n\n")
	for _, e := range doc.Edges {
		if e.Conditional {
			fmt.Fprintf(&b, "- %s -> %s (conditional)\n", e.Source, e.Destination)
		} else {
			fmt.Fprintf(&b, "- %s -> %s\n", e.Source, e.Destination)
		}
	}

	if len(doc.Groups) > 0 {
		b.WriteString("\n## Execution groups\n\n")
		for i, g := range doc.Groups {
			fmt.Fprintf(&b, "- group %d: %s\n", i+1, strings.Join(g, ", "))
		}
	}

	return b.String()
}

func renderDOT(doc Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", doc.Name)
	for _, n := range doc.NodeNames {
		fmt.Fprintf(&b, "  %q;\n", n)
	}
	for _, e := range doc.Edges {
		style := ""
		if e.Conditional {
			style = ` [style=dashed]`
		}
		fmt.Fprintf(&b, "  %q -> %q%s;\n", e.Source, e.Destination, style)
	}
	b.WriteString("}\n")
	return b.String()
}
