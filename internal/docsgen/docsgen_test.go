package docsgen

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func sampleDoc() Document {
	return Document{
		Name:        "weather-alert",
		Description: "checks weather and notifies",
		NodeNames:   []string{"weather_check", "email_alert"},
		Edges:       []EdgeDoc{{Source: "weather_check", Destination: "email_alert", Conditional: true}},
		Groups:      [][]string{{"weather_check", "email_alert"}},
	}
}

func TestGenerate_WritesBothArtifacts(t *testing.T) {
	dir := t.TempDir()
	mdPath := filepath.Join(dir, "summary.md")
	dotPath := filepath.Join(dir, "diagram.dot")

	if err := Generate(sampleDoc(), mdPath, dotPath); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	md, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatalf("markdown file not written: %v", err)
	}
	if !strings.Contains(string(md), "# weather-alert") {
		t.Errorf("markdown missing title, got: %s", md)
	}
	if !strings.Contains(string(md), "weather_check -> email_alert (conditional)") {
		t.Errorf("markdown missing conditional edge, got: %s", md)
	}

	dot, err := os.ReadFile(dotPath)
	if err != nil {
		t.Fatalf("diagram file not written: %v", err)
	}
	if !strings.Contains(string(dot), `digraph "weather-alert"`) {
		t.Errorf("dot missing digraph header, got: %s", dot)
	}
	if !strings.Contains(string(dot), "style=dashed") {
		t.Errorf("dot missing conditional styling, got: %s", dot)
	}
}

func TestGenerate_SkipsEmptyPaths(t *testing.T) {
	if err := Generate(sampleDoc(), "", ""); err != nil {
		t.Fatalf("Generate with no paths should be a no-op, got error: %v", err)
	}
}

func TestGenerate_PropagatesWriteFailure(t *testing.T) {
	err := Generate(sampleDoc(), "/nonexistent-dir/summary.md", "")
	if err == nil {
		t.Fatal("expected an error writing to a nonexistent directory")
	}
}
