package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	orchestration "github.com/koscakluka/ema-realtime/core"
	"github.com/koscakluka/ema-realtime/internal/config"
)

func TestAgentsCommandListsDefaultRegistry(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCmd(&Dependencies{Config: &config.Config{}})
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"agents"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "* studyCoach") || !strings.Contains(out.String(), "studyCoachAgent") {
		t.Fatalf("expected default set to be listed, got %q", out.String())
	}
}

func TestAgentsCommandLoadsAgentsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	contents := `default: support
sets:
  support:
    agents:
      - name: triage
        voice: alloy
        instructions: Route the caller.
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write agents file: %v", err)
	}

	var out bytes.Buffer
	cmd := NewRootCmd(&Dependencies{Config: &config.Config{AgentsFile: path}})
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"agents"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "* support") || !strings.Contains(out.String(), "triage (voice alloy)") {
		t.Fatalf("expected file set to be listed, got %q", out.String())
	}
}

func TestHandleLine(t *testing.T) {
	orchestrator := orchestration.NewOrchestrator()
	defer orchestrator.Close()

	tests := []struct {
		line    string
		quit    bool
		wantErr error
	}{
		{line: "", quit: false},
		{line: "/quit", quit: true},
		{line: "hello", wantErr: orchestration.ErrNotConnected},
		{line: "/talk", wantErr: orchestration.ErrNotConnected},
		{line: "/mute"},
	}
	for _, tt := range tests {
		quit, err := handleLine(orchestrator, tt.line)
		if quit != tt.quit {
			t.Fatalf("%q: expected quit=%v, got %v", tt.line, tt.quit, quit)
		}
		if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
			t.Fatalf("%q: expected %v, got %v", tt.line, tt.wantErr, err)
		}
		if tt.wantErr == nil && err != nil {
			t.Fatalf("%q: unexpected error %v", tt.line, err)
		}
	}

	if _, err := handleLine(orchestrator, "/bogus"); err == nil {
		t.Fatalf("expected unknown command error")
	}
}
