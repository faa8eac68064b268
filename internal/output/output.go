// Package output renders session progress for the terminal.
package output

import (
	"fmt"
	"io"

	orchestration "github.com/koscakluka/ema-realtime/core"
	"github.com/koscakluka/ema-realtime/core/recording"
	"github.com/koscakluka/ema-realtime/core/transcript"
	"github.com/koscakluka/ema-realtime/internal/utils"
)

// Formatter prints transcript entries once they are final. It is not safe
// for concurrent use.
type Formatter struct {
	w       io.Writer
	printed map[string]bool
	tripped map[string]bool
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w, printed: map[string]bool{}, tripped: map[string]bool{}}
}

// Transcript prints breadcrumbs and finished messages that have not been
// printed yet. Hidden messages are skipped.
func (f *Formatter) Transcript(entries []transcript.Entry) {
	for _, entry := range entries {
		switch entry.Kind {
		case transcript.EntryBreadcrumb:
			if f.printed[entry.Breadcrumb.ID] {
				continue
			}
			f.printed[entry.Breadcrumb.ID] = true
			fmt.Fprintf(f.w, "· %s\n", entry.Breadcrumb.Title)

		case transcript.EntryMessage:
			item := entry.Item
			if item.Hidden {
				continue
			}
			if !f.printed[item.ItemID] && item.Status == transcript.StatusDone {
				f.printed[item.ItemID] = true
				fmt.Fprintf(f.w, "%s: %s\n", item.Role, item.Text)
			}
			if result := utils.Deref(item.Guardrail); result.IsTripped() && !f.tripped[item.ItemID] {
				f.tripped[item.ItemID] = true
				fmt.Fprintf(f.w, "⚠️  guardrail tripped: %s\n", result.Rationale)
			}
		}
	}
}

func (f *Formatter) SessionState(state orchestration.SessionState) {
	if state.ActiveAgent != "" {
		fmt.Fprintf(f.w, "ℹ️  %s (%s)\n", state.ConnectionStatus, state.ActiveAgent)
		return
	}
	fmt.Fprintf(f.w, "ℹ️  %s\n", state.ConnectionStatus)
}

func (f *Formatter) RecordingState(state recording.State) {
	fmt.Fprintf(f.w, "⏺️  recording %s\n", state.Phase)
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintf(f.w, "❌ %s\n", msg)
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintf(f.w, "ℹ️  %s\n", msg)
}
