package session

import (
	"fmt"
	"strings"
)

// omissionMarker replaces rounds dropped by the context budget.
const omissionMarker = "[earlier rounds omitted]"

type turn struct {
	label   string
	content string
}

// history accumulates the conversation transcript and renders it under a
// character budget. The newest turns always survive truncation; older
// rounds are dropped whole, oldest first, behind a marker.
type history struct {
	turns        []turn
	charBudget   int
	recentWindow int
}

func newHistory(charBudget, recentWindow int) *history {
	return &history{charBudget: charBudget, recentWindow: recentWindow}
}

func (h *history) addModel(round int, text string) {
	h.turns = append(h.turns, turn{
		label:   fmt.Sprintf("Round %d model output", round),
		content: text,
	})
}

func (h *history) addObservation(label, text string) {
	h.turns = append(h.turns, turn{label: label, content: text})
}

// render joins the transcript, dropping the oldest turns once the budget is
// exceeded. The most recent turns are kept even when they alone overflow.
func (h *history) render() string {
	if len(h.turns) == 0 {
		return ""
	}

	blocks := make([]string, len(h.turns))
	total := 0
	for i, t := range h.turns {
		blocks[i] = fmt.Sprintf("### %s\n%s", t.label, t.content)
		total += len(blocks[i])
	}
	if total <= h.charBudget {
		return strings.Join(blocks, "\n\n")
	}

	keepFrom := len(h.turns)
	budget := h.charBudget
	for i := len(blocks) - 1; i >= 0; i-- {
		mustKeep := len(blocks)-i <= h.recentWindow
		if !mustKeep && len(blocks[i]) > budget {
			break
		}
		budget -= len(blocks[i])
		keepFrom = i
	}

	kept := blocks[keepFrom:]
	if keepFrom > 0 {
		kept = append([]string{omissionMarker}, kept...)
	}
	return strings.Join(kept, "\n\n")
}
