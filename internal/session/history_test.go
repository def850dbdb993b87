package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistoryRenderEmpty(t *testing.T) {
	h := newHistory(1000, 3)
	assert.Equal(t, "", h.render())
}

func TestHistoryRenderUnderBudget(t *testing.T) {
	h := newHistory(1000, 3)
	h.addModel(1, "first response")
	h.addObservation("Execution results", "exit code 0\nhello")

	out := h.render()
	assert.Contains(t, out, "Round 1 model output")
	assert.Contains(t, out, "first response")
	assert.Contains(t, out, "exit code 0")
	assert.NotContains(t, out, omissionMarker)
}

func TestHistoryDropsOldestFirst(t *testing.T) {
	h := newHistory(300, 2)
	for i := 1; i <= 6; i++ {
		h.addModel(i, strings.Repeat("x", 80))
	}

	out := h.render()
	assert.Contains(t, out, omissionMarker)
	assert.NotContains(t, out, "Round 1 model output")
	assert.Contains(t, out, "Round 6 model output")
	assert.LessOrEqual(t, len(out), 300+len(omissionMarker)+2+len("### Round 6 model output\n"))
}

func TestHistoryKeepsRecentWindowOverBudget(t *testing.T) {
	h := newHistory(50, 2)
	h.addModel(1, strings.Repeat("a", 200))
	h.addModel(2, strings.Repeat("b", 200))
	h.addModel(3, strings.Repeat("c", 200))

	out := h.render()
	assert.Contains(t, out, "Round 2 model output", "recent turns survive even over budget")
	assert.Contains(t, out, "Round 3 model output")
	assert.NotContains(t, out, "Round 1 model output")
}
