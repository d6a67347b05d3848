package retriever

import (
	"slices"

	"github.com/akolanti/TranscriptRAG/internal/domain/sessionModel"
	"github.com/akolanti/TranscriptRAG/internal/rag/chunker"
)

// SelectHistory keeps at most maxTurns of the most recent usable turns, newest first, while they fit
// in budget tokens, and returns them in chronological order. A question whose answer failed is left out
// along with the failed answer.
func SelectHistory(turns []sessionModel.Turn, maxTurns, budget int) []sessionModel.Turn {
	if maxTurns <= 0 || budget <= 0 {
		return nil
	}
	picked := make([]sessionModel.Turn, 0, maxTurns)
	used := 0
	for i := len(turns) - 1; i >= 0 && len(picked) < maxTurns; i-- {
		t := turns[i]
		if !t.Succeeded() || unanswered(turns, i) {
			continue
		}
		cost := chunker.CountTokens(t.Content)
		if used+cost > budget {
			break
		}
		used += cost
		picked = append(picked, t)
	}
	slices.Reverse(picked)
	return picked
}

func unanswered(turns []sessionModel.Turn, i int) bool {
	if turns[i].Role != sessionModel.RoleUser || i+1 >= len(turns) {
		return false
	}
	next := turns[i+1]
	return next.Role == sessionModel.RoleAssistant && next.Status == sessionModel.StatusFailed
}
