package gate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lightblue/fitbot-go/internal/rag"
)

// NoContext is the sentinel returned when no hit fits the character budget.
// The generation collaborator must treat it as "answer honestly that no
// context is available", never as real empty context.
const NoContext = "NO_CONTEXT"

// DefaultMaxContextChars is the context budget when the caller passes 0.
const DefaultMaxContextChars = 4000

// Assemble packs ranked hits into a prompt context bounded by maxChars.
// Hits are re-sorted by score descending (defensive — the retriever already
// sorts), then formatted blocks are appended greedily:
//
//	[Q{rank}] {question}
//	{body}
//
// Assembly stops at the first block that would exceed the budget. Returns
// the concatenated context and the number of blocks included; when even the
// first block does not fit, the result is the NoContext sentinel with a
// zero count.
func Assemble(hits []rag.ScoredHit, maxChars int) (string, int) {
	if maxChars <= 0 {
		maxChars = DefaultMaxContextChars
	}
	if len(hits) == 0 {
		return NoContext, 0
	}

	sorted := make([]rag.ScoredHit, len(hits))
	copy(sorted, hits)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	var sb strings.Builder
	used := 0
	for i, h := range sorted {
		question := strings.Join(strings.Fields(h.Question()), " ")
		block := fmt.Sprintf("[Q%d] %s\n%s\n\n", i+1, question, h.Text)
		if sb.Len()+len(block) > maxChars {
			break
		}
		sb.WriteString(block)
		used++
	}

	if used == 0 {
		return NoContext, 0
	}
	return sb.String(), used
}
