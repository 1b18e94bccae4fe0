package conversation

import (
	"encoding/json"

	"github.com/calderonlabs/tienda-backend/pkg/types"
)

// LoadWindow decodes a stored turn document and returns the trailing window
// handed to the model. A malformed document yields an empty history rather
// than an error, so one bad row never wedges a conversation.
//
// The raw window is the last limit turns. Its leading edge is then advanced
// to the first request turn that carries no tool-return part, so the model
// never sees a tool result whose originating call was trimmed away. When no
// such turn exists the raw window is kept as is.
func LoadWindow(doc []byte, limit int) []types.Turn {
	if len(doc) == 0 {
		return nil
	}
	var turns []types.Turn
	if err := json.Unmarshal(doc, &turns); err != nil {
		return nil
	}
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	for i, turn := range turns {
		if turn.Kind == types.TurnKindRequest && !turn.HasToolReturn() {
			return turns[i:]
		}
	}
	return turns
}
