package board

import (
	"github.com/bytedance/sonic"

	"tabi-api/domain"
)

// Mutation type names accepted on the wire.
const (
	MutationReorder      = "reorder"
	MutationMoveCard     = "moveCard"
	MutationCopyCard     = "copyCardToTimeline"
	MutationRemoveCard   = "removeCardFromTimeline"
	MutationCreateCard   = "createCard"
	MutationCreateCardTo = "createCardToColumn"
	MutationToggleVote   = "toggleVote"
)

type reorderData struct {
	ColumnID string `json:"columnId"`
	OldIndex int    `json:"oldIndex"`
	NewIndex int    `json:"newIndex"`
}

type moveCardData struct {
	CardID      string `json:"cardId"`
	ColumnID    string `json:"columnId"`
	TargetIndex *int   `json:"targetIndex,omitempty"`
}

type copyCardData struct {
	SourceCardID string `json:"sourceCardId"`
	ColumnID     string `json:"columnId"`
	TargetIndex  *int   `json:"targetIndex,omitempty"`
}

type removeCardData struct {
	CardID   string `json:"cardId"`
	ColumnID string `json:"columnId"`
}

type createCardData struct {
	Card domain.CardAttributes `json:"card"`
}

type createCardToColumnData struct {
	Card        domain.CardAttributes `json:"card"`
	ColumnID    string                `json:"columnId"`
	TargetIndex int                   `json:"targetIndex"`
}

type toggleVoteData struct {
	CardID        string `json:"cardId"`
	ParticipantID string `json:"participantId,omitempty"`
}

// Apply routes one decoded mutation to the matching board operation.
// actorID stands in for the participant when the payload does not name one.
// Unknown mutation types and undecodable payloads are ignored results, not
// errors; the shared document is the single source of truth the UI
// reflects, so a stale or malformed intent is simply skipped.
func Apply(b *domain.Board, actorID string, m domain.Mutation) Result {
	switch m.Type {
	case MutationReorder:
		var d reorderData
		if err := sonic.Unmarshal(m.Data, &d); err != nil {
			return ignored("bad payload")
		}
		return Reorder(b, d.ColumnID, d.OldIndex, d.NewIndex)
	case MutationMoveCard:
		var d moveCardData
		if err := sonic.Unmarshal(m.Data, &d); err != nil {
			return ignored("bad payload")
		}
		return MoveCard(b, d.CardID, d.ColumnID, indexOrAppend(d.TargetIndex))
	case MutationCopyCard:
		var d copyCardData
		if err := sonic.Unmarshal(m.Data, &d); err != nil {
			return ignored("bad payload")
		}
		return CopyCardToTimeline(b, d.SourceCardID, d.ColumnID, indexOrAppend(d.TargetIndex))
	case MutationRemoveCard:
		var d removeCardData
		if err := sonic.Unmarshal(m.Data, &d); err != nil {
			return ignored("bad payload")
		}
		return RemoveCardFromTimeline(b, d.CardID, d.ColumnID)
	case MutationCreateCard:
		var d createCardData
		if err := sonic.Unmarshal(m.Data, &d); err != nil {
			return ignored("bad payload")
		}
		return CreateCard(b, d.Card)
	case MutationCreateCardTo:
		var d createCardToColumnData
		if err := sonic.Unmarshal(m.Data, &d); err != nil {
			return ignored("bad payload")
		}
		return CreateCardToColumn(b, d.Card, d.ColumnID, d.TargetIndex)
	case MutationToggleVote:
		var d toggleVoteData
		if err := sonic.Unmarshal(m.Data, &d); err != nil {
			return ignored("bad payload")
		}
		participant := d.ParticipantID
		if participant == "" {
			participant = actorID
		}
		return ToggleVote(b, d.CardID, participant)
	default:
		return ignored("unknown mutation type")
	}
}

func indexOrAppend(idx *int) int {
	if idx == nil {
		return -1
	}
	return *idx
}
