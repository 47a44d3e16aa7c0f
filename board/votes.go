package board

import "tabi-api/domain"

// ToggleVote flips a participant's vote on a card while keeping at most one
// active vote per participant across the whole board. Voting a second card
// first clears the participant's existing vote wherever it is. The caller
// must run this inside the same board transaction as any other mutation so
// the scan-then-mutate sequence is atomic.
func ToggleVote(b *domain.Board, cardID, participantID string) Result {
	card, ok := b.Cards[cardID]
	if !ok {
		return ignored("card not found")
	}
	if card.Votes.Has(participantID) {
		card.Votes.Remove(participantID)
		return applied()
	}
	for id, other := range b.Cards {
		if id == cardID {
			continue
		}
		if other.Votes.Has(participantID) {
			other.Votes.Remove(participantID)
			break
		}
	}
	card.Votes.Add(participantID)
	return applied()
}
