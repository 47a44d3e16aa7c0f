package board

import (
	"github.com/google/uuid"

	"tabi-api/domain"
)

// Result reports how a mutation landed. A mutation referencing a missing
// target is skipped rather than failed; Reason says why when Applied is
// false.
type Result struct {
	Applied bool
	Reason  string
}

func applied() Result {
	return Result{Applied: true}
}

func ignored(reason string) Result {
	return Result{Reason: reason}
}

// column returns the target column, creating it first when the id names a
// lazily-created well-known column that does not exist yet.
func column(b *domain.Board, id string, autoCreate bool) *domain.Column {
	if col, ok := b.Columns[id]; ok {
		return col
	}
	if !autoCreate {
		return nil
	}
	title, ok := domain.WellKnownColumnTitle(id)
	if !ok {
		return nil
	}
	col := domain.NewColumn(id, title)
	b.Columns[id] = col
	return col
}

// Reorder relocates one element within a column's sequence. Out-of-bounds
// indices and unknown columns leave the sequence untouched.
func Reorder(b *domain.Board, columnID string, oldIndex, newIndex int) Result {
	col, ok := b.Columns[columnID]
	if !ok {
		return ignored("column not found")
	}
	n := len(col.CardIDs)
	if oldIndex < 0 || oldIndex >= n || newIndex < 0 || newIndex >= n {
		return ignored("index out of bounds")
	}
	if oldIndex == newIndex {
		return applied()
	}
	id := col.CardIDs[oldIndex]
	col.CardIDs = append(col.CardIDs[:oldIndex], col.CardIDs[oldIndex+1:]...)
	col.CardIDs = append(col.CardIDs[:newIndex], append([]string{id}, col.CardIDs[newIndex:]...)...)
	return applied()
}

// MoveCard removes the card from whichever column currently holds it and
// inserts it into the target column at targetIndex, appending when
// targetIndex is negative or past the end. The target is auto-created when
// it is a well-known column.
func MoveCard(b *domain.Board, cardID, targetColumnID string, targetIndex int) Result {
	if _, ok := b.Cards[cardID]; !ok {
		return ignored("card not found")
	}
	target := column(b, targetColumnID, true)
	if target == nil {
		return ignored("column not found")
	}
	for _, col := range b.Columns {
		if removeID(col, cardID) {
			break
		}
	}
	insertID(target, cardID, targetIndex)
	return applied()
}

// CopyCardToTimeline duplicates the source card under a fresh id and
// inserts the duplicate into the target column. The source stays where it
// is; the duplicate starts without votes.
func CopyCardToTimeline(b *domain.Board, sourceCardID, targetColumnID string, targetIndex int) Result {
	src, ok := b.Cards[sourceCardID]
	if !ok {
		return ignored("card not found")
	}
	target := column(b, targetColumnID, true)
	if target == nil {
		return ignored("column not found")
	}
	dup := src.Clone(uuid.NewString())
	b.Cards[dup.ID] = dup
	insertID(target, dup.ID, targetIndex)
	return applied()
}

// RemoveCardFromTimeline removes the card from the source column's sequence
// and deletes the card entity. Repeating the call is a no-op.
func RemoveCardFromTimeline(b *domain.Board, cardID, sourceColumnID string) Result {
	if col, ok := b.Columns[sourceColumnID]; ok {
		removeID(col, cardID)
	}
	if _, ok := b.Cards[cardID]; !ok {
		return ignored("card not found")
	}
	delete(b.Cards, cardID)
	return applied()
}

// CreateCard allocates a new card from the given attributes and inserts it
// at the top of the inbox column.
func CreateCard(b *domain.Board, attrs domain.CardAttributes) Result {
	return CreateCardToColumn(b, attrs, domain.ColumnInbox, 0)
}

// CreateCardToColumn is CreateCard targeting an arbitrary, possibly
// lazily-created, column at the given index.
func CreateCardToColumn(b *domain.Board, attrs domain.CardAttributes, targetColumnID string, targetIndex int) Result {
	target := column(b, targetColumnID, true)
	if target == nil {
		return ignored("column not found")
	}
	card := domain.NewCard(uuid.NewString(), attrs)
	b.Cards[card.ID] = card
	insertID(target, card.ID, targetIndex)
	return applied()
}

func removeID(col *domain.Column, cardID string) bool {
	for i, id := range col.CardIDs {
		if id == cardID {
			col.CardIDs = append(col.CardIDs[:i], col.CardIDs[i+1:]...)
			return true
		}
	}
	return false
}

func insertID(col *domain.Column, cardID string, index int) {
	if index < 0 || index >= len(col.CardIDs) {
		col.CardIDs = append(col.CardIDs, cardID)
		return
	}
	col.CardIDs = append(col.CardIDs[:index], append([]string{cardID}, col.CardIDs[index:]...)...)
}
