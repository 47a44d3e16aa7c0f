package board

import (
	"testing"

	"github.com/bytedance/sonic"

	"tabi-api/domain"
)

func mutation(t *testing.T, typ string, data any) domain.Mutation {
	t.Helper()
	raw, err := sonic.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return domain.Mutation{Type: typ, Data: raw}
}

func TestApplyRoutesMutations(t *testing.T) {
	b := testBoard()

	res := Apply(b, "u1", mutation(t, MutationMoveCard, moveCardData{CardID: "cardA", ColumnID: "day1"}))
	if !res.Applied {
		t.Fatalf("moveCard skipped: %+v", res)
	}
	assertSequence(t, b, "day1", "cardA")

	res = Apply(b, "u1", mutation(t, MutationToggleVote, toggleVoteData{CardID: "cardB"}))
	if !res.Applied {
		t.Fatalf("toggleVote skipped: %+v", res)
	}
	if !b.Cards["cardB"].Votes.Has("u1") {
		t.Fatal("actor id should stand in for the participant")
	}

	res = Apply(b, "u1", mutation(t, MutationCreateCard, createCardData{Card: domain.CardAttributes{Title: "Ryokan"}}))
	if !res.Applied {
		t.Fatalf("createCard skipped: %+v", res)
	}

	res = Apply(b, "u1", mutation(t, MutationRemoveCard, removeCardData{CardID: "cardC", ColumnID: domain.ColumnInbox}))
	if !res.Applied {
		t.Fatalf("removeCard skipped: %+v", res)
	}
	if _, ok := b.Cards["cardC"]; ok {
		t.Fatal("card not deleted")
	}
}

func TestApplyMoveAppendsWithoutIndex(t *testing.T) {
	b := testBoard()
	Apply(b, "u1", mutation(t, MutationMoveCard, moveCardData{CardID: "cardA", ColumnID: "day1"}))
	Apply(b, "u1", mutation(t, MutationMoveCard, moveCardData{CardID: "cardB", ColumnID: "day1"}))
	assertSequence(t, b, "day1", "cardA", "cardB")

	idx := 0
	Apply(b, "u1", mutation(t, MutationMoveCard, moveCardData{CardID: "cardC", ColumnID: "day1", TargetIndex: &idx}))
	assertSequence(t, b, "day1", "cardC", "cardA", "cardB")
}

func TestApplyUnknownTypeIsIgnored(t *testing.T) {
	b := testBoard()
	res := Apply(b, "u1", domain.Mutation{Type: "archiveBoard"})
	if res.Applied {
		t.Fatal("unknown mutation type should be ignored")
	}
}

func TestApplyBadPayloadIsIgnored(t *testing.T) {
	b := testBoard()
	res := Apply(b, "u1", domain.Mutation{Type: MutationReorder, Data: []byte(`{"oldIndex":"zero"}`)})
	if res.Applied {
		t.Fatal("undecodable payload should be ignored")
	}
	assertSequence(t, b, domain.ColumnInbox, "cardA", "cardB", "cardC")
}

func BenchmarkApplyReorder(b *testing.B) {
	brd := testBoard()
	raw, _ := sonic.Marshal(reorderData{ColumnID: domain.ColumnInbox, OldIndex: 0, NewIndex: 2})
	m := domain.Mutation{Type: MutationReorder, Data: raw}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Apply(brd, "u1", m)
	}
}
