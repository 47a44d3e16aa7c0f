package domain

import "regexp"

// CardType tags the kind of itinerary item a card represents.
type CardType string

const (
	CardTypePlace    CardType = "place"
	CardTypeFlight   CardType = "flight"
	CardTypeHotel    CardType = "hotel"
	CardTypeActivity CardType = "activity"
	CardTypeNote     CardType = "note"
)

func (t CardType) valid() bool {
	switch t {
	case CardTypePlace, CardTypeFlight, CardTypeHotel, CardTypeActivity, CardTypeNote:
		return true
	}
	return false
}

// VoteSet holds the participant ids that voted for a card. Membership is
// keyed by participant id so a participant can appear at most once.
type VoteSet map[string]struct{}

func (v VoteSet) Has(participantID string) bool {
	_, ok := v[participantID]
	return ok
}

func (v VoteSet) Add(participantID string) {
	v[participantID] = struct{}{}
}

func (v VoteSet) Remove(participantID string) {
	delete(v, participantID)
}

// Card is a single itinerary item. It is owned by exactly one board and
// referenced by at most one column at a time.
type Card struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Category    string   `json:"category,omitempty"`
	Type        CardType `json:"type"`
	Description string   `json:"description,omitempty"`
	Date        string   `json:"date,omitempty"`
	Image       string   `json:"image,omitempty"`
	Airports    []string `json:"airports,omitempty"`
	Votes       VoteSet  `json:"votes"`
}

// CardAttributes carries caller-supplied fields for a new card. Anything
// omitted is normalized to a usable default; attributes are never rejected.
type CardAttributes struct {
	Title       string   `json:"title"`
	Category    string   `json:"category,omitempty"`
	Type        CardType `json:"type,omitempty"`
	Description string   `json:"description,omitempty"`
	Date        string   `json:"date,omitempty"`
	Image       string   `json:"image,omitempty"`
	Airports    []string `json:"airports,omitempty"`
}

// NewCard builds a card from attributes under the given id. Unknown card
// types fall back to "note"; the airports list is only meaningful for
// flight cards and dropped otherwise; the vote set starts empty.
func NewCard(id string, attrs CardAttributes) *Card {
	typ := attrs.Type
	if !typ.valid() {
		typ = CardTypeNote
	}
	var airports []string
	if typ == CardTypeFlight && len(attrs.Airports) > 0 {
		airports = append(airports, attrs.Airports...)
	}
	return &Card{
		ID:          id,
		Title:       attrs.Title,
		Category:    attrs.Category,
		Type:        typ,
		Description: attrs.Description,
		Date:        attrs.Date,
		Image:       attrs.Image,
		Airports:    airports,
		Votes:       VoteSet{},
	}
}

// Clone copies the card's full attribute set under a new id. The duplicate
// starts with an empty vote set: carrying votes over would double-count a
// participant's single board-wide vote.
func (c *Card) Clone(newID string) *Card {
	dup := *c
	dup.ID = newID
	dup.Votes = VoteSet{}
	if len(c.Airports) > 0 {
		dup.Airports = append([]string(nil), c.Airports...)
	}
	return &dup
}

// Normalize fills defaults for fields a decoder may have left nil or
// out of range. Used after unmarshalling board snapshots.
func (c *Card) Normalize() {
	if c.Votes == nil {
		c.Votes = VoteSet{}
	}
	if !c.Type.valid() {
		c.Type = CardTypeNote
	}
}

// Column is a named ordered sequence of card references. It does not own
// card data; CardIDs are lookups into the board's card map.
type Column struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	CardIDs []string `json:"cardIds"`
}

// NewColumn creates an empty column.
func NewColumn(id, title string) *Column {
	return &Column{ID: id, Title: title, CardIDs: []string{}}
}

// Board is the full shared document for one room.
type Board struct {
	Columns  map[string]*Column `json:"columns"`
	Cards    map[string]*Card   `json:"cards"`
	Revision int64              `json:"revision"`
}

// Well-known column ids. These columns are created lazily, at most once per
// board, with a fixed title and an empty sequence. Per-day schedule columns
// ("day1", "day2", ...) belong to the same family.
const (
	ColumnInbox      = "inbox"
	ColumnDayZero    = "day0"
	ColumnCandidates = "candidates"
)

var wellKnownColumns = map[string]string{
	ColumnInbox:      "Inbox",
	ColumnDayZero:    "Day 0",
	ColumnCandidates: "Destination candidates",
}

var dayColumnID = regexp.MustCompile(`^day([0-9]+)$`)

// WellKnownColumnTitle reports whether id names a lazily-creatable column
// and, if so, its fixed title.
func WellKnownColumnTitle(id string) (string, bool) {
	if title, ok := wellKnownColumns[id]; ok {
		return title, ok
	}
	if m := dayColumnID.FindStringSubmatch(id); m != nil {
		return "Day " + m[1], true
	}
	return "", false
}

// NewBoard creates an empty board containing only the inbox column.
func NewBoard() *Board {
	b := &Board{
		Columns: map[string]*Column{},
		Cards:   map[string]*Card{},
	}
	b.Columns[ColumnInbox] = NewColumn(ColumnInbox, wellKnownColumns[ColumnInbox])
	return b
}

// Normalize repairs a board decoded from storage: nil maps and slices
// become empty, cards get their defaults filled.
func (b *Board) Normalize() {
	if b.Columns == nil {
		b.Columns = map[string]*Column{}
	}
	if b.Cards == nil {
		b.Cards = map[string]*Card{}
	}
	for _, col := range b.Columns {
		if col.CardIDs == nil {
			col.CardIDs = []string{}
		}
	}
	for _, card := range b.Cards {
		card.Normalize()
	}
}
