package kanban

import "sync"

// Store is the normalized in-memory replica of every entity the client
// knows about. Entities live in identity-keyed maps; the relationship
// indices (board->lists, list->cards, board->members) are the single source
// of truth for membership, kept sorted by position as a cached ordering that
// is rebuilt after every position write.
//
// All methods take the store mutex, so each mutation runs to completion
// before any other goroutine observes it. Readers receive copies; nothing
// ever hands out a pointer into the store.
type Store struct {
	mu sync.Mutex

	boards         map[string]*Board
	ownedBoardIDs  []string
	memberBoardIDs []string
	activeBoardID  string

	lists      map[string]*List
	boardLists map[string][]string

	cards     map[string]*Card
	listCards map[string][]string

	members      map[string]*Member
	boardMembers map[string][]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	s := &Store{}
	s.resetLocked()
	return s
}

func (s *Store) resetLocked() {
	s.boards = make(map[string]*Board)
	s.ownedBoardIDs = nil
	s.memberBoardIDs = nil
	s.activeBoardID = ""
	s.lists = make(map[string]*List)
	s.boardLists = make(map[string][]string)
	s.cards = make(map[string]*Card)
	s.listCards = make(map[string][]string)
	s.members = make(map[string]*Member)
	s.boardMembers = make(map[string][]string)
}

// Reset evicts every entity. Used when the session closes or switches the
// viewer identity.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// SetActiveBoard records the board the viewer currently has open.
func (s *Store) SetActiveBoard(boardID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeBoardID = boardID
}

// ActiveBoard returns the currently open board id, or "".
func (s *Store) ActiveBoard() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeBoardID
}

// PutBoard inserts or updates a board. Existing partition membership is
// untouched; use SetBoardRole/partition helpers for role changes.
func (s *Store) PutBoard(b Board) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := b
	s.boards[b.ID] = &rec
}

// Board returns a copy of the board, if known.
func (s *Store) Board(boardID string) (Board, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.boards[boardID]
	if !ok {
		return Board{}, false
	}
	return *b, true
}

// ReplaceBoardPartitions replaces the ownership partitions wholesale from a
// fresh by-role fetch. Boards present in either slice are upserted with the
// matching viewer role.
func (s *Store) ReplaceBoardPartitions(owned, member []Board) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ownedBoardIDs = s.ownedBoardIDs[:0]
	s.memberBoardIDs = s.memberBoardIDs[:0]
	for _, b := range owned {
		rec := b
		rec.Role = RoleOwner
		s.boards[b.ID] = &rec
		s.ownedBoardIDs = append(s.ownedBoardIDs, b.ID)
	}
	for _, b := range member {
		rec := b
		rec.Role = RoleMember
		s.boards[b.ID] = &rec
		s.memberBoardIDs = append(s.memberBoardIDs, b.ID)
	}
}

// AddOwnedBoard upserts a board the viewer just created and records it in
// the owned partition.
func (s *Store) AddOwnedBoard(b Board) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := b
	rec.Role = RoleOwner
	s.boards[b.ID] = &rec
	if !contains(s.ownedBoardIDs, b.ID) {
		s.ownedBoardIDs = append(s.ownedBoardIDs, b.ID)
	}
}

// OwnedBoards returns copies of the boards the viewer owns.
func (s *Store) OwnedBoards() []Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boardsByIDsLocked(s.ownedBoardIDs)
}

// MemberBoards returns copies of the boards the viewer participates in
// without owning.
func (s *Store) MemberBoards() []Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boardsByIDsLocked(s.memberBoardIDs)
}

func (s *Store) boardsByIDsLocked(ids []string) []Board {
	out := make([]Board, 0, len(ids))
	for _, id := range ids {
		if b, ok := s.boards[id]; ok {
			out = append(out, *b)
		}
	}
	return out
}

// RemoveBoard deletes a board and cascades through every index: its lists,
// their cards, its members, both ownership partitions, and the active-board
// marker when it pointed here.
func (s *Store) RemoveBoard(boardID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeBoardLocked(boardID)
}

func (s *Store) removeBoardLocked(boardID string) {
	for _, listID := range s.boardLists[boardID] {
		for _, cardID := range s.listCards[listID] {
			delete(s.cards, cardID)
		}
		delete(s.listCards, listID)
		delete(s.lists, listID)
	}
	delete(s.boardLists, boardID)

	for _, memberKey := range s.boardMembers[boardID] {
		delete(s.members, memberKey)
	}
	delete(s.boardMembers, boardID)

	delete(s.boards, boardID)
	s.ownedBoardIDs = remove(s.ownedBoardIDs, boardID)
	s.memberBoardIDs = remove(s.memberBoardIDs, boardID)
	if s.activeBoardID == boardID {
		s.activeBoardID = ""
	}
}

// PutList inserts or updates a list and keeps the board->list index
// consistent, including the position-sorted cache order.
func (s *Store) PutList(l List) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putListLocked(l)
}

func (s *Store) putListLocked(l List) {
	if prev, ok := s.lists[l.ID]; ok && prev.BoardID != l.BoardID {
		s.boardLists[prev.BoardID] = remove(s.boardLists[prev.BoardID], l.ID)
	}
	rec := l
	s.lists[l.ID] = &rec
	if !contains(s.boardLists[l.BoardID], l.ID) {
		s.boardLists[l.BoardID] = append(s.boardLists[l.BoardID], l.ID)
	}
	s.resortBoardListsLocked(l.BoardID)
}

// ReplaceLists replaces a board's lists wholesale from a fresh fetch or a
// rollback snapshot. Cards of dropped lists are evicted.
func (s *Store) ReplaceLists(boardID string, lists []List) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keep := make(map[string]bool, len(lists))
	for _, l := range lists {
		keep[l.ID] = true
	}
	for _, listID := range s.boardLists[boardID] {
		if !keep[listID] {
			s.removeListCardsLocked(listID)
			delete(s.lists, listID)
		}
	}
	s.boardLists[boardID] = s.boardLists[boardID][:0]
	for _, l := range lists {
		rec := l
		rec.BoardID = boardID
		s.lists[l.ID] = &rec
		s.boardLists[boardID] = append(s.boardLists[boardID], l.ID)
	}
	s.resortBoardListsLocked(boardID)
}

// List returns a copy of the list, if known.
func (s *Store) List(listID string) (List, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[listID]
	if !ok {
		return List{}, false
	}
	return *l, true
}

// ListsByBoard returns copies of a board's lists in position order.
func (s *Store) ListsByBoard(boardID string) []List {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listsByBoardLocked(boardID)
}

func (s *Store) listsByBoardLocked(boardID string) []List {
	ids := s.boardLists[boardID]
	out := make([]List, 0, len(ids))
	for _, id := range ids {
		if l, ok := s.lists[id]; ok {
			out = append(out, *l)
		}
	}
	SortListsByPosition(out)
	return out
}

// ListCount returns the number of lists known for a board. The reconciler
// compares this against the sender's observed count on move notifications.
func (s *Store) ListCount(boardID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.boardLists[boardID])
}

// SetListPosition writes a list's position and re-sorts its siblings'
// cached order.
func (s *Store) SetListPosition(listID string, position float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[listID]
	if !ok {
		return false
	}
	l.Position = position
	s.resortBoardListsLocked(l.BoardID)
	return true
}

// SetListTitle writes a list's title. Returns the previous title for
// rollback, and false when the list is unknown.
func (s *Store) SetListTitle(listID, title string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[listID]
	if !ok {
		return "", false
	}
	prev := l.Title
	l.Title = title
	return prev, true
}

// RemoveList deletes a list, cascades its cards out of the card store and
// index, and renumbers the surviving sibling lists to a dense 1..n sequence.
func (s *Store) RemoveList(listID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[listID]
	if !ok {
		return
	}
	boardID := l.BoardID
	s.removeListCardsLocked(listID)
	delete(s.lists, listID)
	s.boardLists[boardID] = remove(s.boardLists[boardID], listID)
	s.renumberListsLocked(boardID)
}

func (s *Store) removeListCardsLocked(listID string) {
	for _, cardID := range s.listCards[listID] {
		delete(s.cards, cardID)
	}
	delete(s.listCards, listID)
}

func (s *Store) renumberListsLocked(boardID string) {
	survivors := s.listsByBoardLocked(boardID)
	dense := densePositions(len(survivors))
	for i, l := range survivors {
		s.lists[l.ID].Position = dense[i]
	}
	s.resortBoardListsLocked(boardID)
}

func (s *Store) resortBoardListsLocked(boardID string) {
	sorted := s.listsByBoardLocked(boardID)
	ids := s.boardLists[boardID][:0]
	for _, l := range sorted {
		ids = append(ids, l.ID)
	}
	s.boardLists[boardID] = ids
}

// SwapList replaces a provisional list with its committed server
// representation. Unlike RemoveList this does not renumber siblings; the
// committed list simply takes the provisional one's place.
func (s *Store) SwapList(provisionalID string, actual List) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.lists[provisionalID]; ok {
		s.boardLists[prev.BoardID] = remove(s.boardLists[prev.BoardID], provisionalID)
		delete(s.lists, provisionalID)
	}
	s.putListLocked(actual)
}

// PutCard inserts or updates a card, migrating the list->card index when
// the card changed lists, and re-sorts the affected index.
func (s *Store) PutCard(c Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putCardLocked(c)
}

func (s *Store) putCardLocked(c Card) {
	if prev, ok := s.cards[c.ID]; ok && prev.ListID != c.ListID {
		s.listCards[prev.ListID] = remove(s.listCards[prev.ListID], c.ID)
		s.resortListCardsLocked(prev.ListID)
	}
	rec := c
	s.cards[c.ID] = &rec
	if !contains(s.listCards[c.ListID], c.ID) {
		s.listCards[c.ListID] = append(s.listCards[c.ListID], c.ID)
	}
	s.resortListCardsLocked(c.ListID)
}

// ReplaceCards replaces a list's cards wholesale from a fresh fetch or a
// rollback snapshot. Cards whose current home is another list are left in
// place there; an incoming card still indexed under another list is pulled
// back, so restoring both sides of a rejected cross-list move works in
// either order.
func (s *Store) ReplaceCards(listID string, cards []Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cardID := range s.listCards[listID] {
		if prev, ok := s.cards[cardID]; ok && prev.ListID == listID {
			delete(s.cards, cardID)
		}
	}
	s.listCards[listID] = s.listCards[listID][:0]
	for _, c := range cards {
		rec := c
		rec.ListID = listID
		if prev, ok := s.cards[c.ID]; ok && prev.ListID != listID {
			s.listCards[prev.ListID] = remove(s.listCards[prev.ListID], c.ID)
			s.resortListCardsLocked(prev.ListID)
		}
		s.cards[c.ID] = &rec
		s.listCards[listID] = append(s.listCards[listID], c.ID)
	}
	s.resortListCardsLocked(listID)
}

// Card returns a copy of the card, if known.
func (s *Store) Card(cardID string) (Card, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[cardID]
	if !ok {
		return Card{}, false
	}
	return *c, true
}

// CardsByList returns copies of a list's cards in position order.
func (s *Store) CardsByList(listID string) []Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cardsByListLocked(listID)
}

func (s *Store) cardsByListLocked(listID string) []Card {
	ids := s.listCards[listID]
	out := make([]Card, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.cards[id]; ok {
			out = append(out, *c)
		}
	}
	SortCardsByPosition(out)
	return out
}

// CardCount returns the number of cards known for a list.
func (s *Store) CardCount(listID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listCards[listID])
}

// SetCardFields overwrites a card's title and/or description. nil leaves a
// field untouched. Returns the previous card for rollback.
func (s *Store) SetCardFields(cardID string, title, description *string) (Card, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[cardID]
	if !ok {
		return Card{}, false
	}
	prev := *c
	if title != nil {
		c.Title = *title
	}
	if description != nil {
		c.Description = *description
	}
	return prev, true
}

// MoveCardLocal applies a card move to the store: reassigns the owning list,
// writes the position, and re-sorts both affected indexes.
func (s *Store) MoveCardLocal(cardID, toListID string, position float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[cardID]
	if !ok {
		return false
	}
	moved := *c
	moved.ListID = toListID
	moved.Position = position
	s.putCardLocked(moved)
	return true
}

// RemoveCard deletes a card and renumbers the surviving siblings to a dense
// 1..n sequence.
func (s *Store) RemoveCard(cardID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[cardID]
	if !ok {
		return
	}
	listID := c.ListID
	delete(s.cards, cardID)
	s.listCards[listID] = remove(s.listCards[listID], cardID)
	s.renumberCardsLocked(listID)
}

func (s *Store) renumberCardsLocked(listID string) {
	survivors := s.cardsByListLocked(listID)
	dense := densePositions(len(survivors))
	for i, c := range survivors {
		s.cards[c.ID].Position = dense[i]
	}
	s.resortListCardsLocked(listID)
}

func (s *Store) resortListCardsLocked(listID string) {
	sorted := s.cardsByListLocked(listID)
	ids := s.listCards[listID][:0]
	for _, c := range sorted {
		ids = append(ids, c.ID)
	}
	s.listCards[listID] = ids
}

// SwapCard replaces a provisional card with its committed server
// representation without renumbering siblings.
func (s *Store) SwapCard(provisionalID string, actual Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.cards[provisionalID]; ok {
		s.listCards[prev.ListID] = remove(s.listCards[prev.ListID], provisionalID)
		delete(s.cards, provisionalID)
	}
	s.putCardLocked(actual)
}

// ReplaceMembers replaces a board's member set wholesale from a fresh fetch.
func (s *Store) ReplaceMembers(boardID string, members []Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.boardMembers[boardID] {
		delete(s.members, key)
	}
	s.boardMembers[boardID] = s.boardMembers[boardID][:0]
	for _, m := range members {
		rec := m
		rec.BoardID = boardID
		key := rec.Key()
		s.members[key] = &rec
		s.boardMembers[boardID] = append(s.boardMembers[boardID], key)
	}
}

// PutMember inserts or updates one membership record.
func (s *Store) PutMember(m Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := m
	key := rec.Key()
	s.members[key] = &rec
	if !contains(s.boardMembers[m.BoardID], key) {
		s.boardMembers[m.BoardID] = append(s.boardMembers[m.BoardID], key)
	}
}

// RemoveMember deletes one membership record.
func (s *Store) RemoveMember(boardID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := MemberKey(boardID, userID)
	delete(s.members, key)
	s.boardMembers[boardID] = remove(s.boardMembers[boardID], key)
}

// MembersByBoard returns copies of a board's members.
func (s *Store) MembersByBoard(boardID string) []Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := s.boardMembers[boardID]
	out := make([]Member, 0, len(keys))
	for _, key := range keys {
		if m, ok := s.members[key]; ok {
			out = append(out, *m)
		}
	}
	return out
}

// Member returns one membership record, if known.
func (s *Store) Member(boardID, userID string) (Member, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[MemberKey(boardID, userID)]
	if !ok {
		return Member{}, false
	}
	return *m, true
}

// IsOwner reports whether userID holds the owner role on boardID, judged by
// the member list first and the board's owner id as a fallback.
func (s *Store) IsOwner(boardID, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.members[MemberKey(boardID, userID)]; ok && m.Role == RoleOwner {
		return true
	}
	if b, ok := s.boards[boardID]; ok && b.OwnerID != "" && b.OwnerID == userID {
		return true
	}
	return false
}

// ListsSnapshot captures the full sibling set of a board's lists for
// rollback. Restoring replaces the slice wholesale, so a move that perturbed
// neighbor positions is undone in one step.
func (s *Store) ListsSnapshot(boardID string) []List {
	return s.ListsByBoard(boardID)
}

// RestoreLists restores a board's lists from a snapshot verbatim.
func (s *Store) RestoreLists(boardID string, snapshot []List) {
	s.ReplaceLists(boardID, snapshot)
}

// CardsSnapshot captures the full sibling set of a list's cards for
// rollback.
func (s *Store) CardsSnapshot(listID string) []Card {
	return s.CardsByList(listID)
}

// RestoreCards restores a list's cards from a snapshot verbatim.
func (s *Store) RestoreCards(listID string, snapshot []Card) {
	s.ReplaceCards(listID, snapshot)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
