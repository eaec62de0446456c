package kanban

import (
	"encoding/json"
	"log/slog"
)

// Notification event names shared by the server broadcast and the client's
// own echoes.
const (
	EventBoardCreated = "board_created"
	EventBoardUpdated = "board_updated"
	EventBoardDeleted = "board_deleted"

	EventListCreated = "list_created"
	EventListUpdated = "list_updated"
	EventListMoved   = "list_moved"
	EventListDeleted = "list_deleted"

	EventCardCreated = "card_created"
	EventCardUpdated = "card_updated"
	EventCardMoved   = "card_moved"
	EventCardDeleted = "card_deleted"

	EventMemberAdded   = "member_added"
	EventMemberRemoved = "member_removed"
	EventMemberLeft    = "member_left"
)

// Desync reports that a move notification carried a sibling count that does
// not match the local replica, which usually means a missed event. The
// reconciler only reports; refetching is the caller's decision.
type Desync struct {
	BoardID  string
	ListID   string // set when the mismatch is over a list's cards
	Expected int
	Actual   int
}

// Reconciler replays server notifications into the store. Every application
// is idempotent, so an event echoing a mutation this client already applied
// optimistically is harmless, and so is a duplicate delivery.
type Reconciler struct {
	store   *Store
	channel *Channel
	log     *slog.Logger

	selfID    string
	onDesync  func(Desync)
	onEvicted func(boardID string)

	unsubs []func()
}

// NewReconciler wires a reconciler over the store and channel. selfID is the
// authenticated user's id, used to recognize the client's own removal from a
// board. onDesync and onEvicted may be nil.
func NewReconciler(store *Store, channel *Channel, selfID string, log *slog.Logger,
	onDesync func(Desync), onEvicted func(boardID string)) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		store:     store,
		channel:   channel,
		log:       log,
		selfID:    selfID,
		onDesync:  onDesync,
		onEvicted: onEvicted,
	}
}

// Start subscribes the reconciler to every notification event on the bus.
func (r *Reconciler) Start(bus *Bus) {
	sub := func(event string, apply func(payload)) {
		r.unsubs = append(r.unsubs, bus.Subscribe(event, func(data json.RawMessage) {
			p := decodePayload(data)
			if p == nil {
				r.log.Debug("dropping malformed notification", "event", event)
				return
			}
			apply(p)
		}))
	}

	sub(EventBoardCreated, r.applyBoardUpsert)
	sub(EventBoardUpdated, r.applyBoardUpsert)
	sub(EventBoardDeleted, r.applyBoardDeleted)
	sub(EventListCreated, r.applyListUpsert)
	sub(EventListUpdated, r.applyListUpsert)
	sub(EventListMoved, r.applyListMoved)
	sub(EventListDeleted, r.applyListDeleted)
	sub(EventCardCreated, r.applyCardUpsert)
	sub(EventCardUpdated, r.applyCardUpsert)
	sub(EventCardMoved, r.applyCardMoved)
	sub(EventCardDeleted, r.applyCardDeleted)
	sub(EventMemberAdded, r.applyMemberAdded)
	sub(EventMemberRemoved, r.applyMemberGone)
	sub(EventMemberLeft, r.applyMemberGone)
}

// Stop removes every subscription.
func (r *Reconciler) Stop() {
	for _, unsub := range r.unsubs {
		unsub()
	}
	r.unsubs = nil
}

func (r *Reconciler) applyBoardUpsert(p payload) {
	incoming := NormalizeBoard(p)
	if incoming.ID == "" {
		return
	}
	if existing, ok := r.store.Board(incoming.ID); ok {
		// keep the locally known viewer role, the broadcast has no idea
		incoming.Role = existing.Role
		if incoming.OwnerID == "" {
			incoming.OwnerID = existing.OwnerID
		}
	}
	r.store.PutBoard(incoming)
}

func (r *Reconciler) applyBoardDeleted(p payload) {
	boardID := p.BoardIDOf()
	if boardID == "" {
		return
	}
	if r.store.ActiveBoard() == boardID {
		r.channel.Disconnect()
	}
	r.store.RemoveBoard(boardID)
	if r.onEvicted != nil {
		r.onEvicted(boardID)
	}
}

func (r *Reconciler) applyListUpsert(p payload) {
	l := NormalizeList(p, r.store.ActiveBoard())
	if l.ID == "" || l.BoardID == "" {
		return
	}
	r.store.PutList(l)
}

func (r *Reconciler) applyListMoved(p payload) {
	listID := p.ListIDOf()
	if listID == "" {
		return
	}
	if !r.store.SetListPosition(listID, p.PositionOf()) {
		return
	}
	l, _ := r.store.List(listID)
	if expected, ok := p.ExpectedSiblingCount(); ok {
		actual := r.store.ListCount(l.BoardID)
		if expected != actual {
			r.reportDesync(Desync{BoardID: l.BoardID, Expected: expected, Actual: actual})
		}
	}
}

func (r *Reconciler) applyListDeleted(p payload) {
	if listID := p.ListIDOf(); listID != "" {
		r.store.RemoveList(listID)
	}
}

func (r *Reconciler) applyCardUpsert(p payload) {
	c := NormalizeCard(p, "")
	if c.ID == "" || c.ListID == "" {
		return
	}
	r.store.PutCard(c)
}

func (r *Reconciler) applyCardMoved(p payload) {
	cardID := p.CardIDOf()
	toListID := p.OwningListID()
	if cardID == "" || toListID == "" {
		return
	}
	if !r.store.MoveCardLocal(cardID, toListID, p.PositionOf()) {
		return
	}
	if expected, ok := p.ExpectedSiblingCount(); ok {
		actual := r.store.CardCount(toListID)
		if expected != actual {
			c, _ := r.store.Card(cardID)
			l, _ := r.store.List(c.ListID)
			r.reportDesync(Desync{BoardID: l.BoardID, ListID: toListID, Expected: expected, Actual: actual})
		}
	}
}

func (r *Reconciler) applyCardDeleted(p payload) {
	if cardID := p.CardIDOf(); cardID != "" {
		r.store.RemoveCard(cardID)
	}
}

func (r *Reconciler) applyMemberAdded(p payload) {
	m := NormalizeMember(p, r.store.ActiveBoard())
	if m.BoardID == "" || m.UserID == "" {
		return
	}
	r.store.PutMember(m)
}

// applyMemberGone handles both removal by the owner and voluntary leaving.
// When the departed user is this client, access to the board is gone:
// disconnect and evict the whole board subtree.
func (r *Reconciler) applyMemberGone(p payload) {
	userID := p.UserIDOf()
	boardID := p.OwningBoardID()
	if boardID == "" {
		boardID = r.store.ActiveBoard()
	}
	if userID == "" || boardID == "" {
		return
	}
	if userID == r.selfID {
		r.log.Info("removed from board, evicting", "board", boardID)
		if r.store.ActiveBoard() == boardID {
			r.channel.Disconnect()
		}
		r.store.RemoveBoard(boardID)
		if r.onEvicted != nil {
			r.onEvicted(boardID)
		}
		return
	}
	r.store.RemoveMember(boardID, userID)
}

func (r *Reconciler) reportDesync(d Desync) {
	r.log.Warn("replica out of sync with sender",
		"board", d.BoardID, "list", d.ListID, "expected", d.Expected, "actual", d.Actual)
	if r.onDesync != nil {
		r.onDesync(d)
	}
}
