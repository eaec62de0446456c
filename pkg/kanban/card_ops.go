package kanban

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

func cardPositions(cards []Card) []float64 {
	out := make([]float64, len(cards))
	for i, c := range cards {
		out[i] = c.Position
	}
	return out
}

// CreateCard appends a card to the end of a list. The card appears
// immediately under a provisional id.
func (s *Session) CreateCard(ctx context.Context, listID, title, description string) (Card, error) {
	position := NextPosition(cardPositions(s.store.CardsByList(listID)))
	provisional := Card{
		ID:          uuid.NewString(),
		ListID:      listID,
		Title:       title,
		Description: description,
		Position:    position,
	}
	if err := provisional.Validate(); err != nil {
		return Card{}, err
	}
	s.store.PutCard(provisional)

	card, err := s.api.CreateCard(ctx, listID, title, description, position)
	if err != nil {
		s.store.RemoveCard(provisional.ID)
		return Card{}, fmt.Errorf("creating card on list %s: %w", listID, err)
	}
	s.store.SwapCard(provisional.ID, card)
	s.channel.Send(EventCardCreated, card)
	return card, nil
}

// UpdateCard overwrites a card's title and/or description; nil leaves a
// field untouched. Rolls back on failure.
func (s *Session) UpdateCard(ctx context.Context, cardID string, title, description *string) error {
	prev, ok := s.store.Card(cardID)
	if !ok {
		return errKind(KindNotFound, "unknown card "+cardID, nil)
	}
	updated := prev
	if title != nil {
		updated.Title = *title
	}
	if description != nil {
		updated.Description = *description
	}
	if err := updated.Validate(); err != nil {
		return err
	}
	s.store.PutCard(updated)

	card, err := s.api.UpdateCard(ctx, prev.ListID, cardID, title, description)
	if err != nil {
		s.store.PutCard(prev)
		return fmt.Errorf("updating card %s: %w", cardID, err)
	}
	s.store.PutCard(card)
	s.channel.Send(EventCardUpdated, card)
	return nil
}

// MoveCard repositions a card at targetIndex in toListID, which may be its
// current list or a different one. On failure both affected lists are
// restored from their pre-move snapshots. The server broadcasts the
// resulting card_moved to every client, this one included, so no echo is
// sent here.
func (s *Session) MoveCard(ctx context.Context, cardID, toListID string, targetIndex int) error {
	moved, ok := s.store.Card(cardID)
	if !ok {
		return errKind(KindNotFound, "unknown card "+cardID, nil)
	}
	fromListID := moved.ListID
	fromSnapshot := s.store.CardsSnapshot(fromListID)
	var toSnapshot []Card
	if toListID != fromListID {
		toSnapshot = s.store.CardsSnapshot(toListID)
	}

	siblings := s.store.CardsByList(toListID)
	others := make([]Card, 0, len(siblings))
	for _, c := range siblings {
		if c.ID != cardID {
			others = append(others, c)
		}
	}
	position := PositionForIndex(cardPositions(others), targetIndex)
	s.store.MoveCardLocal(cardID, toListID, position)

	if err := s.api.MoveCard(ctx, toListID, cardID, position); err != nil {
		s.store.RestoreCards(fromListID, fromSnapshot)
		if toListID != fromListID {
			s.store.RestoreCards(toListID, toSnapshot)
		}
		return fmt.Errorf("moving card %s: %w", cardID, err)
	}
	return nil
}

// DeleteCard deletes a card, renumbering the surviving siblings densely.
// On failure the sibling set is restored.
func (s *Session) DeleteCard(ctx context.Context, cardID string) error {
	prev, ok := s.store.Card(cardID)
	if !ok {
		return errKind(KindNotFound, "unknown card "+cardID, nil)
	}
	listID := prev.ListID
	snapshot := s.store.CardsSnapshot(listID)

	s.store.RemoveCard(cardID)

	if err := s.api.DeleteCard(ctx, listID, cardID); err != nil {
		s.store.RestoreCards(listID, snapshot)
		return fmt.Errorf("deleting card %s: %w", cardID, err)
	}
	s.channel.Send(EventCardDeleted, map[string]any{"cardId": cardID})
	return nil
}

// DuplicateCard clones a card server-side. The copy lands wherever the
// server put it, usually right after the original, and is announced as a
// created card.
func (s *Session) DuplicateCard(ctx context.Context, cardID string) (Card, error) {
	prev, ok := s.store.Card(cardID)
	if !ok {
		return Card{}, errKind(KindNotFound, "unknown card "+cardID, nil)
	}

	card, err := s.api.DuplicateCard(ctx, cardID)
	if err != nil {
		return Card{}, fmt.Errorf("duplicating card %s: %w", cardID, err)
	}
	if card.ListID == "" {
		card.ListID = prev.ListID
	}
	s.store.PutCard(card)
	s.channel.Send(EventCardCreated, card)
	return card, nil
}
