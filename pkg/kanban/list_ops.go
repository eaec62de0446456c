package kanban

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

func listPositions(lists []List) []float64 {
	out := make([]float64, len(lists))
	for i, l := range lists {
		out[i] = l.Position
	}
	return out
}

// CreateList appends a list to the end of the board. The list appears
// immediately under a provisional id.
func (s *Session) CreateList(ctx context.Context, boardID, title string) (List, error) {
	position := NextPosition(listPositions(s.store.ListsByBoard(boardID)))
	provisional := List{
		ID:       uuid.NewString(),
		BoardID:  boardID,
		Title:    title,
		Position: position,
	}
	if err := provisional.Validate(); err != nil {
		return List{}, err
	}
	s.store.PutList(provisional)

	list, err := s.api.CreateList(ctx, boardID, title, position)
	if err != nil {
		s.store.RemoveList(provisional.ID)
		return List{}, fmt.Errorf("creating list on board %s: %w", boardID, err)
	}
	s.store.SwapList(provisional.ID, list)
	s.channel.Send(EventListCreated, list)
	return list, nil
}

// RenameList retitles a list, rolling the title back on failure.
func (s *Session) RenameList(ctx context.Context, listID, title string) error {
	prev, ok := s.store.List(listID)
	if !ok {
		return errKind(KindNotFound, "unknown list "+listID, nil)
	}
	renamed := prev
	renamed.Title = title
	if err := renamed.Validate(); err != nil {
		return err
	}
	s.store.PutList(renamed)

	list, err := s.api.UpdateList(ctx, prev.BoardID, listID, title)
	if err != nil {
		s.store.PutList(prev)
		return fmt.Errorf("renaming list %s: %w", listID, err)
	}
	s.store.PutList(list)
	s.channel.Send(EventListUpdated, list)
	return nil
}

// MoveList repositions a list so it lands at targetIndex among its
// siblings. The new position is first/2 for the front, last+1 for the end,
// and the midpoint of the new neighbors otherwise. On failure the entire
// sibling set is restored from the pre-move snapshot.
func (s *Session) MoveList(ctx context.Context, listID string, targetIndex int) error {
	moved, ok := s.store.List(listID)
	if !ok {
		return errKind(KindNotFound, "unknown list "+listID, nil)
	}
	boardID := moved.BoardID
	snapshot := s.store.ListsSnapshot(boardID)

	others := make([]List, 0, len(snapshot))
	for _, l := range snapshot {
		if l.ID != listID {
			others = append(others, l)
		}
	}
	position := PositionForIndex(listPositions(others), targetIndex)
	s.store.SetListPosition(listID, position)

	list, err := s.api.MoveList(ctx, boardID, listID, position)
	if err != nil {
		s.store.RestoreLists(boardID, snapshot)
		return fmt.Errorf("moving list %s: %w", listID, err)
	}
	s.store.PutList(list)
	s.channel.Send(EventListMoved, map[string]any{
		"id":                 list.ID,
		"boardId":            list.BoardID,
		"title":              list.Title,
		"position":           list.Position,
		"_expectedListCount": s.store.ListCount(boardID),
	})
	return nil
}

// DeleteList deletes a list and its cards, renumbering the surviving
// siblings densely. On failure both the sibling set and the deleted cards
// are restored.
func (s *Session) DeleteList(ctx context.Context, listID string) error {
	prev, ok := s.store.List(listID)
	if !ok {
		return errKind(KindNotFound, "unknown list "+listID, nil)
	}
	boardID := prev.BoardID
	listSnapshot := s.store.ListsSnapshot(boardID)
	cardSnapshot := s.store.CardsSnapshot(listID)

	s.store.RemoveList(listID)

	if err := s.api.DeleteList(ctx, boardID, listID); err != nil {
		s.store.RestoreLists(boardID, listSnapshot)
		s.store.RestoreCards(listID, cardSnapshot)
		return fmt.Errorf("deleting list %s: %w", listID, err)
	}
	s.channel.Send(EventListDeleted, map[string]any{"id": listID, "boardId": boardID})
	return nil
}
