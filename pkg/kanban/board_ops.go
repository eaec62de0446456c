package kanban

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CreateBoard creates a board owned by the session user. The board appears
// in the store immediately under a provisional id and is swapped for the
// server's representation on commit.
func (s *Session) CreateBoard(ctx context.Context, name string) (Board, error) {
	provisional := Board{
		ID:      uuid.NewString(),
		Name:    name,
		OwnerID: s.user.ID,
		Role:    RoleOwner,
	}
	if err := provisional.Validate(); err != nil {
		return Board{}, err
	}
	s.store.AddOwnedBoard(provisional)

	board, err := s.api.CreateBoard(ctx, name)
	if err != nil {
		s.store.RemoveBoard(provisional.ID)
		return Board{}, fmt.Errorf("creating board: %w", err)
	}
	s.store.RemoveBoard(provisional.ID)
	if board.OwnerID == "" {
		board.OwnerID = s.user.ID
	}
	s.store.AddOwnedBoard(board)
	s.channel.Send(EventBoardCreated, board)
	return board, nil
}

// RenameBoard renames a board. Owner only, enforced locally before any
// state changes.
func (s *Session) RenameBoard(ctx context.Context, boardID, name string) error {
	if !s.isOwner(boardID) {
		return errKind(KindForbidden, "only the board owner can rename it", nil)
	}
	prev, ok := s.store.Board(boardID)
	if !ok {
		return errKind(KindNotFound, "unknown board "+boardID, nil)
	}

	renamed := prev
	renamed.Name = name
	if err := renamed.Validate(); err != nil {
		return err
	}
	s.store.PutBoard(renamed)

	board, err := s.api.UpdateBoard(ctx, boardID, name)
	if err != nil {
		s.store.PutBoard(prev)
		return fmt.Errorf("renaming board %s: %w", boardID, err)
	}
	board.Role = prev.Role
	if board.OwnerID == "" {
		board.OwnerID = prev.OwnerID
	}
	s.store.PutBoard(board)
	s.channel.Send(EventBoardUpdated, board)
	return nil
}

// DeleteBoard deletes a board and its whole subtree. Owner only. On failure
// the subtree is restored from the pre-delete snapshot.
func (s *Session) DeleteBoard(ctx context.Context, boardID string) error {
	if !s.isOwner(boardID) {
		return errKind(KindForbidden, "only the board owner can delete it", nil)
	}
	board, ok := s.store.Board(boardID)
	if !ok {
		return errKind(KindNotFound, "unknown board "+boardID, nil)
	}

	lists := s.store.ListsSnapshot(boardID)
	cards := make(map[string][]Card, len(lists))
	for _, l := range lists {
		cards[l.ID] = s.store.CardsSnapshot(l.ID)
	}
	members := s.store.MembersByBoard(boardID)
	wasActive := s.store.ActiveBoard() == boardID

	s.store.RemoveBoard(boardID)

	if err := s.api.DeleteBoard(ctx, boardID); err != nil {
		s.store.AddOwnedBoard(board)
		s.store.ReplaceLists(boardID, lists)
		for listID, cs := range cards {
			s.store.ReplaceCards(listID, cs)
		}
		s.store.ReplaceMembers(boardID, members)
		if wasActive {
			s.store.SetActiveBoard(boardID)
		}
		return fmt.Errorf("deleting board %s: %w", boardID, err)
	}

	s.channel.Send(EventBoardDeleted, map[string]any{"id": boardID})
	if wasActive {
		s.channel.Disconnect()
	}
	return nil
}
