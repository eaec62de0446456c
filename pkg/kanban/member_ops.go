package kanban

import (
	"context"
	"fmt"
	"strings"
)

// InviteMember invites a user to a board by email. Owner only. Inviting an
// address that already belongs to a member is rejected locally, compared
// case-insensitively.
func (s *Session) InviteMember(ctx context.Context, boardID, email string, role Role) (Member, error) {
	if !s.isOwner(boardID) {
		return Member{}, errKind(KindForbidden, "only the board owner can invite members", nil)
	}
	if !strings.Contains(email, "@") {
		return Member{}, errKind(KindValidation, "invalid email address", nil)
	}
	if err := role.Validate(); err != nil {
		return Member{}, err
	}
	for _, m := range s.store.MembersByBoard(boardID) {
		if strings.EqualFold(m.Email, email) {
			return Member{}, errKind(KindConflict, email+" is already a member", nil)
		}
	}

	member, err := s.api.InviteMember(ctx, boardID, email, role)
	if err != nil {
		return Member{}, fmt.Errorf("inviting %s to board %s: %w", email, boardID, err)
	}
	s.store.PutMember(member)
	s.channel.Send(EventMemberAdded, member)
	return member, nil
}

// RemoveMember removes a user from a board. Owner only; the owner cannot be
// removed, and self-removal must go through LeaveBoard instead. On failure
// the membership record is restored.
func (s *Session) RemoveMember(ctx context.Context, boardID, userID string) error {
	if !s.isOwner(boardID) {
		return errKind(KindForbidden, "only the board owner can remove members", nil)
	}
	if userID == s.user.ID {
		return errKind(KindForbidden, "the owner cannot remove themselves, delete the board instead", nil)
	}
	prev, known := s.store.Member(boardID, userID)
	if known && prev.Role == RoleOwner {
		return errKind(KindForbidden, "the board owner cannot be removed", nil)
	}

	if known {
		s.store.RemoveMember(boardID, userID)
	}
	if err := s.api.RemoveMember(ctx, boardID, userID); err != nil {
		if known {
			s.store.PutMember(prev)
		}
		return fmt.Errorf("removing member %s from board %s: %w", userID, boardID, err)
	}
	s.channel.Send(EventMemberRemoved, map[string]any{"boardId": boardID, "userId": userID})
	return nil
}

// LeaveBoard removes the session user from a board they are a member of.
// Owners cannot leave their own board. The local subtree is evicted after
// the server confirms.
func (s *Session) LeaveBoard(ctx context.Context, boardID string) error {
	if s.isOwner(boardID) {
		return errKind(KindForbidden, "the owner cannot leave their own board", nil)
	}

	if err := s.api.LeaveBoard(ctx, boardID); err != nil {
		return fmt.Errorf("leaving board %s: %w", boardID, err)
	}
	s.channel.Send(EventMemberLeft, map[string]any{"boardId": boardID, "userId": s.user.ID})
	if s.store.ActiveBoard() == boardID {
		s.channel.Disconnect()
	}
	s.store.RemoveBoard(boardID)
	return nil
}
