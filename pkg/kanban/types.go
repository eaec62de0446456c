// Package kanban implements the client-side replicated state engine for
// collaborative boards. It holds a normalized in-memory store of boards,
// lists, cards and members, applies local mutations optimistically against
// the remote API, and reconciles change notifications pushed by other
// clients over a board-scoped websocket channel.
//
// The store is the single source of truth for the UI layer: readers use the
// position-sorted selectors, writers go through a Session. The notification
// channel is best-effort; the request/response API remains authoritative.
package kanban

import "fmt"

// Role is a member's role on a board. Exactly one member per board holds
// RoleOwner.
type Role string

const (
	// RoleOwner marks the single owning member of a board
	RoleOwner Role = "owner"

	// RoleMember marks a regular collaborator
	RoleMember Role = "member"
)

// Validate checks if the Role is a valid enum value.
func (r Role) Validate() error {
	switch r {
	case RoleOwner, RoleMember:
		return nil
	default:
		return fmt.Errorf("unknown role: %q", r)
	}
}

// Board is a kanban board as seen by the current viewer. Lists are not
// embedded; the store's board->list index materializes the relationship.
type Board struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"ownerId"`
	Role    Role   `json:"role"` // the viewer's role on this board
}

// List is an ordered column of cards. Position is a real-number ordering
// key scoped to the owning board; lower sorts earlier.
type List struct {
	ID       string  `json:"id"`
	BoardID  string  `json:"boardId"`
	Title    string  `json:"title"`
	Position float64 `json:"position"`
}

// Card is a single work item. Position is scoped to the owning list.
type Card struct {
	ID          string  `json:"id"`
	ListID      string  `json:"listId"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Position    float64 `json:"position"`
}

// Member is a user's membership on one board. Identity is the composite
// (BoardID, UserID).
type Member struct {
	BoardID string `json:"boardId"`
	UserID  string `json:"userId"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    Role   `json:"role"`
}

// Key returns the composite member key used by the store.
func (m Member) Key() string {
	return MemberKey(m.BoardID, m.UserID)
}

// MemberKey builds the composite store key for a board membership.
func MemberKey(boardID, userID string) string {
	return boardID + "/" + userID
}

// User is the authenticated viewer, fetched once per session and used for
// self/ownership pre-checks.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Validate checks if the Board has usable field values.
func (b *Board) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("board ID cannot be empty")
	}
	if b.Role != "" {
		if err := b.Role.Validate(); err != nil {
			return fmt.Errorf("invalid board role: %w", err)
		}
	}
	return nil
}

// Validate checks if the List has usable field values.
func (l *List) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("list ID cannot be empty")
	}
	if l.BoardID == "" {
		return fmt.Errorf("list %s: board ID cannot be empty", l.ID)
	}
	return nil
}

// Validate checks if the Card has usable field values.
func (c *Card) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("card ID cannot be empty")
	}
	if c.ListID == "" {
		return fmt.Errorf("card %s: list ID cannot be empty", c.ID)
	}
	return nil
}

// Validate checks if the Member has usable field values.
func (m *Member) Validate() error {
	if m.BoardID == "" {
		return fmt.Errorf("member board ID cannot be empty")
	}
	if m.UserID == "" {
		return fmt.Errorf("member user ID cannot be empty")
	}
	if m.Role != "" {
		if err := m.Role.Validate(); err != nil {
			return fmt.Errorf("invalid member role: %w", err)
		}
	}
	return nil
}
