package kanban

import (
	"encoding/json"
	"strconv"
)

// Boundary normalization for wire payloads.
//
// The server has emitted entity fields under several historical naming
// variants (Go-struct casing, camelCase, snake_case), and numeric ids on
// some endpoints. Every payload crossing into the engine goes through
// exactly one of the normalize* functions below, which probe the known
// variants in a fixed priority order and coerce the first hit to the
// canonical string/float form. Nothing past this file ever sees a raw
// payload shape.

// payload is a decoded wire object. Lookups are nil-safe.
type payload map[string]any

// decodePayload unmarshals raw JSON into a payload. A nil return means the
// payload was malformed and must be dropped (lenient ingestion).
func decodePayload(raw json.RawMessage) payload {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil
	}
	return p
}

// coerceID turns a wire id value (string or number) into its canonical
// string form. Returns "" when the value is absent or not id-like.
func coerceID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		// JSON numbers decode as float64; server ids are integral
		return strconv.FormatInt(int64(id), 10)
	case json.Number:
		return id.String()
	default:
		return ""
	}
}

// firstID probes keys in order and returns the first present id, coerced.
func (p payload) firstID(keys ...string) string {
	for _, k := range keys {
		if v, ok := p[k]; ok && v != nil {
			if id := coerceID(v); id != "" {
				return id
			}
		}
	}
	return ""
}

// firstString probes keys in order and returns the first non-empty string.
func (p payload) firstString(keys ...string) string {
	for _, k := range keys {
		if s, ok := p[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// firstNumber probes keys in order and returns the first numeric value.
func (p payload) firstNumber(keys ...string) (float64, bool) {
	for _, k := range keys {
		switch n := p[k].(type) {
		case float64:
			return n, true
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// BoardIDOf extracts the board id from a wire payload.
func (p payload) BoardIDOf() string {
	return p.firstID("ID", "BoardID", "boardId", "board_id", "id")
}

// ListIDOf extracts the list id from a wire payload.
func (p payload) ListIDOf() string {
	return p.firstID("ID", "id", "ListID", "listId", "list_id")
}

// CardIDOf extracts the card id from a wire payload.
func (p payload) CardIDOf() string {
	return p.firstID("ID", "id", "CardID", "cardId")
}

// UserIDOf extracts the user id from a wire payload.
func (p payload) UserIDOf() string {
	return p.firstID("UserID", "userId", "user_id")
}

// OwningListID extracts the owning-list reference of a card payload. Unlike
// CardIDOf this must not fall back to the entity's own id keys.
func (p payload) OwningListID() string {
	return p.firstID("ListID", "listId", "list_id", "toListId")
}

// OwningBoardID extracts the owning-board reference of a list or member
// payload, without falling back to the entity's own id keys.
func (p payload) OwningBoardID() string {
	return p.firstID("BoardID", "boardId", "board_id")
}

// DescriptionOf extracts a card description. The legacy server sometimes
// serialized descriptions as a pgtype.Text object {String, Valid}.
func (p payload) DescriptionOf() string {
	if s, ok := p["Description"].(string); ok {
		return s
	}
	if obj, ok := p["Description"].(map[string]any); ok {
		if s, ok := obj["String"].(string); ok {
			return s
		}
	}
	if s, ok := p["description"].(string); ok {
		return s
	}
	return ""
}

// PositionOf extracts a position value, defaulting to zero.
func (p payload) PositionOf() float64 {
	n, _ := p.firstNumber("Position", "position", "toPos")
	return n
}

// ExpectedSiblingCount extracts the sender's observed sibling count attached
// to move notifications. ok is false when the sender did not include one.
func (p payload) ExpectedSiblingCount() (int, bool) {
	if n, found := p.firstNumber("_expectedListCount", "_expectedCardCount"); found {
		return int(n), true
	}
	return 0, false
}

// NormalizeBoard builds a canonical Board from a wire payload. The zero-ID
// result signals an unusable payload.
func NormalizeBoard(p payload) Board {
	role := RoleMember
	if r := Role(p.firstString("role", "Role")); r.Validate() == nil {
		role = r
	}
	return Board{
		ID:      p.BoardIDOf(),
		Name:    p.firstString("Name", "name"),
		OwnerID: p.firstID("OwnerID", "ownerId", "owner_id"),
		Role:    role,
	}
}

// NormalizeList builds a canonical List from a wire payload. fallbackBoardID
// is used when the payload carries no board reference of its own.
func NormalizeList(p payload, fallbackBoardID string) List {
	boardID := p.OwningBoardID()
	if boardID == "" {
		boardID = fallbackBoardID
	}
	return List{
		ID:       p.ListIDOf(),
		BoardID:  boardID,
		Title:    p.firstString("Title", "title"),
		Position: p.PositionOf(),
	}
}

// NormalizeCard builds a canonical Card from a wire payload. fallbackListID
// is used when the payload carries no list reference of its own.
func NormalizeCard(p payload, fallbackListID string) Card {
	listID := p.OwningListID()
	if listID == "" {
		listID = fallbackListID
	}
	return Card{
		ID:          p.CardIDOf(),
		ListID:      listID,
		Title:       p.firstString("Title", "title"),
		Description: p.DescriptionOf(),
		Position:    p.PositionOf(),
	}
}

// NormalizeUser builds a canonical User from a wire payload.
func NormalizeUser(p payload) User {
	return User{
		ID:    p.firstID("ID", "id", "UserID", "userId", "user_id"),
		Name:  p.firstString("Name", "name"),
		Email: p.firstString("Email", "email"),
	}
}

// NormalizeMember builds a canonical Member from a wire payload.
func NormalizeMember(p payload, fallbackBoardID string) Member {
	boardID := p.OwningBoardID()
	if boardID == "" {
		boardID = fallbackBoardID
	}
	role := RoleMember
	if r := Role(p.firstString("role", "Role")); r.Validate() == nil {
		role = r
	}
	return Member{
		BoardID: boardID,
		UserID:  p.UserIDOf(),
		Name:    p.firstString("name", "Name"),
		Email:   p.firstString("email", "Email"),
		Role:    role,
	}
}
