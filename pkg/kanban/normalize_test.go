package kanban

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPayload(t *testing.T, raw string) payload {
	t.Helper()
	p := decodePayload(json.RawMessage(raw))
	require.NotNil(t, p)
	return p
}

func TestDecodePayload(t *testing.T) {
	t.Run("malformed json yields nil", func(t *testing.T) {
		assert.Nil(t, decodePayload(json.RawMessage(`{"id":`)))
	})

	t.Run("non-object yields nil", func(t *testing.T) {
		assert.Nil(t, decodePayload(json.RawMessage(`[1,2,3]`)))
		assert.Nil(t, decodePayload(json.RawMessage(`"card_created"`)))
	})
}

func TestIDExtraction(t *testing.T) {
	t.Run("numeric ids coerce to decimal strings", func(t *testing.T) {
		p := mustPayload(t, `{"id": 42}`)
		assert.Equal(t, "42", p.BoardIDOf())
	})

	t.Run("board id prefers ID over lowercase id", func(t *testing.T) {
		p := mustPayload(t, `{"ID": "b1", "id": "wrong"}`)
		assert.Equal(t, "b1", p.BoardIDOf())
	})

	t.Run("list id prefers own id over list reference keys", func(t *testing.T) {
		p := mustPayload(t, `{"id": "l3", "listId": "other"}`)
		assert.Equal(t, "l3", p.ListIDOf())
	})

	t.Run("owning list never falls back to own id", func(t *testing.T) {
		p := mustPayload(t, `{"id": "c1"}`)
		assert.Equal(t, "", p.OwningListID())
	})

	t.Run("owning list accepts move destination key", func(t *testing.T) {
		p := mustPayload(t, `{"id": "c1", "toListId": 7}`)
		assert.Equal(t, "7", p.OwningListID())
	})

	t.Run("user id from snake case", func(t *testing.T) {
		p := mustPayload(t, `{"user_id": "u9"}`)
		assert.Equal(t, "u9", p.UserIDOf())
	})
}

func TestDescriptionExtraction(t *testing.T) {
	t.Run("plain string", func(t *testing.T) {
		p := mustPayload(t, `{"Description": "hello"}`)
		assert.Equal(t, "hello", p.DescriptionOf())
	})

	t.Run("nullable text object", func(t *testing.T) {
		p := mustPayload(t, `{"Description": {"String": "wrapped", "Valid": true}}`)
		assert.Equal(t, "wrapped", p.DescriptionOf())
	})

	t.Run("lowercase fallback", func(t *testing.T) {
		p := mustPayload(t, `{"description": "lower"}`)
		assert.Equal(t, "lower", p.DescriptionOf())
	})
}

func TestExpectedSiblingCount(t *testing.T) {
	t.Run("list count present", func(t *testing.T) {
		p := mustPayload(t, `{"_expectedListCount": 3}`)
		n, ok := p.ExpectedSiblingCount()
		assert.True(t, ok)
		assert.Equal(t, 3, n)
	})

	t.Run("absent", func(t *testing.T) {
		p := mustPayload(t, `{"position": 2}`)
		_, ok := p.ExpectedSiblingCount()
		assert.False(t, ok)
	})
}

func TestNormalizeEntities(t *testing.T) {
	t.Run("card with numeric ids and wrapped description", func(t *testing.T) {
		p := mustPayload(t, `{"ID": 5, "ListID": 2, "Title": "write docs",
			"Description": {"String": "draft", "Valid": true}, "Position": 1.5}`)
		c := NormalizeCard(p, "")
		assert.Equal(t, Card{ID: "5", ListID: "2", Title: "write docs", Description: "draft", Position: 1.5}, c)
	})

	t.Run("card falls back to the context list", func(t *testing.T) {
		p := mustPayload(t, `{"id": "c1", "title": "x"}`)
		c := NormalizeCard(p, "l7")
		assert.Equal(t, "l7", c.ListID)
	})

	t.Run("list with camelCase keys", func(t *testing.T) {
		p := mustPayload(t, `{"id": 9, "boardId": 4, "title": "Doing", "position": 2}`)
		l := NormalizeList(p, "")
		assert.Equal(t, List{ID: "9", BoardID: "4", Title: "Doing", Position: 2}, l)
	})

	t.Run("member role defaults to member on junk", func(t *testing.T) {
		p := mustPayload(t, `{"userId": "u1", "role": "superadmin"}`)
		m := NormalizeMember(p, "b1")
		assert.Equal(t, RoleMember, m.Role)
		assert.Equal(t, "b1", m.BoardID)
	})

	t.Run("board keeps a valid role", func(t *testing.T) {
		p := mustPayload(t, `{"id": "b1", "name": "Work", "role": "owner"}`)
		b := NormalizeBoard(p)
		assert.Equal(t, RoleOwner, b.Role)
	})

	t.Run("user identity", func(t *testing.T) {
		p := mustPayload(t, `{"id": 12, "name": "Ada", "email": "ada@example.com"}`)
		u := NormalizeUser(p)
		assert.Equal(t, User{ID: "12", Name: "Ada", Email: "ada@example.com"}, u)
	})
}
