package kanban

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSessionFixture builds a session as user u1 (owner of the seeded board)
// against a canned API handler, with a disconnected channel.
func newSessionFixture(t *testing.T, handler http.HandlerFunc) *Session {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	bus := NewBus(nil)
	s := &Session{
		user:    User{ID: "u1", Name: "Owner", Email: "o@x.com"},
		store:   NewStore(),
		api:     NewAPIClient(srv.URL, "tok", nil),
		bus:     bus,
		channel: NewChannel("ws://unused/boards", "tok", bus, nil),
		log:     slog.Default(),
	}
	seedBoard(s.store)
	t.Cleanup(s.channel.Disconnect)
	return s
}

func failingAPI(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func echoEntity(w http.ResponseWriter, entity map[string]any) {
	json.NewEncoder(w).Encode(entity)
}

func TestNewSession(t *testing.T) {
	t.Run("learns the caller identity", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/me", r.URL.Path)
			echoEntity(w, map[string]any{"id": "u1", "name": "Ada"})
		}))
		defer srv.Close()

		s, err := NewSession(context.Background(), SessionConfig{
			APIURL: srv.URL, WSURL: "ws://unused/boards", Token: "tok",
		})
		require.NoError(t, err)
		defer s.Close()
		assert.Equal(t, "u1", s.User().ID)
	})

	t.Run("rejects a config missing the token", func(t *testing.T) {
		_, err := NewSession(context.Background(), SessionConfig{APIURL: "x", WSURL: "y"})
		assert.Error(t, err)
	})

	t.Run("surfaces authentication failure", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		_, err := NewSession(context.Background(), SessionConfig{
			APIURL: srv.URL, WSURL: "ws://unused/boards", Token: "bad",
		})
		assert.Equal(t, KindUnauthorized, KindOf(err))
	})
}

func TestMoveListOptimistic(t *testing.T) {
	ctx := context.Background()

	t.Run("second list to the front lands at half the first", func(t *testing.T) {
		var sentPosition float64
		s := newSessionFixture(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/boards/b1/lists/l2/move", r.URL.Path)
			var body map[string]float64
			json.NewDecoder(r.Body).Decode(&body)
			sentPosition = body["position"]
			echoEntity(w, map[string]any{"id": "l2", "boardId": "b1", "title": "Doing", "position": body["position"]})
		})

		require.NoError(t, s.MoveList(ctx, "l2", 0))

		assert.Equal(t, 0.5, sentPosition)
		assert.Equal(t, []string{"l2", "l1", "l3"}, listIDs(s.store.ListsByBoard("b1")))
	})

	t.Run("failure restores the whole sibling set verbatim", func(t *testing.T) {
		s := newSessionFixture(t, failingAPI(t))

		err := s.MoveList(ctx, "l2", 0)

		require.Error(t, err)
		assert.Equal(t, KindServer, KindOf(err))
		lists := s.store.ListsByBoard("b1")
		assert.Equal(t, []string{"l1", "l2", "l3"}, listIDs(lists))
		assert.Equal(t, []float64{1, 2, 3}, listPositions(lists))
	})

	t.Run("unknown list is rejected locally", func(t *testing.T) {
		s := newSessionFixture(t, failingAPI(t))
		assert.True(t, IsNotFound(s.MoveList(ctx, "nope", 0)))
	})
}

func TestCreateListOptimistic(t *testing.T) {
	ctx := context.Background()

	t.Run("commit swaps the provisional id for the server one", func(t *testing.T) {
		s := newSessionFixture(t, func(w http.ResponseWriter, r *http.Request) {
			echoEntity(w, map[string]any{"id": 99, "boardId": "b1", "title": "Review", "position": 4})
		})

		list, err := s.CreateList(ctx, "b1", "Review")

		require.NoError(t, err)
		assert.Equal(t, "99", list.ID)
		assert.Equal(t, 4.0, list.Position)
		assert.Equal(t, []string{"l1", "l2", "l3", "99"}, listIDs(s.store.ListsByBoard("b1")))
	})

	t.Run("failure removes the provisional list", func(t *testing.T) {
		s := newSessionFixture(t, failingAPI(t))

		_, err := s.CreateList(ctx, "b1", "Review")

		require.Error(t, err)
		assert.Equal(t, []string{"l1", "l2", "l3"}, listIDs(s.store.ListsByBoard("b1")))
	})
}

func TestCreateCardPositions(t *testing.T) {
	ctx := context.Background()
	s := newSessionFixture(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		echoEntity(w, map[string]any{"id": "srv", "listId": "l2", "title": body["title"], "position": body["position"]})
	})

	t.Run("empty list starts at 1", func(t *testing.T) {
		card, err := s.CreateCard(ctx, "l2", "first", "")
		require.NoError(t, err)
		assert.Equal(t, 1.0, card.Position)
	})

	t.Run("non-empty list appends after the maximum", func(t *testing.T) {
		positions := cardPositions(s.store.CardsByList("l1"))
		require.Equal(t, []float64{1, 2}, positions)

		// server echoes whatever position the client computed
		s2 := newSessionFixture(t, func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			echoEntity(w, map[string]any{"id": "srv2", "listId": "l1", "title": "t", "position": body["position"]})
		})
		card, err := s2.CreateCard(ctx, "l1", "t", "")
		require.NoError(t, err)
		assert.Equal(t, 3.0, card.Position)
	})
}

func TestMoveCardRollback(t *testing.T) {
	ctx := context.Background()
	s := newSessionFixture(t, failingAPI(t))
	s.store.ReplaceCards("l2", []Card{{ID: "c5", ListID: "l2", Title: "there", Position: 1}})

	err := s.MoveCard(ctx, "c1", "l2", 0)

	require.Error(t, err)
	assert.Equal(t, []string{"c1", "c2"}, cardIDs(s.store.CardsByList("l1")))
	assert.Equal(t, []string{"c5"}, cardIDs(s.store.CardsByList("l2")))
	c, _ := s.store.Card("c1")
	assert.Equal(t, "l1", c.ListID)
	assert.Equal(t, 1.0, c.Position)
}

func TestDeleteListRollback(t *testing.T) {
	s := newSessionFixture(t, failingAPI(t))

	err := s.DeleteList(context.Background(), "l1")

	require.Error(t, err)
	lists := s.store.ListsByBoard("b1")
	assert.Equal(t, []float64{1, 2, 3}, listPositions(lists))
	assert.Equal(t, []string{"c1", "c2"}, cardIDs(s.store.CardsByList("l1")))
}

func TestMemberGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("non-owner cannot remove members", func(t *testing.T) {
		s := newSessionFixture(t, failingAPI(t))
		s.user = User{ID: "u2"}
		err := s.RemoveMember(ctx, "b1", "u1")
		assert.True(t, IsForbidden(err))
		assert.Len(t, s.store.MembersByBoard("b1"), 2)
	})

	t.Run("owner cannot remove themselves", func(t *testing.T) {
		s := newSessionFixture(t, failingAPI(t))
		assert.True(t, IsForbidden(s.RemoveMember(ctx, "b1", "u1")))
	})

	t.Run("removal failure restores the member", func(t *testing.T) {
		s := newSessionFixture(t, failingAPI(t))
		err := s.RemoveMember(ctx, "b1", "u2")
		require.Error(t, err)
		assert.Equal(t, KindServer, KindOf(err))
		_, ok := s.store.Member("b1", "u2")
		assert.True(t, ok)
	})

	t.Run("duplicate invite rejected case-insensitively", func(t *testing.T) {
		s := newSessionFixture(t, failingAPI(t))
		_, err := s.InviteMember(ctx, "b1", "P@X.COM", RoleMember)
		assert.True(t, IsConflict(err))
	})

	t.Run("invite needs a plausible email", func(t *testing.T) {
		s := newSessionFixture(t, failingAPI(t))
		_, err := s.InviteMember(ctx, "b1", "not-an-email", RoleMember)
		assert.Equal(t, KindValidation, KindOf(err))
	})

	t.Run("owner cannot leave their own board", func(t *testing.T) {
		s := newSessionFixture(t, failingAPI(t))
		assert.True(t, IsForbidden(s.LeaveBoard(ctx, "b1")))
	})

	t.Run("leaving evicts the board locally", func(t *testing.T) {
		s := newSessionFixture(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/boards/b1/members/leave", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		})
		s.user = User{ID: "u2"}
		require.NoError(t, s.LeaveBoard(ctx, "b1"))
		_, ok := s.store.Board("b1")
		assert.False(t, ok)
	})
}

func TestRenameGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("only the owner renames the board", func(t *testing.T) {
		s := newSessionFixture(t, failingAPI(t))
		s.user = User{ID: "u2"}
		assert.True(t, IsForbidden(s.RenameBoard(ctx, "b1", "Nope")))
	})

	t.Run("rename failure rolls the name back", func(t *testing.T) {
		s := newSessionFixture(t, failingAPI(t))
		require.Error(t, s.RenameBoard(ctx, "b1", "Broken"))
		b, _ := s.store.Board("b1")
		assert.Equal(t, "Work", b.Name)
	})

	t.Run("list rename failure rolls the title back", func(t *testing.T) {
		s := newSessionFixture(t, failingAPI(t))
		require.Error(t, s.RenameList(ctx, "l1", "Broken"))
		l, _ := s.store.List("l1")
		assert.Equal(t, "Todo", l.Title)
	})
}

func TestOpenBoard(t *testing.T) {
	s := newSessionFixture(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/boards/b2":
			echoEntity(w, map[string]any{"id": "b2", "name": "Fresh"})
		case "/boards/b2/lists":
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": "l10", "boardId": "b2", "title": "Inbox", "position": 1},
			})
		case "/lists/l10/cards":
			json.NewEncoder(w).Encode([]map[string]any{
				{"id": "c10", "listId": "l10", "title": "hello", "position": 1},
			})
		case "/boards/b2/members":
			json.NewEncoder(w).Encode([]map[string]any{
				{"boardId": "b2", "userId": "u1", "role": "owner"},
			})
		default:
			http.NotFound(w, r)
		}
	})

	require.NoError(t, s.OpenBoard(context.Background(), "b2"))

	assert.Equal(t, "b2", s.store.ActiveBoard())
	b, ok := s.store.Board("b2")
	require.True(t, ok)
	assert.Equal(t, "u1", b.OwnerID)
	assert.Equal(t, RoleOwner, b.Role)
	assert.Equal(t, []string{"l10"}, listIDs(s.store.ListsByBoard("b2")))
	assert.Equal(t, []string{"c10"}, cardIDs(s.store.CardsByList("l10")))
	assert.True(t, s.store.IsOwner("b2", "u1"))
}
