package kanban

import (
	"context"
	"fmt"
	"log/slog"
)

// SessionConfig carries everything needed to start a Session.
type SessionConfig struct {
	// APIURL is the REST base url, e.g. "https://host/api".
	APIURL string
	// WSURL is the websocket base url the board id is appended to,
	// e.g. "wss://host/ws/boards".
	WSURL string
	// Token authenticates both the REST calls and the websocket dial.
	Token string

	Logger *slog.Logger

	// OnDesync is invoked when a move notification's sibling count disagrees
	// with the local replica. Optional.
	OnDesync func(Desync)
	// OnEvicted is invoked when the client loses access to a board, either
	// because it was deleted or because this user was removed. Optional.
	OnEvicted func(boardID string)

	// ChannelOptions tune the transport, mainly for tests.
	ChannelOptions []ChannelOption
}

// Validate checks the config for the required fields.
func (c *SessionConfig) Validate() error {
	if c.APIURL == "" {
		return fmt.Errorf("api url is required")
	}
	if c.WSURL == "" {
		return fmt.Errorf("websocket url is required")
	}
	if c.Token == "" {
		return fmt.Errorf("token is required")
	}
	return nil
}

// Session is the client's coordination point: it owns the entity store, the
// REST client, the notification channel and the reconciler, and exposes the
// mutation operations. Every mutation follows the same discipline: validate
// locally, snapshot what the change touches, apply it optimistically, call
// the server, then commit the server's representation or restore the
// snapshot verbatim.
type Session struct {
	user    User
	store   *Store
	api     *APIClient
	bus     *Bus
	channel *Channel
	rec     *Reconciler
	log     *slog.Logger
}

// NewSession authenticates against the API, learns the caller's identity,
// and wires up the store, bus, channel and reconciler. The returned session
// is not yet connected to any board; call OpenBoard for that.
func NewSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	api := NewAPIClient(cfg.APIURL, cfg.Token, log)
	user, err := api.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("authenticating: %w", err)
	}
	if user.ID == "" {
		return nil, errKind(KindUnauthorized, "server returned no user identity", nil)
	}

	store := NewStore()
	bus := NewBus(log)
	channel := NewChannel(cfg.WSURL, cfg.Token, bus, log, cfg.ChannelOptions...)
	rec := NewReconciler(store, channel, user.ID, log, cfg.OnDesync, cfg.OnEvicted)
	rec.Start(bus)

	return &Session{
		user:    user,
		store:   store,
		api:     api,
		bus:     bus,
		channel: channel,
		rec:     rec,
		log:     log,
	}, nil
}

// User returns the authenticated user.
func (s *Session) User() User { return s.user }

// Store returns the session's entity store for reads.
func (s *Session) Store() *Store { return s.store }

// Bus returns the notification bus, for callers that want to observe raw
// events alongside the reconciler.
func (s *Session) Bus() *Bus { return s.bus }

// Channel returns the transport channel.
func (s *Session) Channel() *Channel { return s.channel }

// Close disconnects the channel, detaches the reconciler and empties the
// store.
func (s *Session) Close() {
	s.rec.Stop()
	s.channel.Disconnect()
	s.store.Reset()
}

// RefreshBoards fetches the user's boards partitioned by role and replaces
// the store's board partitions.
func (s *Session) RefreshBoards(ctx context.Context) error {
	owned, err := s.api.BoardsByRole(ctx, RoleOwner)
	if err != nil {
		return fmt.Errorf("fetching owned boards: %w", err)
	}
	member, err := s.api.BoardsByRole(ctx, RoleMember)
	if err != nil {
		return fmt.Errorf("fetching member boards: %w", err)
	}
	s.store.ReplaceBoardPartitions(owned, member)
	return nil
}

// OpenBoard loads a board's full subtree into the store, marks it active and
// connects the notification channel to it. Opening the already open board
// refetches state but keeps the existing connection.
func (s *Session) OpenBoard(ctx context.Context, boardID string) error {
	board, err := s.api.Board(ctx, boardID)
	if err != nil {
		return fmt.Errorf("fetching board %s: %w", boardID, err)
	}
	lists, err := s.api.Lists(ctx, boardID)
	if err != nil {
		return fmt.Errorf("fetching lists of board %s: %w", boardID, err)
	}
	cardsByList := make(map[string][]Card, len(lists))
	for _, l := range lists {
		cards, err := s.api.Cards(ctx, l.ID)
		if err != nil {
			return fmt.Errorf("fetching cards of list %s: %w", l.ID, err)
		}
		cardsByList[l.ID] = cards
	}
	members, err := s.api.Members(ctx, boardID)
	if err != nil {
		return fmt.Errorf("fetching members of board %s: %w", boardID, err)
	}

	if board.OwnerID == "" {
		for _, m := range members {
			if m.Role == RoleOwner {
				board.OwnerID = m.UserID
				break
			}
		}
	}
	if board.OwnerID == s.user.ID {
		board.Role = RoleOwner
	}

	s.store.PutBoard(board)
	s.store.ReplaceLists(boardID, lists)
	for listID, cards := range cardsByList {
		s.store.ReplaceCards(listID, cards)
	}
	s.store.ReplaceMembers(boardID, members)
	s.store.SetActiveBoard(boardID)

	if err := s.channel.Connect(boardID); err != nil {
		// state is loaded and usable; the channel will retry on its own
		s.log.Warn("board opened without live channel", "board", boardID, "error", err)
	}
	return nil
}

// CloseBoard disconnects the channel and clears the active board marker.
// The board's entities stay in the store.
func (s *Session) CloseBoard() {
	s.channel.Disconnect()
	s.store.SetActiveBoard("")
}

// isOwner reports whether the session user owns the board.
func (s *Session) isOwner(boardID string) bool {
	return s.store.IsOwner(boardID, s.user.ID)
}
