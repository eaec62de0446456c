package kanban

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const apiTimeout = 10 * time.Second

// APIClient talks to the board server's REST API. Methods return entities
// already normalized into the canonical shapes; failures come back as *Error
// with the kind derived from the HTTP status or the transport fault.
type APIClient struct {
	baseURL string
	token   string
	http    *http.Client
	log     *slog.Logger
}

// NewAPIClient creates a client for the API at baseURL, authenticating every
// request with the bearer token.
func NewAPIClient(baseURL, token string, log *slog.Logger) *APIClient {
	if log == nil {
		log = slog.Default()
	}
	return &APIClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: apiTimeout},
		log:     log,
	}
}

// apiError is the error body shape the server sends alongside non-2xx
// statuses.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *APIClient) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, categorize(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, categorize(err)
	}

	if resp.StatusCode >= 400 {
		msg := fmt.Sprintf("%s %s returned %d", method, path, resp.StatusCode)
		var errBody apiError
		if json.Unmarshal(raw, &errBody) == nil {
			if errBody.Error != "" {
				msg = errBody.Error
			} else if errBody.Message != "" {
				msg = errBody.Message
			}
		}
		c.log.Debug("api request failed", "method", method, "path", path, "status", resp.StatusCode)
		return nil, &Error{Kind: kindFromStatus(resp.StatusCode), Message: msg, StatusCode: resp.StatusCode}
	}
	return raw, nil
}

func decodeOne(raw json.RawMessage) (payload, error) {
	p := decodePayload(raw)
	if p == nil {
		return nil, errKind(KindUnknown, "unexpected response shape", nil)
	}
	return p, nil
}

func decodeMany(raw json.RawMessage) ([]payload, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errKind(KindUnknown, "unexpected response shape", err)
	}
	out := make([]payload, 0, len(items))
	for _, item := range items {
		if p := decodePayload(item); p != nil {
			out = append(out, p)
		}
	}
	return out, nil
}

// Me returns the identity of the authenticated user.
func (c *APIClient) Me(ctx context.Context) (User, error) {
	raw, err := c.do(ctx, http.MethodGet, "/me", nil)
	if err != nil {
		return User{}, err
	}
	p, err := decodeOne(raw)
	if err != nil {
		return User{}, err
	}
	return NormalizeUser(p), nil
}

// Boards returns every board the user can see.
func (c *APIClient) Boards(ctx context.Context) ([]Board, error) {
	return c.fetchBoards(ctx, "/boards")
}

// BoardsByRole returns the boards where the user holds the given role.
func (c *APIClient) BoardsByRole(ctx context.Context, role Role) ([]Board, error) {
	if err := role.Validate(); err != nil {
		return nil, err
	}
	return c.fetchBoards(ctx, "/boards/by-role/"+string(role))
}

func (c *APIClient) fetchBoards(ctx context.Context, path string) ([]Board, error) {
	raw, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	payloads, err := decodeMany(raw)
	if err != nil {
		return nil, err
	}
	boards := make([]Board, 0, len(payloads))
	for _, p := range payloads {
		boards = append(boards, NormalizeBoard(p))
	}
	return boards, nil
}

// Board fetches one board.
func (c *APIClient) Board(ctx context.Context, boardID string) (Board, error) {
	raw, err := c.do(ctx, http.MethodGet, "/boards/"+url.PathEscape(boardID), nil)
	if err != nil {
		return Board{}, err
	}
	p, err := decodeOne(raw)
	if err != nil {
		return Board{}, err
	}
	return NormalizeBoard(p), nil
}

// CreateBoard creates a board owned by the caller.
func (c *APIClient) CreateBoard(ctx context.Context, name string) (Board, error) {
	raw, err := c.do(ctx, http.MethodPost, "/boards", map[string]any{"name": name})
	if err != nil {
		return Board{}, err
	}
	p, err := decodeOne(raw)
	if err != nil {
		return Board{}, err
	}
	return NormalizeBoard(p), nil
}

// UpdateBoard renames a board.
func (c *APIClient) UpdateBoard(ctx context.Context, boardID, name string) (Board, error) {
	raw, err := c.do(ctx, http.MethodPut, "/boards/"+url.PathEscape(boardID), map[string]any{"name": name})
	if err != nil {
		return Board{}, err
	}
	p, err := decodeOne(raw)
	if err != nil {
		return Board{}, err
	}
	return NormalizeBoard(p), nil
}

// DeleteBoard deletes a board and everything on it.
func (c *APIClient) DeleteBoard(ctx context.Context, boardID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/boards/"+url.PathEscape(boardID), nil)
	return err
}

// Lists returns a board's lists.
func (c *APIClient) Lists(ctx context.Context, boardID string) ([]List, error) {
	raw, err := c.do(ctx, http.MethodGet, "/boards/"+url.PathEscape(boardID)+"/lists", nil)
	if err != nil {
		return nil, err
	}
	payloads, err := decodeMany(raw)
	if err != nil {
		return nil, err
	}
	lists := make([]List, 0, len(payloads))
	for _, p := range payloads {
		lists = append(lists, NormalizeList(p, boardID))
	}
	return lists, nil
}

// CreateList creates a list on a board at the given position.
func (c *APIClient) CreateList(ctx context.Context, boardID, title string, position float64) (List, error) {
	raw, err := c.do(ctx, http.MethodPost, "/boards/"+url.PathEscape(boardID)+"/lists",
		map[string]any{"title": title, "position": position})
	if err != nil {
		return List{}, err
	}
	p, err := decodeOne(raw)
	if err != nil {
		return List{}, err
	}
	return NormalizeList(p, boardID), nil
}

// UpdateList renames a list.
func (c *APIClient) UpdateList(ctx context.Context, boardID, listID, title string) (List, error) {
	raw, err := c.do(ctx, http.MethodPut,
		"/boards/"+url.PathEscape(boardID)+"/lists/"+url.PathEscape(listID),
		map[string]any{"title": title})
	if err != nil {
		return List{}, err
	}
	p, err := decodeOne(raw)
	if err != nil {
		return List{}, err
	}
	return NormalizeList(p, boardID), nil
}

// MoveList repositions a list among its siblings.
func (c *APIClient) MoveList(ctx context.Context, boardID, listID string, position float64) (List, error) {
	raw, err := c.do(ctx, http.MethodPut,
		"/boards/"+url.PathEscape(boardID)+"/lists/"+url.PathEscape(listID)+"/move",
		map[string]any{"position": position})
	if err != nil {
		return List{}, err
	}
	p, err := decodeOne(raw)
	if err != nil {
		return List{}, err
	}
	return NormalizeList(p, boardID), nil
}

// DeleteList deletes a list and its cards.
func (c *APIClient) DeleteList(ctx context.Context, boardID, listID string) error {
	_, err := c.do(ctx, http.MethodDelete,
		"/boards/"+url.PathEscape(boardID)+"/lists/"+url.PathEscape(listID), nil)
	return err
}

// Cards returns a list's cards.
func (c *APIClient) Cards(ctx context.Context, listID string) ([]Card, error) {
	raw, err := c.do(ctx, http.MethodGet, "/lists/"+url.PathEscape(listID)+"/cards", nil)
	if err != nil {
		return nil, err
	}
	payloads, err := decodeMany(raw)
	if err != nil {
		return nil, err
	}
	cards := make([]Card, 0, len(payloads))
	for _, p := range payloads {
		cards = append(cards, NormalizeCard(p, listID))
	}
	return cards, nil
}

// CreateCard creates a card on a list at the given position.
func (c *APIClient) CreateCard(ctx context.Context, listID, title, description string, position float64) (Card, error) {
	raw, err := c.do(ctx, http.MethodPost, "/lists/"+url.PathEscape(listID)+"/cards",
		map[string]any{"title": title, "description": description, "position": position})
	if err != nil {
		return Card{}, err
	}
	p, err := decodeOne(raw)
	if err != nil {
		return Card{}, err
	}
	return NormalizeCard(p, listID), nil
}

// UpdateCard overwrites a card's title and/or description. nil fields are
// omitted from the request.
func (c *APIClient) UpdateCard(ctx context.Context, listID, cardID string, title, description *string) (Card, error) {
	updates := map[string]any{}
	if title != nil {
		updates["title"] = *title
	}
	if description != nil {
		updates["description"] = *description
	}
	raw, err := c.do(ctx, http.MethodPut,
		"/lists/"+url.PathEscape(listID)+"/cards/"+url.PathEscape(cardID), updates)
	if err != nil {
		return Card{}, err
	}
	p, err := decodeOne(raw)
	if err != nil {
		return Card{}, err
	}
	return NormalizeCard(p, listID), nil
}

// MoveCard repositions a card, possibly into a different list. toListID
// names the destination list.
func (c *APIClient) MoveCard(ctx context.Context, toListID, cardID string, position float64) error {
	_, err := c.do(ctx, http.MethodPut,
		"/lists/"+url.PathEscape(toListID)+"/cards/"+url.PathEscape(cardID)+"/move",
		map[string]any{"listId": toListID, "position": position})
	return err
}

// DeleteCard deletes a card.
func (c *APIClient) DeleteCard(ctx context.Context, listID, cardID string) error {
	_, err := c.do(ctx, http.MethodDelete,
		"/lists/"+url.PathEscape(listID)+"/cards/"+url.PathEscape(cardID), nil)
	return err
}

// DuplicateCard clones a card server-side and returns the copy.
func (c *APIClient) DuplicateCard(ctx context.Context, cardID string) (Card, error) {
	raw, err := c.do(ctx, http.MethodPost, "/cards/"+url.PathEscape(cardID)+"/duplicate", nil)
	if err != nil {
		return Card{}, err
	}
	p, err := decodeOne(raw)
	if err != nil {
		return Card{}, err
	}
	return NormalizeCard(p, ""), nil
}

// Members returns a board's members.
func (c *APIClient) Members(ctx context.Context, boardID string) ([]Member, error) {
	raw, err := c.do(ctx, http.MethodGet, "/boards/"+url.PathEscape(boardID)+"/members", nil)
	if err != nil {
		return nil, err
	}
	payloads, err := decodeMany(raw)
	if err != nil {
		return nil, err
	}
	members := make([]Member, 0, len(payloads))
	for _, p := range payloads {
		members = append(members, NormalizeMember(p, boardID))
	}
	return members, nil
}

// InviteMember invites a user to a board by email.
func (c *APIClient) InviteMember(ctx context.Context, boardID, email string, role Role) (Member, error) {
	if err := role.Validate(); err != nil {
		return Member{}, err
	}
	raw, err := c.do(ctx, http.MethodPost, "/boards/"+url.PathEscape(boardID)+"/members/invite",
		map[string]any{"email": email, "role": role})
	if err != nil {
		return Member{}, err
	}
	p, err := decodeOne(raw)
	if err != nil {
		return Member{}, err
	}
	return NormalizeMember(p, boardID), nil
}

// RemoveMember removes a user from a board.
func (c *APIClient) RemoveMember(ctx context.Context, boardID, userID string) error {
	_, err := c.do(ctx, http.MethodDelete,
		"/boards/"+url.PathEscape(boardID)+"/members/"+url.PathEscape(userID), nil)
	return err
}

// LeaveBoard removes the caller from a board they do not own.
func (c *APIClient) LeaveBoard(ctx context.Context, boardID string) error {
	_, err := c.do(ctx, http.MethodPost, "/boards/"+url.PathEscape(boardID)+"/members/leave", nil)
	return err
}
