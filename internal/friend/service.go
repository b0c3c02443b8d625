package friend

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/parleyhq/service-social-go/internal/friend/entity"
	userentity "github.com/parleyhq/service-social-go/internal/user/entity"
	"github.com/parleyhq/service-social-go/pkg/utilities"
)

// Error messages double as the wire-level error codes surfaced to clients.
var (
	ErrCannotSendRequestToSelf = errors.New("CannotSendRequestToSelf")
	ErrRequestAlreadySent      = errors.New("RequestAlreadySent")
	ErrRequestNotFound         = errors.New("RequestNotFound")
	ErrFriendNotFound          = errors.New("FriendNotFound")
	ErrUserNotFound            = errors.New("UserNotFound")
)

// Gateway event names and the per-party direction labels.
const (
	EventFriendCreate  = "FRIEND_CREATE"
	EventFriendDelete  = "FRIEND_DELETE"
	EventRequestCreate = "REQUEST_CREATE"
	EventRequestDelete = "REQUEST_DELETE"

	DirectionOutgoing = "OUTGOING"
	DirectionIncoming = "INCOMING"
)

// Repository is the exact set of storage operations the ledger needs.
type Repository interface {
	UserExists(ctx context.Context, id string) (bool, error)
	CreateRequest(ctx context.Context, req *entity.FriendRequest) error
	GetRequestByDirection(ctx context.Context, fromID, toID string) (*entity.FriendRequest, error)
	PairRequestExists(ctx context.Context, a, b string) (bool, error)
	DeleteRequest(ctx context.Context, id string) error
	AcceptRequest(ctx context.Context, req *entity.FriendRequest) error
	AreFriends(ctx context.Context, a, b string) (bool, error)
	DeleteFriendship(ctx context.Context, a, b string) error
	ListFriends(ctx context.Context, userID string) ([]userentity.PublicProfile, error)
	ListRequests(ctx context.Context, userID string) ([]entity.FriendRequest, error)
}

// Notifier pushes directed events to the realtime gateway. Emission is fire
// and forget: implementations log and swallow transport failures, and the
// triggering mutation never rolls back because of them.
type Notifier interface {
	EmitEvent(client, event string, data map[string]any)
}

// Service is the friend-request / friendship state machine. For any
// unordered user pair the states are: no relation, one pending request
// (either direction), or friends.
type Service struct {
	repo     Repository
	notifier Notifier
}

func NewService(repo Repository, notifier Notifier) *Service {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Service{repo: repo, notifier: notifier}
}

// SetNotifier swaps the event sink. Called once at startup to break the
// construction cycle between the relay (which reads friend data for
// FETCH_USER_DATA) and this service (which emits events through the relay).
func (s *Service) SetNotifier(n Notifier) {
	if n != nil {
		s.notifier = n
	}
}

// noopNotifier drops events; in place until the relay is wired in.
type noopNotifier struct{}

func (noopNotifier) EmitEvent(string, string, map[string]any) {}

// SendRequest creates a pending request from one user to another and
// notifies both parties. A concurrent duplicate slipping past the existence
// check is caught by the pair unique index and surfaces as
// ErrRequestAlreadySent as well.
func (s *Service) SendRequest(ctx context.Context, fromID, toID string) (*entity.FriendRequest, error) {
	if fromID == toID {
		return nil, ErrCannotSendRequestToSelf
	}
	exists, err := s.repo.UserExists(ctx, toID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUserNotFound
	}
	already, err := s.repo.PairRequestExists(ctx, fromID, toID)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, ErrRequestAlreadySent
	}
	req := &entity.FriendRequest{
		ID:         utilities.NewSnowflakeID(),
		FromUserID: fromID,
		ToUserID:   toID,
		Type:       entity.RequestTypeFriend,
	}
	if err := s.repo.CreateRequest(ctx, req); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrRequestAlreadySent
		}
		return nil, err
	}
	s.emitRequestEvent(EventRequestCreate, req)
	return req, nil
}

// Respond handles an incoming request: the responder must be the `to` side,
// so the row is looked up by the sender's id. The request is deleted either
// way; accepting additionally forms the symmetric friendship edge.
func (s *Service) Respond(ctx context.Context, responderID, senderID string, accept bool) error {
	req, err := s.repo.GetRequestByDirection(ctx, senderID, responderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRequestNotFound
		}
		return err
	}
	if accept {
		if err := s.repo.AcceptRequest(ctx, req); err != nil {
			return err
		}
		s.emitRequestEvent(EventRequestDelete, req)
		s.notifier.EmitEvent(req.FromUserID, EventFriendCreate, map[string]any{"userId": req.ToUserID})
		s.notifier.EmitEvent(req.ToUserID, EventFriendCreate, map[string]any{"userId": req.FromUserID})
		return nil
	}
	if err := s.repo.DeleteRequest(ctx, req.ID); err != nil {
		return err
	}
	s.emitRequestEvent(EventRequestDelete, req)
	return nil
}

// Cancel withdraws an outgoing request: the caller must be the `from` side,
// so the row is looked up by the receiver's id.
func (s *Service) Cancel(ctx context.Context, callerID, receiverID string) error {
	req, err := s.repo.GetRequestByDirection(ctx, callerID, receiverID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRequestNotFound
		}
		return err
	}
	if err := s.repo.DeleteRequest(ctx, req.ID); err != nil {
		return err
	}
	s.emitRequestEvent(EventRequestDelete, req)
	return nil
}

// Unfriend tears down the friendship edge on both sides. The edge must be
// present symmetrically; repeating the call fails the same way instead of
// crashing.
func (s *Service) Unfriend(ctx context.Context, userID, friendID string) error {
	friends, err := s.repo.AreFriends(ctx, userID, friendID)
	if err != nil {
		return err
	}
	if !friends {
		return ErrFriendNotFound
	}
	if err := s.repo.DeleteFriendship(ctx, userID, friendID); err != nil {
		return err
	}
	s.notifier.EmitEvent(userID, EventFriendDelete, map[string]any{"userId": friendID})
	s.notifier.EmitEvent(friendID, EventFriendDelete, map[string]any{"userId": userID})
	return nil
}

// ListFriends returns the public projection of a user's friends.
func (s *Service) ListFriends(ctx context.Context, userID string) ([]userentity.PublicProfile, error) {
	return s.repo.ListFriends(ctx, userID)
}

// ListRequests returns pending requests involving a user.
func (s *Service) ListRequests(ctx context.Context, userID string) ([]entity.FriendRequest, error) {
	return s.repo.ListRequests(ctx, userID)
}

// emitRequestEvent sends one directed event per party, each labeled with
// that party's perspective on the request.
func (s *Service) emitRequestEvent(event string, req *entity.FriendRequest) {
	s.notifier.EmitEvent(req.FromUserID, event, map[string]any{
		"from": req.FromUserID, "to": req.ToUserID, "direction": DirectionOutgoing,
	})
	s.notifier.EmitEvent(req.ToUserID, event, map[string]any{
		"from": req.FromUserID, "to": req.ToUserID, "direction": DirectionIncoming,
	})
}
