package friend

import (
	"context"
	"database/sql"
	"sort"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/service-social-go/internal/friend/entity"
	userentity "github.com/parleyhq/service-social-go/internal/user/entity"
)

// fakeRepo is an in-memory Repository with the same state shape as the SQL
// one: directional request rows plus two directed rows per friendship.
type fakeRepo struct {
	users     map[string]string // id -> username
	requests  map[string]*entity.FriendRequest
	edges     map[[2]string]bool // [user, friend]
	createErr error
}

func newFakeRepo(users ...string) *fakeRepo {
	f := &fakeRepo{
		users:    map[string]string{},
		requests: map[string]*entity.FriendRequest{},
		edges:    map[[2]string]bool{},
	}
	for _, u := range users {
		f.users[u] = "name-" + u
	}
	return f
}

func (f *fakeRepo) UserExists(_ context.Context, id string) (bool, error) {
	_, ok := f.users[id]
	return ok, nil
}

func (f *fakeRepo) CreateRequest(_ context.Context, req *entity.FriendRequest) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *req
	f.requests[req.ID] = &cp
	return nil
}

func (f *fakeRepo) GetRequestByDirection(_ context.Context, fromID, toID string) (*entity.FriendRequest, error) {
	for _, r := range f.requests {
		if r.FromUserID == fromID && r.ToUserID == toID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeRepo) PairRequestExists(_ context.Context, a, b string) (bool, error) {
	for _, r := range f.requests {
		if (r.FromUserID == a && r.ToUserID == b) || (r.FromUserID == b && r.ToUserID == a) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) DeleteRequest(_ context.Context, id string) error {
	delete(f.requests, id)
	return nil
}

func (f *fakeRepo) AcceptRequest(_ context.Context, req *entity.FriendRequest) error {
	delete(f.requests, req.ID)
	f.edges[[2]string{req.FromUserID, req.ToUserID}] = true
	f.edges[[2]string{req.ToUserID, req.FromUserID}] = true
	return nil
}

func (f *fakeRepo) AreFriends(_ context.Context, a, b string) (bool, error) {
	return f.edges[[2]string{a, b}] && f.edges[[2]string{b, a}], nil
}

func (f *fakeRepo) DeleteFriendship(_ context.Context, a, b string) error {
	delete(f.edges, [2]string{a, b})
	delete(f.edges, [2]string{b, a})
	return nil
}

func (f *fakeRepo) ListFriends(_ context.Context, userID string) ([]userentity.PublicProfile, error) {
	out := []userentity.PublicProfile{}
	for edge := range f.edges {
		if edge[0] == userID {
			out = append(out, userentity.PublicProfile{ID: edge[1], Username: f.users[edge[1]]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (f *fakeRepo) ListRequests(_ context.Context, userID string) ([]entity.FriendRequest, error) {
	out := []entity.FriendRequest{}
	for _, r := range f.requests {
		if r.FromUserID == userID || r.ToUserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

// recordedEvent is one Notifier emission.
type recordedEvent struct {
	Client string
	Event  string
	Data   map[string]any
}

type recordingNotifier struct{ events []recordedEvent }

func (n *recordingNotifier) EmitEvent(client, event string, data map[string]any) {
	n.events = append(n.events, recordedEvent{Client: client, Event: event, Data: data})
}

func (n *recordingNotifier) reset() { n.events = nil }

func (n *recordingNotifier) forClient(client string) []recordedEvent {
	var out []recordedEvent
	for _, e := range n.events {
		if e.Client == client {
			out = append(out, e)
		}
	}
	return out
}

func newTestSvc(users ...string) (*Service, *fakeRepo, *recordingNotifier) {
	repo := newFakeRepo(users...)
	notifier := &recordingNotifier{}
	return NewService(repo, notifier), repo, notifier
}

func TestSendRequest(t *testing.T) {
	t.Parallel()

	svc, repo, notifier := newTestSvc("alice", "bob")
	ctx := context.Background()

	req, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.NotEmpty(t, req.ID)
	assert.Equal(t, "alice", req.FromUserID)
	assert.Equal(t, "bob", req.ToUserID)
	assert.Equal(t, entity.RequestTypeFriend, req.Type)
	assert.Contains(t, repo.requests, req.ID)

	// one directed REQUEST_CREATE per party, labeled from its perspective
	require.Len(t, notifier.events, 2)
	sender := notifier.forClient("alice")
	require.Len(t, sender, 1)
	assert.Equal(t, EventRequestCreate, sender[0].Event)
	assert.Equal(t, DirectionOutgoing, sender[0].Data["direction"])
	assert.Equal(t, "alice", sender[0].Data["from"])
	assert.Equal(t, "bob", sender[0].Data["to"])

	receiver := notifier.forClient("bob")
	require.Len(t, receiver, 1)
	assert.Equal(t, EventRequestCreate, receiver[0].Event)
	assert.Equal(t, DirectionIncoming, receiver[0].Data["direction"])
}

func TestSendRequestRejections(t *testing.T) {
	t.Parallel()

	svc, _, notifier := newTestSvc("alice", "bob")
	ctx := context.Background()

	_, err := svc.SendRequest(ctx, "alice", "alice")
	assert.ErrorIs(t, err, ErrCannotSendRequestToSelf)

	_, err = svc.SendRequest(ctx, "alice", "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)

	assert.Empty(t, notifier.events, "rejections emit nothing")
}

func TestSendRequestDuplicateEitherDirection(t *testing.T) {
	t.Parallel()

	svc, _, notifier := newTestSvc("alice", "bob")
	ctx := context.Background()

	_, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	notifier.reset()

	_, err = svc.SendRequest(ctx, "alice", "bob")
	assert.ErrorIs(t, err, ErrRequestAlreadySent)

	// the reverse direction counts as the same pending pair
	_, err = svc.SendRequest(ctx, "bob", "alice")
	assert.ErrorIs(t, err, ErrRequestAlreadySent)

	assert.Empty(t, notifier.events)
}

func TestSendRequestUniqueIndexRace(t *testing.T) {
	t.Parallel()

	svc, repo, notifier := newTestSvc("alice", "bob")
	ctx := context.Background()

	// a concurrent insert slipped between the existence check and ours
	repo.createErr = &pq.Error{Code: "23505", Constraint: "idx_friend_requests_pair"}
	_, err := svc.SendRequest(ctx, "alice", "bob")
	assert.ErrorIs(t, err, ErrRequestAlreadySent)
	assert.Empty(t, notifier.events)
}

func TestRespondAccept(t *testing.T) {
	t.Parallel()

	svc, repo, notifier := newTestSvc("alice", "bob")
	ctx := context.Background()

	_, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	notifier.reset()

	require.NoError(t, svc.Respond(ctx, "bob", "alice", true))

	assert.Empty(t, repo.requests, "accepted request is consumed")
	friends, err := repo.AreFriends(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, friends, "edge exists symmetrically")

	// two REQUEST_DELETE then two FRIEND_CREATE, one of each per party
	require.Len(t, notifier.events, 4)
	assert.Equal(t, EventRequestDelete, notifier.events[0].Event)
	assert.Equal(t, EventRequestDelete, notifier.events[1].Event)
	assert.Equal(t, EventFriendCreate, notifier.events[2].Event)
	assert.Equal(t, EventFriendCreate, notifier.events[3].Event)

	alice := notifier.forClient("alice")
	require.Len(t, alice, 2)
	assert.Equal(t, map[string]any{"userId": "bob"}, alice[1].Data)
	bob := notifier.forClient("bob")
	require.Len(t, bob, 2)
	assert.Equal(t, map[string]any{"userId": "alice"}, bob[1].Data)
}

func TestRespondIgnore(t *testing.T) {
	t.Parallel()

	svc, repo, notifier := newTestSvc("alice", "bob")
	ctx := context.Background()

	_, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	notifier.reset()

	require.NoError(t, svc.Respond(ctx, "bob", "alice", false))

	assert.Empty(t, repo.requests)
	friends, err := repo.AreFriends(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.False(t, friends, "ignoring never forms an edge")

	require.Len(t, notifier.events, 2)
	for _, e := range notifier.events {
		assert.Equal(t, EventRequestDelete, e.Event)
	}
}

func TestRespondWrongDirection(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestSvc("alice", "bob")
	ctx := context.Background()

	_, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)

	// the sender cannot answer their own request
	assert.ErrorIs(t, svc.Respond(ctx, "alice", "bob", true), ErrRequestNotFound)
}

func TestRespondMissing(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestSvc("alice", "bob")
	assert.ErrorIs(t, svc.Respond(context.Background(), "bob", "alice", true), ErrRequestNotFound)
}

func TestCancel(t *testing.T) {
	t.Parallel()

	svc, repo, notifier := newTestSvc("alice", "bob")
	ctx := context.Background()

	_, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	notifier.reset()

	require.NoError(t, svc.Cancel(ctx, "alice", "bob"))
	assert.Empty(t, repo.requests)
	require.Len(t, notifier.events, 2)
	for _, e := range notifier.events {
		assert.Equal(t, EventRequestDelete, e.Event)
	}

	// only the sender can cancel
	_, err = svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.ErrorIs(t, svc.Cancel(ctx, "bob", "alice"), ErrRequestNotFound)
}

func TestUnfriend(t *testing.T) {
	t.Parallel()

	svc, repo, notifier := newTestSvc("alice", "bob")
	ctx := context.Background()

	_, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	require.NoError(t, svc.Respond(ctx, "bob", "alice", true))
	notifier.reset()

	require.NoError(t, svc.Unfriend(ctx, "alice", "bob"))
	assert.Empty(t, repo.edges)

	require.Len(t, notifier.events, 2)
	alice := notifier.forClient("alice")
	require.Len(t, alice, 1)
	assert.Equal(t, EventFriendDelete, alice[0].Event)
	assert.Equal(t, map[string]any{"userId": "bob"}, alice[0].Data)
	bob := notifier.forClient("bob")
	require.Len(t, bob, 1)
	assert.Equal(t, map[string]any{"userId": "alice"}, bob[0].Data)

	// repeating fails the same way as never having been friends
	assert.ErrorIs(t, svc.Unfriend(ctx, "alice", "bob"), ErrFriendNotFound)
}

func TestUnfriendNotFriends(t *testing.T) {
	t.Parallel()

	svc, _, notifier := newTestSvc("alice", "bob")
	assert.ErrorIs(t, svc.Unfriend(context.Background(), "alice", "bob"), ErrFriendNotFound)
	assert.Empty(t, notifier.events)
}

func TestListFriendsAndRequests(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestSvc("alice", "bob", "carol")
	ctx := context.Background()

	_, err := svc.SendRequest(ctx, "alice", "bob")
	require.NoError(t, err)
	require.NoError(t, svc.Respond(ctx, "bob", "alice", true))
	_, err = svc.SendRequest(ctx, "carol", "alice")
	require.NoError(t, err)

	friends, err := svc.ListFriends(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "bob", friends[0].ID)
	assert.Equal(t, "name-bob", friends[0].Username)

	reqs, err := svc.ListRequests(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "carol", reqs[0].FromUserID)

	// bob sees no pending requests anymore
	reqs, err = svc.ListRequests(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, reqs)
}

func TestNilNotifierIsSafe(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo("alice", "bob")
	svc := NewService(repo, nil)

	_, err := svc.SendRequest(context.Background(), "alice", "bob")
	assert.NoError(t, err)
}
