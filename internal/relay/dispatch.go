package relay

import (
	"context"
	"encoding/json"

	userentity "github.com/parleyhq/service-social-go/internal/user/entity"
)

// dispatch answers one inbound message. It never panics out: a recover
// guard turns anything unexpected into a logged warning so the read loop
// survives.
func (c *Client) dispatch(env *inboundEnvelope) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorw("relay dispatch panicked", "recover", r)
		}
	}()

	var req request
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		c.logger.Warnw("relay payload undecodable", "err", err)
		return
	}
	if req.Type != TypeRequest {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	switch req.Action {
	case ActionVerifyToken:
		c.handleVerifyToken(ctx, &req)
	case ActionFetchUserData:
		c.handleFetchUserData(ctx, &req)
	default:
		c.logger.Warnw("relay request with unknown action", "action", req.Action)
	}
}

// handleVerifyToken runs the shared authentication procedure on the token
// and replies valid/invalid plus the owning user id. Any failure, auth or
// storage, degrades to an invalid verdict.
func (c *Client) handleVerifyToken(ctx context.Context, req *request) {
	identity, err := c.guard.AuthenticateToken(ctx, req.Token)
	payload := map[string]any{
		"type":   TypeResponse,
		"action": ActionVerifyToken,
		"token":  req.Token,
	}
	if err != nil {
		payload["valid"] = false
		payload["userId"] = nil
	} else {
		payload["valid"] = true
		payload["userId"] = identity.UserID
	}
	c.send(payload)
}

// handleFetchUserData replies with the public projection of the user's
// current friends. Failures degrade to an empty list.
func (c *Client) handleFetchUserData(ctx context.Context, req *request) {
	friends, err := c.friends.ListFriends(ctx, req.UserID)
	if err != nil {
		c.logger.Warnw("relay fetch user data failed", "err", err, "user_id", req.UserID)
		friends = nil
	}
	if friends == nil {
		friends = []userentity.PublicProfile{}
	}
	c.send(map[string]any{
		"type":   TypeResponse,
		"action": ActionFetchUserData,
		"userId": req.UserID,
		"data":   friends,
	})
}
