// Package signal implements the bridge's operations against a signal-cli
// daemon: sending to users and groups, listing groups, and waiting for
// incoming messages.
package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sigmcp/signal-mcp-go/internal/names"
	"github.com/sigmcp/signal-mcp-go/internal/relay"
	"github.com/sigmcp/signal-mcp-go/internal/rpc"
)

// MessageResponse is the bridge's view of one received message.
type MessageResponse struct {
	Message   string `json:"message,omitempty"`
	SenderID  string `json:"sender_id,omitempty"`
	GroupName string `json:"group_name,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Group describes one Signal group the account belongs to.
type Group struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Service exposes the bridge operations. Requests go over the JSON-RPC
// client; incoming messages come off the shared listener.
type Service struct {
	log      *slog.Logger
	client   *rpc.Client
	listener *relay.Listener
	names    *names.Cache
	account  string
}

// NewService wires the service to its daemon client, listener and cache.
func NewService(log *slog.Logger, client *rpc.Client, listener *relay.Listener, cache *names.Cache, account string) *Service {
	return &Service{
		log:      log.With("component", "signal"),
		client:   client,
		listener: listener,
		names:    cache,
		account:  account,
	}
}

// Listener returns the service's relay listener.
func (s *Service) Listener() *relay.Listener {
	return s.listener
}

// SendToUser sends a text message to a single recipient. Recipients in
// E.164 form ("+..." ) are passed through as-is; anything else is treated
// as a username.
func (s *Service) SendToUser(ctx context.Context, recipient, message string) error {
	params := map[string]any{
		"account": s.account,
		"message": message,
	}

	if strings.HasPrefix(recipient, "+") {
		params["recipient"] = []string{recipient}
	} else {
		params["username"] = []string{recipient}
	}

	if _, err := s.client.Call(ctx, "send", params); err != nil {
		return fmt.Errorf("send to %s: %w", recipient, err)
	}

	s.log.Info("message sent", "recipient", recipient)

	return nil
}

// SendToGroup sends a text message to a group by its base64 group id.
func (s *Service) SendToGroup(ctx context.Context, groupID, message string) error {
	params := map[string]any{
		"account": s.account,
		"groupId": groupID,
		"message": message,
	}

	if _, err := s.client.Call(ctx, "send", params); err != nil {
		return fmt.Errorf("send to group %s: %w", groupID, err)
	}

	s.log.Info("group message sent", "group_id", groupID)

	return nil
}

// ListGroups returns the groups the account is a member of.
func (s *Service) ListGroups(ctx context.Context) ([]Group, error) {
	result, err := s.client.Call(ctx, "listGroups", map[string]any{
		"account": s.account,
	})
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	var groups []Group
	if err := json.Unmarshal(result, &groups); err != nil {
		return nil, fmt.Errorf("decode group list: %w", err)
	}

	return groups, nil
}

// ReceiveMessage waits up to timeout for the next incoming message from
// anyone. A timeout is a normal outcome and reported in the response, not
// as an error.
func (s *Service) ReceiveMessage(ctx context.Context, timeout time.Duration) (*MessageResponse, error) {
	return s.waitFor(ctx, timeout, nil)
}

// WaitForMessage waits up to timeout for the next message matching the
// sender identifier. An empty identifier matches any sender. The
// identifier is resolved once, before waiting begins.
func (s *Service) WaitForMessage(ctx context.Context, fromUser string, timeout time.Duration) (*MessageResponse, error) {
	pred, err := s.senderPredicate(ctx, fromUser)
	if err != nil {
		return nil, err
	}

	return s.waitFor(ctx, timeout, pred)
}

func (s *Service) waitFor(ctx context.Context, timeout time.Duration, pred relay.Predicate) (*MessageResponse, error) {
	ev, err := s.listener.WaitFor(ctx, timeout, pred)
	if err != nil {
		return nil, err
	}

	if ev == nil {
		return &MessageResponse{
			Error: fmt.Sprintf("no message received within %s", timeout),
		}, nil
	}

	return s.buildResponse(ctx, ev), nil
}

// senderPredicate builds the event filter for one sender identifier.
//
// Identifiers starting with "+" are phone numbers and match envelope
// source fields directly. Anything else is treated as a display name and
// resolved to a UUID through the cache; when the cache has no mapping the
// raw identifier is still matched against the source fields so UUIDs
// passed verbatim keep working.
func (s *Service) senderPredicate(ctx context.Context, identifier string) (relay.Predicate, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil
	}

	resolved := ""

	if !strings.HasPrefix(identifier, "+") && s.names != nil {
		if uuid, ok := s.names.UUID(ctx, identifier); ok {
			resolved = uuid
			s.log.Debug("resolved sender", "identifier", identifier, "uuid", uuid)
		}
	}

	return func(ev *relay.Event) bool {
		env := &ev.Envelope

		for _, candidate := range []string{env.Source, env.SourceNumber, env.SourceUUID, env.SourceName} {
			if candidate != "" && candidate == identifier {
				return true
			}
		}

		return resolved != "" && env.SourceUUID == resolved
	}, nil
}

// buildResponse converts an event into the outward message shape and
// opportunistically caches any UUID to name mapping the envelope carries.
func (s *Service) buildResponse(ctx context.Context, ev *relay.Event) *MessageResponse {
	env := &ev.Envelope

	if s.names != nil && env.SourceUUID != "" && env.SourceName != "" {
		if err := s.names.Add(ctx, env.SourceUUID, env.SourceName); err != nil {
			s.log.Warn("failed to cache sender name", "error", err)
		}
	}

	senderID := env.Source
	if senderID == "" {
		senderID = env.SourceNumber
	}

	if senderID == "" {
		senderID = env.SourceUUID
	}

	return &MessageResponse{
		Message:   ev.Body(),
		SenderID:  senderID,
		GroupName: ev.GroupName(),
		Timestamp: env.Timestamp,
	}
}
