package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voyago/flightsearch/internal/models"
)

// State holds a conversation's search context so a follow-up like "same
// route but business class" only has to name what changed.
type State struct {
	ConversationID string                      `json:"conversation_id"`
	LastSuccessful *models.FlightSearchRequest `json:"last_successful,omitempty"`
	Pending        *models.FlightSearchRequest `json:"pending,omitempty"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

// Merge overlays specified fields of next onto prev; unspecified fields
// persist. Pure so the overlay semantics are testable without redis.
func Merge(prev, next models.FlightSearchRequest) models.FlightSearchRequest {
	merged := prev

	if next.Origin != "" {
		merged.Origin = next.Origin
	}
	if next.Destination != "" {
		merged.Destination = next.Destination
	}
	if next.DepartureDate != "" {
		merged.DepartureDate = next.DepartureDate
	}
	if next.ReturnDate != nil {
		merged.ReturnDate = next.ReturnDate
	}
	if next.CabinClass != "" {
		merged.CabinClass = next.CabinClass
	}
	if next.Passengers > 0 {
		merged.Passengers = next.Passengers
	}
	if next.FlexibilityDays > 0 {
		merged.FlexibilityDays = next.FlexibilityDays
	}
	if next.MaxTaxes != nil {
		merged.MaxTaxes = next.MaxTaxes
	}
	if len(next.PreferredPrograms) > 0 {
		merged.PreferredPrograms = next.PreferredPrograms
	}
	// Booleans overlay directly: absent means false in the wire format, and
	// a follow-up that drops award_only genuinely turns it off.
	merged.AwardOnly = next.AwardOnly
	merged.NonStopOnly = next.NonStopOnly

	return merged
}

type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func stateKey(conversationID string) string {
	return "session:" + conversationID
}

// Get returns the conversation's state, or nil when no search has happened
// yet in this conversation.
func (s *Store) Get(ctx context.Context, conversationID string) (*State, error) {
	data, err := s.client.Get(ctx, stateKey(conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}
	return &state, nil
}

// SaveSuccessful merges params over the stored last-successful request and
// clears any pending request.
func (s *Store) SaveSuccessful(ctx context.Context, conversationID string, params models.FlightSearchRequest) error {
	state, err := s.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if state == nil {
		state = &State{ConversationID: conversationID}
	}

	merged := params
	if state.LastSuccessful != nil {
		merged = Merge(*state.LastSuccessful, params)
	}
	state.LastSuccessful = &merged
	state.Pending = nil

	return s.put(ctx, state)
}

// SavePending merges params over the stored pending request, keeping a
// partially specified follow-up around until it succeeds.
func (s *Store) SavePending(ctx context.Context, conversationID string, params models.FlightSearchRequest) error {
	state, err := s.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if state == nil {
		state = &State{ConversationID: conversationID}
	}

	merged := params
	if state.Pending != nil {
		merged = Merge(*state.Pending, params)
	}
	state.Pending = &merged

	return s.put(ctx, state)
}

// Delete removes a conversation's state; called only on conversation
// deletion.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	return s.client.Del(ctx, stateKey(conversationID)).Err()
}

func (s *Store) put(ctx context.Context, state *State) error {
	state.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	// No TTL: session state lives until the conversation is deleted.
	return s.client.Set(ctx, stateKey(state.ConversationID), data, 0).Err()
}
