package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusTimeout   = "timeout"
	StatusCanceled  = "canceled"
)

// statusRank orders the lifecycle: queued < running < terminal. Unknown
// statuses rank below everything so they can never be transitioned into.
func statusRank(status string) int {
	switch status {
	case StatusQueued:
		return 0
	case StatusRunning:
		return 1
	case StatusSucceeded, StatusFailed, StatusTimeout, StatusCanceled:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether moving from one status to another respects
// the monotonic ordering. Terminal states accept no further transitions.
func CanTransition(from, to string) bool {
	fromRank := statusRank(from)
	toRank := statusRank(to)
	if fromRank < 0 || toRank < 0 {
		return false
	}
	return toRank > fromRank
}

type Record struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	ToolName       string    `json:"tool_name"`
	Status         string    `json:"status"`
	Request        string    `json:"request"`
	Response       string    `json:"response,omitempty"`
	ErrorText      string    `json:"error_text,omitempty"`
	DedupeKey      string    `json:"dedupe_key"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Registry records orchestration invocations and collapses duplicates. All
// writes are best-effort from the orchestrator's point of view: callers warn
// on error and proceed with the search.
type Registry struct {
	client *redis.Client
	window time.Duration
	ttl    time.Duration
}

func New(client *redis.Client, dedupeWindow, recordTTL time.Duration) *Registry {
	return &Registry{
		client: client,
		window: dedupeWindow,
		ttl:    recordTTL,
	}
}

func recordKey(id string) string {
	return "toolcall:" + id
}

func dedupeGuardKey(key string) string {
	return "toolcall:dedupe:" + key
}

func conversationKey(conversationID string) string {
	return "toolcall:conversation:" + conversationID
}

// RecordOrBind registers a new queued call, or binds to the live call that
// already owns the dedupe key. The SetNX guard makes the insert-if-absent
// advisory: a racing pair that both construct the key do the same idempotent
// work, which is acceptable.
func (r *Registry) RecordOrBind(ctx context.Context, conversationID, toolName string, request any) (callID string, isNew bool, err error) {
	key := DedupeKey(conversationID, toolName, request)
	id := uuid.NewString()

	ok, err := r.client.SetNX(ctx, dedupeGuardKey(key), id, r.window).Result()
	if err != nil {
		return "", false, fmt.Errorf("dedupe guard: %w", err)
	}
	if !ok {
		existing, err := r.client.Get(ctx, dedupeGuardKey(key)).Result()
		if err != nil {
			return "", false, fmt.Errorf("dedupe lookup: %w", err)
		}
		return existing, false, nil
	}

	reqJSON, _ := json.Marshal(request)
	now := time.Now().UTC()

	fields := map[string]any{
		"id":              id,
		"conversation_id": conversationID,
		"tool_name":       toolName,
		"status":          StatusQueued,
		"request":         string(reqJSON),
		"dedupe_key":      key,
		"created_at":      now.Format(time.RFC3339Nano),
		"updated_at":      now.Format(time.RFC3339Nano),
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, recordKey(id), fields)
	pipe.Expire(ctx, recordKey(id), r.ttl)
	pipe.RPush(ctx, conversationKey(conversationID), id)
	pipe.Expire(ctx, conversationKey(conversationID), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", false, fmt.Errorf("insert record: %w", err)
	}

	return id, true, nil
}

// Transition advances a record's status. Out-of-order transitions are
// rejected with an error the caller logs; they are never fatal to a search.
func (r *Registry) Transition(ctx context.Context, callID, status string, payload []byte) error {
	current, err := r.client.HGet(ctx, recordKey(callID), "status").Result()
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}

	if !CanTransition(current, status) {
		return fmt.Errorf("invalid transition %s -> %s for call %s", current, status, callID)
	}

	fields := map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}
	switch status {
	case StatusSucceeded:
		fields["response"] = string(payload)
	case StatusFailed, StatusTimeout, StatusCanceled:
		fields["error_text"] = string(payload)
	}

	if err := r.client.HSet(ctx, recordKey(callID), fields).Err(); err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return nil
}

// Get returns one record by call id, or redis.Nil if it never existed or
// aged out.
func (r *Registry) Get(ctx context.Context, callID string) (*Record, error) {
	raw, err := r.client.HGetAll(ctx, recordKey(callID)).Result()
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, redis.Nil
	}
	return recordFromHash(raw), nil
}

// ByConversation lists a conversation's calls in insertion order for audit.
func (r *Registry) ByConversation(ctx context.Context, conversationID string) ([]Record, error) {
	ids, err := r.client.LRange(ctx, conversationKey(conversationID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		rec, err := r.Get(ctx, id)
		if err != nil {
			continue
		}
		records = append(records, *rec)
	}
	return records, nil
}

func recordFromHash(raw map[string]string) *Record {
	created, _ := time.Parse(time.RFC3339Nano, raw["created_at"])
	updated, _ := time.Parse(time.RFC3339Nano, raw["updated_at"])
	return &Record{
		ID:             raw["id"],
		ConversationID: raw["conversation_id"],
		ToolName:       raw["tool_name"],
		Status:         raw["status"],
		Request:        raw["request"],
		Response:       raw["response"],
		ErrorText:      raw["error_text"],
		DedupeKey:      raw["dedupe_key"],
		CreatedAt:      created,
		UpdatedAt:      updated,
	}
}
