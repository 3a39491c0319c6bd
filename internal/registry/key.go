package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// DedupeKey derives the stable identity of a logical tool call from the
// conversation, the tool, and the normalized request. Two invocations with
// the same key inside the active window are the same call.
func DedupeKey(conversationID, toolName string, request any) string {
	keyData := struct {
		ConversationID string `json:"conversation_id"`
		ToolName       string `json:"tool_name"`
		Request        any    `json:"request"`
	}{
		ConversationID: conversationID,
		ToolName:       toolName,
		Request:        request,
	}

	data, _ := json.Marshal(keyData)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
