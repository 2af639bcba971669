package database

import (
	"encoding/json"
	"fmt"
)

// rekeySnapshotJSON rewrites the user_id inside a stored snapshot
// document without touching the rest of it.
func rekeySnapshotJSON(raw, toUserID string) (string, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return "", fmt.Errorf("failed to parse snapshot document: %v", err)
	}
	id, err := json.Marshal(toUserID)
	if err != nil {
		return "", fmt.Errorf("failed to encode user id: %v", err)
	}
	doc["user_id"] = id
	out, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to re-encode snapshot document: %v", err)
	}
	return string(out), nil
}
