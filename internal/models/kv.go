package models

import (
	"strings"
	"time"
)

// KV is a namespaced string value kept in the local database. The session
// lives in the "session" namespace as the user, role and userId keys.
type KV struct {
	ID        string    `json:"id"`
	Namespace string    `json:"namespace"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate rejects blank namespaces, keys and values. An empty value is
// never stored; callers delete the namespace instead.
func (kv *KV) Validate() error {
	problems := &ValidationErrors{}
	for _, field := range [][2]string{
		{"namespace", strings.TrimSpace(kv.Namespace)},
		{"key", strings.TrimSpace(kv.Key)},
		{"value", kv.Value},
	} {
		if field[1] == "" {
			problems.Add(field[0], ErrRequired)
		}
	}
	return problems.Err()
}
