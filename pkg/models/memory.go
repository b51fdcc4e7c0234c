package models

import "time"

// Memory is a persisted fact the agent stored about its user or its
// environment, retrievable later by substring or tag search.
type Memory struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Asset is a managed artifact (document, image, export) owned by an
// actor. Data holds small inline payloads; URI points at external
// storage for larger ones.
type Asset struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mime_type,omitempty"`
	URI       string    `json:"uri,omitempty"`
	Data      []byte    `json:"data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
