// Package models defines the wire types shared by the xbase client and server.
package models

import (
	"encoding/json"
	"time"
)

// FileRef describes a stored file as listed by the directory service.
type FileRef struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	BucketURL string    `json:"bucket_url,omitempty"` // Storage locator: public URL or bucket-relative path.
	ParentID  string    `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// Folder is a directory service folder.
type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  string    `json:"parent_id,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

// UpdateResponse is returned by POST /api/files/update.
type UpdateResponse struct {
	Message string `json:"message"`
	Path    string `json:"path"`
}

// UploadResponse is returned by POST /api/upload.
type UploadResponse struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// ChatHistoryRequest is the body of POST /api/chat-history.
type ChatHistoryRequest struct {
	History []string `json:"history"`
}

// StatusResponse is a minimal acknowledgement.
type StatusResponse struct {
	Status string `json:"status"`
}

// Revision is one stored version of an object.
type Revision struct {
	Hash    string    `json:"hash"`
	Message string    `json:"message"`
	Author  string    `json:"author,omitempty"`
	Date    time.Time `json:"date"`
}

// HistoryResponse is returned by GET /api/files/history.
type HistoryResponse struct {
	Path      string     `json:"path"`
	Revisions []Revision `json:"revisions"`
}

// AskRequest is the body sent to the AI query service.
type AskRequest struct {
	DBInfo      string   `json:"db_info"`
	Query       string   `json:"query"`
	ChatHistory []string `json:"chat_history"`
	ParentID    string   `json:"parent_id"`
}

// Turn is one question and answer exchanged with the AI query service.
type Turn struct {
	ID          string            `json:"id"`
	Query       string            `json:"user_query"`
	Response    string            `json:"response"`
	Rows        []json.RawMessage `json:"image_box,omitempty"`
	ChatHistory []string          `json:"chat_history"`
	Created     time.Time         `json:"created"`
}

// Clone returns a deep copy of the turn.
func (t *Turn) Clone() *Turn {
	c := *t
	if t.Rows != nil {
		c.Rows = make([]json.RawMessage, len(t.Rows))
		for i, r := range t.Rows {
			c.Rows[i] = append(json.RawMessage(nil), r...)
		}
	}
	if t.ChatHistory != nil {
		c.ChatHistory = append([]string(nil), t.ChatHistory...)
	}
	return &c
}
