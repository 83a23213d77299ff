// Package session materializes, persists, and resets per-(platform, chat,
// thread) conversation state. A SessionContext is looked up, reset-checked,
// mutated, and persisted under a per-key lock; cross-session operations
// never contend with each other.
package session

import (
	"time"

	"github.com/scarlettdetekelala/hermes-agent/internal/config"
)

// ChatType is the closed set of conversation shapes a SessionSource can have.
type ChatType string

const (
	ChatDM      ChatType = "dm"
	ChatGroup   ChatType = "group"
	ChatChannel ChatType = "channel"
	ChatThread  ChatType = "thread"
	ChatForum   ChatType = "forum"
)

// Source identifies a conversation endpoint.
type Source struct {
	Platform config.Platform `json:"platform"`
	ChatID   string          `json:"chat_id"`
	ChatName string          `json:"chat_name,omitempty"`
	ChatType ChatType        `json:"chat_type"`
	UserID   string          `json:"user_id,omitempty"`
	UserName string          `json:"user_name,omitempty"`
	ThreadID string          `json:"thread_id,omitempty"`
}

// Key is the identity of a conversation: (platform, chat_id, thread_id?).
type Key struct {
	Platform config.Platform
	ChatID   string
	ThreadID string
}

// String renders the key as the path-safe form used for the on-disk file
// name: "<chat_id>" or "<chat_id>_<thread_id>".
func (k Key) String() string {
	if k.ThreadID == "" {
		return k.ChatID
	}
	return k.ChatID + "_" + k.ThreadID
}

// KeyFromSource derives a session Key from a Source.
func KeyFromSource(s Source) Key {
	return Key{Platform: s.Platform, ChatID: s.ChatID, ThreadID: s.ThreadID}
}

// Entry is one agent-opaque turn of conversation history. Content is kept
// as a raw blob; the core never interprets it, only appends/truncates.
type Entry struct {
	Role     string                 `json:"role"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Context is the persistent conversation state for one session key.
//
// Invariants: LastActivityAt is strictly monotonically non-decreasing;
// History is append-only within a turn; Reset replaces the whole value
// atomically, it never mutates History in place.
type Context struct {
	Key            Key       `json:"-"`
	Source         Source    `json:"source"`
	History        []Entry   `json:"history"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	TurnCount      int       `json:"turn_count"`
}

// fresh builds a brand-new Context for source, stamped at now.
func fresh(key Key, source Source, now time.Time) *Context {
	return &Context{
		Key:            key,
		Source:         source,
		History:        nil,
		CreatedAt:      now,
		LastActivityAt: now,
		TurnCount:      0,
	}
}

// Clone returns a deep copy, so callers holding a snapshot never observe a
// concurrent mutation made by the owning store.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	cp := *c
	cp.History = append([]Entry(nil), c.History...)
	return &cp
}
