// Package assistant asks natural language questions about the user's files to
// the AI query service.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maruel/ksid"
	"github.com/maruel/xbase/internal/apiclient"
	"github.com/maruel/xbase/internal/jsonldb"
	"github.com/maruel/xbase/internal/models"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// Answer is the decoded reply of the AI query service.
type Answer struct {
	Response string
	Rows     []json.RawMessage
	// ChatHistory is nil when the service did not return one.
	ChatHistory []string
}

// Client is an AI query service client.
type Client struct {
	api *apiclient.Client
}

// New returns a client using api for transport.
func New(api *apiclient.Client) *Client {
	return &Client{api: api}
}

var (
	responsePath = jp.MustParseString("$.response")
	rowsPaths    = []jp.Expr{jp.MustParseString("$.image_box"), jp.MustParseString("$.images")}
	historyPath  = jp.MustParseString("$.chat_history")
)

// Ask sends req and decodes the answer.
func (c *Client) Ask(ctx context.Context, req *models.AskRequest) (*Answer, error) {
	if req.ChatHistory == nil {
		req.ChatHistory = []string{}
	}
	body, err := c.api.PostJSON(ctx, "/ask_ai", req)
	if err != nil {
		return nil, err
	}
	doc, err := oj.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode /ask_ai response: %w", err)
	}
	a := &Answer{}
	if res := responsePath.Get(doc); len(res) != 0 {
		a.Response, _ = res[0].(string)
	}
	for _, x := range rowsPaths {
		res := x.Get(doc)
		if len(res) == 0 {
			continue
		}
		arr, ok := res[0].([]any)
		if !ok {
			continue
		}
		a.Rows = make([]json.RawMessage, 0, len(arr))
		for _, v := range arr {
			a.Rows = append(a.Rows, json.RawMessage(oj.JSON(v)))
		}
		break
	}
	if res := historyPath.Get(doc); len(res) != 0 {
		if arr, ok := res[0].([]any); ok {
			a.ChatHistory = make([]string, 0, len(arr))
			for _, v := range arr {
				if s, ok := v.(string); ok {
					a.ChatHistory = append(a.ChatHistory, s)
				}
			}
		}
	}
	return a, nil
}

// RootResolver resolves the root folder of a user.
type RootResolver interface {
	Root(ctx context.Context, userID string) (string, error)
}

// HistorySaver stores the conversation history server side.
type HistorySaver interface {
	SaveHistory(ctx context.Context, history []string) error
}

// Conversation is a sequence of questions sharing a chat history. Turns are
// appended to a JSONL transcript.
type Conversation struct {
	Context Context

	client     *Client
	roots      RootResolver
	saver      HistorySaver
	userID     string
	parentID   string
	history    []string
	transcript *jsonldb.Table[*models.Turn]
}

// ConversationOptions configures a Conversation.
type ConversationOptions struct {
	// UserID is used to resolve ParentID when it is empty.
	UserID   string
	ParentID string
	Roots    RootResolver
	// Saver, when set, receives the chat history after each turn.
	Saver HistorySaver
	// Transcript is the JSONL file path. Empty disables persistence.
	Transcript string
}

// NewConversation returns a conversation. When the transcript already holds
// turns, the chat history of the last one is resumed.
func NewConversation(client *Client, opts ConversationOptions) (*Conversation, error) {
	c := &Conversation{
		client:   client,
		roots:    opts.Roots,
		saver:    opts.Saver,
		userID:   opts.UserID,
		parentID: opts.ParentID,
		history:  []string{},
	}
	if opts.Transcript != "" {
		t, err := jsonldb.NewTable[*models.Turn](opts.Transcript)
		if err != nil {
			return nil, err
		}
		c.transcript = t
		if last, ok := t.Last(); ok && last.ChatHistory != nil {
			c.history = last.ChatHistory
		}
	}
	return c, nil
}

// History returns the current chat history.
func (c *Conversation) History() []string {
	return append([]string(nil), c.history...)
}

// Reset clears the chat history and the transcript.
func (c *Conversation) Reset() error {
	c.history = []string{}
	if c.transcript != nil {
		return c.transcript.Replace(nil)
	}
	return nil
}

// Ask sends query with the current context and history.
func (c *Conversation) Ask(ctx context.Context, query string) (*models.Turn, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, &apiclient.InputError{Message: "empty query"}
	}
	if c.parentID == "" {
		if c.roots == nil || c.userID == "" {
			return nil, &apiclient.InputError{Message: "no parent folder: set a user id or a root id"}
		}
		id, err := c.roots.Root(ctx, c.userID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root folder: %w", err)
		}
		c.parentID = id
	}
	a, err := c.client.Ask(ctx, &models.AskRequest{
		DBInfo:      c.Context.DBInfo(),
		Query:       q,
		ChatHistory: c.history,
		ParentID:    c.parentID,
	})
	if err != nil {
		return nil, err
	}
	if a.ChatHistory != nil {
		c.history = a.ChatHistory
	}
	turn := &models.Turn{
		ID:          ksid.NewID().String(),
		Query:       q,
		Response:    a.Response,
		Rows:        a.Rows,
		ChatHistory: c.History(),
		Created:     time.Now().UTC(),
	}
	if c.transcript != nil {
		if err := c.transcript.Append(turn); err != nil {
			return nil, err
		}
	}
	if c.saver != nil {
		if err := c.saver.SaveHistory(ctx, c.history); err != nil {
			slog.WarnContext(ctx, "assistant", "msg", "failed to save chat history", "err", err)
		}
	}
	return turn, nil
}
