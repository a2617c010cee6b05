package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// MessageID is a 64-bit message identifier. It is stored as a bigint but
// serialized as a decimal string on the wire so JavaScript clients never
// see precision loss above 2^53.
type MessageID int64

// String returns the decimal representation used on the wire.
func (id MessageID) String() string { return strconv.FormatInt(int64(id), 10) }

// MarshalJSON serializes the id as a quoted decimal string.
func (id MessageID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.String() + `"`), nil
}

// UnmarshalJSON accepts both string and numeric forms.
func (id *MessageID) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid message id %q", string(data))
	}
	*id = MessageID(n)
	return nil
}

// ParseMessageID parses a decimal string id.
func ParseMessageID(s string) (MessageID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid message id %q", s)
	}
	return MessageID(n), nil
}

// MessageStatus enumerates the read state of a mailbox message.
type MessageStatus string

const (
	MessageUnread MessageStatus = "unread"
	MessageRead   MessageStatus = "read"
)

// Message is a directed, persistent, per-recipient mailbox message.
type Message struct {
	ID               MessageID       `json:"id" db:"id"`
	Recipient        string          `json:"recipient" db:"recipient"`
	Sender           string          `json:"sender" db:"sender"`
	Title            string          `json:"title" db:"title"`
	Body             string          `json:"body" db:"body"`
	Status           MessageStatus   `json:"status" db:"status"`
	Urgent           bool            `json:"urgent" db:"urgent"`
	ThreadID         *string         `json:"threadId" db:"thread_id"`
	ReplyToMessageID *MessageID      `json:"replyToMessageId" db:"reply_to_message_id"`
	DedupeKey        *string         `json:"dedupeKey,omitempty" db:"dedupe_key"`
	Metadata         json.RawMessage `json:"metadata" db:"metadata"`

	// Waiting flag: the recipient's explicit commitment to respond.
	// All three fields are set and cleared together.
	ResponseWaiting  bool       `json:"responseWaiting" db:"response_waiting"`
	WaitingResponder *string    `json:"waitingResponder" db:"waiting_responder"`
	WaitingSince     *time.Time `json:"waitingSince" db:"waiting_since"`

	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	ViewedAt  *time.Time `json:"viewedAt" db:"viewed_at"`
}

// ThreadKey returns the thread this message belongs to: its explicit
// thread_id when set, otherwise its own id stringified.
func (m *Message) ThreadKey() string {
	if m.ThreadID != nil && *m.ThreadID != "" {
		return *m.ThreadID
	}
	return m.ID.String()
}
