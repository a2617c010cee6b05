package mailbox

import (
	"github.com/hivehq/hive/internal/domain"
)

// MessageEvent announces a new message on the recipient's mailbox topic.
type MessageEvent struct {
	Type   string           `json:"type"` // "message"
	ID     domain.MessageID `json:"id"`
	Sender string           `json:"sender"`
	Title  string           `json:"title"`
	Urgent bool             `json:"urgent"`
}

// InboxCheckEvent tells other live sessions of the same user that the
// inbox was just consulted, so they can refresh badges.
type InboxCheckEvent struct {
	Type    string `json:"type"` // "inbox_check"
	Mailbox string `json:"mailbox"`
	Action  string `json:"action"` // "list", "ack", or "search"
}

// WaitingEvent notifies the original sender that the recipient committed
// to respond ("message_waiting") or released the commitment
// ("waiting_cleared").
type WaitingEvent struct {
	Type      string           `json:"type"`
	MessageID domain.MessageID `json:"messageId"`
	Responder string           `json:"responder"`
}
