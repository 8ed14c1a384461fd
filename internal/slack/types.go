package slack

// Channel is a Slack conversation as returned by conversations.list/create.
// Identity is ID; Name can be renamed externally and is only used for lookup.
type Channel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsArchived bool   `json:"is_archived,omitempty"`
}

// Message is a single entry from conversations.history, newest first.
type Message struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype,omitempty"`
	Text    string `json:"text"`
	TS      string `json:"ts"`
	User    string `json:"user,omitempty"`
	// BotID is set when the message was posted by a bot or app integration.
	BotID string `json:"bot_id,omitempty"`
}

// FromBot reports whether the message was authored by a bot integration.
func (m Message) FromBot() bool { return m.BotID != "" }
