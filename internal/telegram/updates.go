package telegram

import (
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// rawUpdate mirrors the wire shape of an update, reusing the library types
// for the parts it knows about.
type rawUpdate struct {
	UpdateID        int               `json:"update_id"`
	Message         *tgbotapi.Message `json:"message"`
	MessageReaction *reactionUpdate   `json:"message_reaction"`
}

type reactionUpdate struct {
	Chat        tgbotapi.Chat  `json:"chat"`
	MessageID   int            `json:"message_id"`
	User        *tgbotapi.User `json:"user"`
	Date        int64          `json:"date"`
	OldReaction []reactionKind `json:"old_reaction"`
	NewReaction []reactionKind `json:"new_reaction"`
}

type reactionKind struct {
	Type          string `json:"type"`
	Emoji         string `json:"emoji,omitempty"`
	CustomEmojiID string `json:"custom_emoji_id,omitempty"`
}

// event is the normalized union the dispatch loop switches on. The set is
// closed: a message was sent, or a reaction was added/removed.
type event interface {
	isEvent()
}

type messageEvent struct {
	chatID    int64
	userID    int64
	chat      string
	user      string
	username  string
	messageID string
	text      string
	command   string // without the leading slash; empty for plain messages
}

type reactionEvent struct {
	chatID    int64
	chat      string
	user      string
	username  string
	messageID string
	added     bool
}

func (messageEvent) isEvent()  {}
func (reactionEvent) isEvent() {}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return u.FirstName
}

// normalize maps a raw update onto the event union. Updates the ledger has
// no use for (joins, edits, empty users) drop here.
func normalize(u rawUpdate) (event, bool) {
	if u.Message != nil {
		msg := u.Message
		if msg.From == nil || msg.Chat == nil {
			return nil, false
		}
		ev := messageEvent{
			chatID:    msg.Chat.ID,
			userID:    msg.From.ID,
			chat:      strconv.FormatInt(msg.Chat.ID, 10),
			user:      strconv.FormatInt(msg.From.ID, 10),
			username:  displayName(msg.From),
			messageID: strconv.Itoa(msg.MessageID),
			text:      msg.Text,
		}
		if msg.IsCommand() {
			ev.command = msg.Command()
		}
		return ev, true
	}
	if u.MessageReaction != nil {
		r := u.MessageReaction
		if r.User == nil {
			// Anonymous (chat-level) reactions carry no user to credit.
			return nil, false
		}
		delta := len(r.NewReaction) - len(r.OldReaction)
		if delta == 0 {
			// Swapping one emoji for another changes no counts.
			return nil, false
		}
		return reactionEvent{
			chatID:    r.Chat.ID,
			chat:      strconv.FormatInt(r.Chat.ID, 10),
			user:      strconv.FormatInt(r.User.ID, 10),
			username:  displayName(r.User),
			messageID: strconv.Itoa(r.MessageID),
			added:     delta > 0,
		}, true
	}
	return nil, false
}
