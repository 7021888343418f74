package transport

import "context"

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type Message struct {
	ID            int
	ChatID        int64
	FromID        int64
	FromUsername  string
	FromFirstName string
	Text          string
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	MessageID int
	Data      string
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode          string
	DisablePreview     bool
	ReplyMarkupAdapter any // adapter-specific markup (Telegram: *telebot.ReplyMarkup)
}

// Delivery is the classified outcome of one outbound send attempt.
// Broadcast policy is a pure function of this discriminant.
type Delivery int

const (
	Delivered Delivery = iota
	// Unreachable means the recipient can never be reached again on this
	// transport (blocked the bot, deactivated account, chat gone).
	Unreachable
	// Transient covers every other failure (network, flood limits, unknown).
	Transient
)

func (d Delivery) String() string {
	switch d {
	case Delivered:
		return "delivered"
	case Unreachable:
		return "unreachable"
	default:
		return "transient"
	}
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	// CopyMessage re-sends an existing message to another chat so rich or
	// forwarded content fans out faithfully (no "forwarded from" header).
	CopyMessage(ctx context.Context, to ChatTarget, src MessageRef) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error

	// Classify maps a send error to a Delivery discriminant. A nil error
	// classifies as Delivered.
	Classify(err error) Delivery
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface that adapters can implement to
// update platform-specific command menus. A zero scopeChatID targets the
// default (global) scope; a non-zero value targets that single chat.
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand, scopeChatID int64) error
}
