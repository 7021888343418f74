// Package transporttest provides a scripted in-memory Adapter for tests.
package transporttest

import (
	"context"
	"errors"
	"sync"

	kit "funnelbot/internal/transport"
)

// Sentinel errors for scripting delivery outcomes.
var (
	ErrBlocked = errors.New("recipient blocked the bot")
	ErrFlaky   = errors.New("temporary network failure")
)

type SentText struct {
	To   kit.ChatTarget
	Text string
	Opt  *kit.SendOptions
}

type EditedText struct {
	Ref  kit.MessageRef
	Text string
	Opt  *kit.SendOptions
}

type CopiedMessage struct {
	To  kit.ChatTarget
	Src kit.MessageRef
}

// Fake records every outbound operation and lets tests script per-recipient
// copy failures.
type Fake struct {
	mu     sync.Mutex
	texts  []SentText
	edits  []EditedText
	copies []CopiedMessage

	// CopyErr, when set, decides the outcome of each CopyMessage call.
	CopyErr func(to kit.ChatTarget) error
	// OnCopy, when set, runs before each copy attempt (e.g. to mutate the
	// store mid-run).
	OnCopy func(to kit.ChatTarget)
}

func New() *Fake { return &Fake{} }

func (f *Fake) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *Fake) Stop(context.Context) error                     { return nil }

func (f *Fake) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, SentText{To: to, Text: text, Opt: opt})
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.texts)}, nil
}

func (f *Fake) EditText(_ context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, EditedText{Ref: ref, Text: text, Opt: opt})
	return nil
}

func (f *Fake) CopyMessage(_ context.Context, to kit.ChatTarget, src kit.MessageRef) error {
	f.mu.Lock()
	onCopy := f.OnCopy
	copyErr := f.CopyErr
	f.mu.Unlock()

	if onCopy != nil {
		onCopy(to)
	}
	var err error
	if copyErr != nil {
		err = copyErr(to)
	}
	if err == nil {
		f.mu.Lock()
		f.copies = append(f.copies, CopiedMessage{To: to, Src: src})
		f.mu.Unlock()
	}
	return err
}

func (f *Fake) AnswerCallback(context.Context, string, string) error { return nil }

func (f *Fake) Classify(err error) kit.Delivery {
	switch {
	case err == nil:
		return kit.Delivered
	case errors.Is(err, ErrBlocked):
		return kit.Unreachable
	default:
		return kit.Transient
	}
}

func (f *Fake) Texts() []SentText {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentText(nil), f.texts...)
}

func (f *Fake) Edits() []EditedText {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]EditedText(nil), f.edits...)
}

func (f *Fake) Copies() []CopiedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CopiedMessage(nil), f.copies...)
}

// TextsTo returns the texts sent to one chat.
func (f *Fake) TextsTo(chatID int64) []SentText {
	var out []SentText
	for _, t := range f.Texts() {
		if t.To.ChatID == chatID {
			out = append(out, t)
		}
	}
	return out
}
