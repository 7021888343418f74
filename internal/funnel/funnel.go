// Package funnel drives the scripted conversation that walks a new recipient
// from the entry command to the final offer.
//
// The graph is fixed and small. Instead of branching on raw callback strings,
// transitions live in an explicit table (event -> outcome), one table per
// variant, so an event that is not part of the active graph simply has no
// entry and is ignored.
package funnel

import (
	"context"
	"strings"
	"time"

	"funnelbot/internal/copydeck"
	"funnelbot/internal/store"
	kit "funnelbot/internal/transport"
	logx "funnelbot/pkg/logx"
	"funnelbot/pkg/tgui"
)

// Variant selects which of the two fixed funnel graphs is active. The graphs
// are alternatives: behavior from one never leaks into the other.
type Variant string

const (
	// VariantGeo starts with a geography choice, then the age gate, then the
	// prior-account question.
	VariantGeo Variant = "geo"
	// VariantGoal starts directly with the age gate, then a financial-goal
	// choice that is persisted on the recipient.
	VariantGoal Variant = "goal"
)

type event int

const (
	evGeo event = iota
	evAgeYes
	evAgeNo
	evAccYes
	evAccNo
	evGoal
)

type offerMode int

const (
	offerNone offerMode = iota
	offerImmediate
	offerDelayed
)

type outcome struct {
	edit     prompt // edit the originating message into this prompt (promptNone = keep)
	send     prompt // plain follow-up message (promptNone = none)
	offer    offerMode
	saveGoal bool
}

var geoGraph = map[event]outcome{
	evGeo:    {edit: promptAge},
	evAgeYes: {edit: promptAccount},
	evAgeNo:  {send: promptDenied},
	evAccYes: {send: promptAccountHad, offer: offerImmediate},
	evAccNo:  {send: promptAccountNew, offer: offerImmediate},
}

var goalGraph = map[event]outcome{
	evAgeYes: {edit: promptGoal},
	evAgeNo:  {send: promptDenied},
	evGoal:   {send: promptGoalAck, offer: offerDelayed, saveGoal: true},
}

// offerDelay separates the goal acknowledgement from the offer so the two
// read as distinct messages. Variable so tests can shorten it.
var offerDelay = 1500 * time.Millisecond

type Machine struct {
	variant Variant
	deck    *copydeck.Service
	st      store.Store
	adapter kit.Adapter
	link    string
	log     logx.Logger

	graph map[event]outcome
}

func New(variant Variant, deck *copydeck.Service, st store.Store, adapter kit.Adapter, partnerLink string, log logx.Logger) *Machine {
	if log.IsZero() {
		log = logx.Nop()
	}
	g := geoGraph
	if variant == VariantGoal {
		g = goalGraph
	}
	return &Machine{
		variant: variant,
		deck:    deck,
		st:      st,
		adapter: adapter,
		link:    partnerLink,
		log:     log,
		graph:   g,
	}
}

// Start handles the entry command: upserts the recipient (the one write
// allowed to re-enable delivery) and sends the variant's entry prompt.
// Re-entering always resets the visible prompt but never clears the
// recipient's recorded goal.
func (m *Machine) Start(ctx context.Context, msg *kit.Message) error {
	if err := m.st.Enroll(ctx, store.Profile{
		ID:        msg.FromID,
		FirstName: msg.FromFirstName,
		Username:  msg.FromUsername,
	}); err != nil {
		// The prompt still goes out; the recipient can be re-enrolled on the
		// next entry command.
		m.log.Warn("enroll failed", logx.Int64("id", msg.FromID), logx.Err(err))
	}

	deck := m.deck.Get()
	text, markup := m.entryPrompt(deck)
	_, err := m.adapter.SendText(ctx, kit.ChatTarget{ChatID: msg.ChatID}, text, &kit.SendOptions{
		ParseMode:          "HTML",
		ReplyMarkupAdapter: markup,
	})
	return err
}

// HandleCallback advances the funnel by one transition. Unrecognized tags and
// tags outside the active graph are ignored silently: no state change, no
// reply.
func (m *Machine) HandleCallback(ctx context.Context, cb *kit.Callback) error {
	ev, goal, ok := m.resolve(cb.Data)
	if !ok {
		return nil
	}
	out, ok := m.graph[ev]
	if !ok {
		return nil
	}

	deck := m.deck.Get()
	chat := kit.ChatTarget{ChatID: cb.ChatID}

	if out.saveGoal {
		if err := m.st.SetGoal(ctx, cb.FromID, goal); err != nil {
			// Accounting only; the conversation continues either way.
			m.log.Warn("goal save failed", logx.Int64("id", cb.FromID), logx.Err(err))
		}
	}

	if out.edit != promptNone {
		text, markup := m.render(deck, out.edit)
		ref := kit.MessageRef{ChatID: cb.ChatID, MessageID: cb.MessageID}
		if err := m.adapter.EditText(ctx, ref, text, &kit.SendOptions{ParseMode: "HTML", ReplyMarkupAdapter: markup}); err != nil {
			return err
		}
	}

	if out.send != promptNone {
		text, markup := m.render(deck, out.send)
		if _, err := m.adapter.SendText(ctx, chat, text, &kit.SendOptions{ParseMode: "HTML", ReplyMarkupAdapter: markup}); err != nil {
			return err
		}
	}

	switch out.offer {
	case offerImmediate:
		return m.SendOffer(ctx, chat)
	case offerDelayed:
		t := time.NewTimer(offerDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		return m.SendOffer(ctx, chat)
	}
	return nil
}

// SendOffer sends the final templated offer. It is the terminal, re-enterable
// funnel state, and is also reachable directly via the shortcut command
// regardless of funnel position.
func (m *Machine) SendOffer(ctx context.Context, chat kit.ChatTarget) error {
	deck := m.deck.Get()
	text := renderOffer(deck, m.link)
	_, err := m.adapter.SendText(ctx, chat, text, &kit.SendOptions{
		ParseMode:      "HTML",
		DisablePreview: true,
	})
	return err
}

// resolve maps a raw callback tag onto a funnel event. For goal tags it also
// checks the tag against the deck's configured choices, so a stale button
// from an older deck cannot record an unknown goal.
func (m *Machine) resolve(tag string) (event, string, bool) {
	switch tag {
	case "age_yes":
		return evAgeYes, "", true
	case "age_no":
		return evAgeNo, "", true
	case "acc_yes":
		return evAccYes, "", true
	case "acc_no":
		return evAccNo, "", true
	}
	if strings.HasPrefix(tag, "geo_") {
		return evGeo, "", true
	}
	if strings.HasPrefix(tag, "goal_") {
		goal := strings.TrimPrefix(tag, "goal_")
		for _, c := range m.deck.Get().GoalChoices {
			if c.Tag == tag {
				return evGoal, goal, true
			}
		}
	}
	return 0, "", false
}

func (m *Machine) entryPrompt(deck copydeck.Deck) (string, any) {
	if m.variant == VariantGoal {
		// This variant goes straight to the age gate.
		text := deck.Greeting
		if i := strings.IndexByte(text, '\n'); i > 0 {
			text = text[:i]
		}
		ageText, markup := m.render(deck, promptAge)
		return text + "\n\n" + ageText, markup
	}

	kb := tgui.NewInline()
	for i := 0; i < len(deck.GeoChoices); i += 2 {
		if i+1 < len(deck.GeoChoices) {
			kb.Row(
				tgui.Btn(deck.GeoChoices[i].Label, deck.GeoChoices[i].Tag),
				tgui.Btn(deck.GeoChoices[i+1].Label, deck.GeoChoices[i+1].Tag),
			)
		} else {
			kb.Row(tgui.Btn(deck.GeoChoices[i].Label, deck.GeoChoices[i].Tag))
		}
	}
	return deck.Greeting, kb.Markup()
}
