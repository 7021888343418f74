package funnel

import (
	"fmt"

	"funnelbot/internal/copydeck"
	"funnelbot/pkg/tgui"
)

type prompt int

const (
	promptNone prompt = iota
	promptAge
	promptAccount
	promptDenied
	promptAccountHad
	promptAccountNew
	promptGoal
	promptGoalAck
)

// render returns the prompt text and its inline keyboard (nil when the prompt
// has no buttons).
func (m *Machine) render(deck copydeck.Deck, p prompt) (string, any) {
	switch p {
	case promptAge:
		kb := tgui.NewInline().
			Row(tgui.Btn(deck.BtnAgeYes, "age_yes")).
			Row(tgui.Btn(deck.BtnAgeNo, "age_no"))
		return deck.AgePrompt, kb.Markup()
	case promptAccount:
		kb := tgui.NewInline().
			Row(tgui.Btn(deck.BtnAccYes, "acc_yes")).
			Row(tgui.Btn(deck.BtnAccNo, "acc_no"))
		return deck.AccountPrompt, kb.Markup()
	case promptDenied:
		return deck.AgeDenied, nil
	case promptAccountHad:
		return deck.AccountHad, nil
	case promptAccountNew:
		return deck.AccountNew, nil
	case promptGoal:
		kb := tgui.NewInline()
		for _, c := range deck.GoalChoices {
			kb.Row(tgui.Btn(c.Label, c.Tag))
		}
		return deck.GoalPrompt, kb.Markup()
	case promptGoalAck:
		return deck.GoalAck, nil
	}
	return "", nil
}

func renderOffer(deck copydeck.Deck, link string) string {
	anchor := tgui.Link("Open the partner site", link).String()
	return fmt.Sprintf(deck.FinalOffer, anchor)
}
