// Package copydeck holds every user-visible message the bot sends.
//
// The literal marketing copy is a product concern, not a code concern: the
// deck ships with built-in defaults and can be overridden (fully or field by
// field) from a YAML file, hot-reloaded on change so copy edits never need a
// redeploy.
package copydeck

import (
	"fmt"
	"os"

	yaml "go.yaml.in/yaml/v3"
)

// Choice is one inline button of a funnel prompt: the callback tag it fires
// and the label shown to the user.
type Choice struct {
	Tag   string `yaml:"tag"`
	Label string `yaml:"label"`
}

type Deck struct {
	Greeting      string `yaml:"greeting"`
	AgePrompt     string `yaml:"age_prompt"`
	AgeDenied     string `yaml:"age_denied"`
	AccountPrompt string `yaml:"account_prompt"`
	AccountHad    string `yaml:"account_had"`
	AccountNew    string `yaml:"account_new"`
	GoalPrompt    string `yaml:"goal_prompt"`
	GoalAck       string `yaml:"goal_ack"`
	// FinalOffer is a format string; the partner link is its only argument.
	FinalOffer string `yaml:"final_offer"`
	About      string `yaml:"about"`

	BroadcastPrompt    string `yaml:"broadcast_prompt"`
	BroadcastCancelled string `yaml:"broadcast_cancelled"`
	BroadcastIdle      string `yaml:"broadcast_idle"`
	// BroadcastStarted takes the snapshot size.
	BroadcastStarted string `yaml:"broadcast_started"`
	// BroadcastDone takes delivered and newly-blocked counts.
	BroadcastDone   string `yaml:"broadcast_done"`
	BroadcastFailed string `yaml:"broadcast_failed"`

	// Stats takes total and blocked counts.
	Stats string `yaml:"stats"`

	// GrantAck takes the granted recipient id.
	GrantAck     string `yaml:"grant_ack"`
	DigestHeader string `yaml:"digest_header"`

	GeoChoices  []Choice `yaml:"geo_choices"`
	GoalChoices []Choice `yaml:"goal_choices"`

	BtnAgeYes string `yaml:"btn_age_yes"`
	BtnAgeNo  string `yaml:"btn_age_no"`
	BtnAccYes string `yaml:"btn_acc_yes"`
	BtnAccNo  string `yaml:"btn_acc_no"`
}

// Default returns the built-in deck. Overrides replace fields, never merge
// inside them.
func Default() Deck {
	return Deck{
		Greeting:      "👋 <b>Hey!</b>\n\nThis is where you get access to the private signals channel and the welcome bonus.\n👇 Pick your country:",
		AgePrompt:     "🔞 Are you 18 or older?",
		AgeDenied:     "⛔ Access is for adults (18+) only.",
		AccountPrompt: "❓ Have you had an account with the partner before?",
		AccountHad:    "⚠️ The bonus only works on NEW accounts. Register a fresh one!",
		AccountNew:    "✅ Great, your account qualifies.",
		GoalPrompt:    "🎯 What is your main goal?",
		GoalAck:       "🔥 Got it — the signals will match your goal.",
		FinalOffer:    "🎁 <b>Your access is ready!</b>\n\n1. Register here: %s\n2. Wait for the signals in this chat.",
		About:         "🤖 This bot runs on an automated signal engine.",

		BroadcastPrompt:    "📢 <b>Broadcast mode</b>\nForward a post or send the text:",
		BroadcastCancelled: "❌ Cancelled.",
		BroadcastIdle:      "Nothing to cancel.",
		BroadcastStarted:   "⏳ Sending to %d recipients...",
		BroadcastDone:      "✅ Broadcast finished! Delivered: %d, newly blocked: %d",
		BroadcastFailed:    "❌ Broadcast failed: could not load the recipient list.",

		Stats: "📊 <b>Stats</b>\n👥 Total: %d\n💀 Blocked: %d",

		GrantAck:     "✅ Privilege granted to %d",
		DigestHeader: "🗓 <b>Daily digest</b>",

		GeoChoices: []Choice{
			{Tag: "geo_ru", Label: "🇷🇺 Russia"},
			{Tag: "geo_uz", Label: "🇺🇿 Uzbekistan"},
			{Tag: "geo_kz", Label: "🇰🇿 Kazakhstan"},
			{Tag: "geo_other", Label: "🌍 Other"},
		},
		GoalChoices: []Choice{
			{Tag: "goal_fast", Label: "⚡ Fast profit"},
			{Tag: "goal_steady", Label: "📈 Steady income"},
			{Tag: "goal_learn", Label: "🎓 Learn the ropes"},
		},

		BtnAgeYes: "✅ Yes",
		BtnAgeNo:  "❌ No",
		BtnAccYes: "Yes, I had one",
		BtnAccNo:  "No, I'm new",
	}
}

// Load reads a YAML override file on top of the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Deck, error) {
	d := Default()
	if path == "" {
		return d, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return d, err
	}
	if err := yaml.Unmarshal(b, &d); err != nil {
		return d, fmt.Errorf("copy deck %s: %w", path, err)
	}
	return d, nil
}
