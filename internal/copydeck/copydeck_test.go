package copydeck

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "funnelbot/pkg/logx"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	t.Parallel()
	d, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if d.Greeting != Default().Greeting {
		t.Fatal("empty path must return the built-in deck")
	}
	if d.AgePrompt == "" || d.BroadcastDone == "" || len(d.GeoChoices) == 0 {
		t.Fatalf("defaults incomplete: %+v", d)
	}
	if d.GrantAck == "" || d.DigestHeader == "" {
		t.Fatalf("operator copy incomplete: %+v", d)
	}
}

func TestLoadOverridesFieldByField(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "copy.yaml")
	override := `age_prompt: "custom age gate"
goal_choices:
  - tag: goal_x
    label: "X"
`
	if err := os.WriteFile(path, []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if d.AgePrompt != "custom age gate" {
		t.Fatalf("AgePrompt = %q", d.AgePrompt)
	}
	if len(d.GoalChoices) != 1 || d.GoalChoices[0].Tag != "goal_x" {
		t.Fatalf("GoalChoices = %+v, want full replacement", d.GoalChoices)
	}
	// Untouched fields keep their defaults.
	if d.Greeting != Default().Greeting {
		t.Fatalf("Greeting changed: %q", d.Greeting)
	}
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "copy.yaml")
	if err := os.WriteFile(path, []byte(":\n  - ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("broken YAML must error")
	}
}

func TestServiceHotReload(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "copy.yaml")
	if err := os.WriteFile(path, []byte(`about: "v1"`), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewService(path, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if s.Get().About != "v1" {
		t.Fatalf("About = %q", s.Get().About)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Watch(ctx)
	}()

	// Give the watcher time to register before the write.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`about: "v2"`), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if s.Get().About == "v2" {
			cancel()
			<-done
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("deck never reloaded, About = %q", s.Get().About)
}

func TestServiceKeepsLastGoodDeckOnBadReload(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "copy.yaml")
	if err := os.WriteFile(path, []byte(`about: "good"`), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewService(path, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Watch(ctx) }()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte(":\n  - ["), 0o644); err != nil {
		t.Fatal(err)
	}

	// The debounce window plus a margin. The deck must still be the good one.
	time.Sleep(600 * time.Millisecond)
	if s.Get().About != "good" {
		t.Fatalf("About = %q, want the last good deck", s.Get().About)
	}
}
