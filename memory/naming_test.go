package memory_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/petasbytes/agent-core/internal/clock"
	"github.com/petasbytes/agent-core/memory"
)

type fakeNamer struct {
	name  string
	err   error
	calls int
	seen  int
}

func (f *fakeNamer) Name(_ context.Context, msgs []memory.Message) (string, error) {
	f.calls++
	f.seen = len(msgs)
	return f.name, f.err
}

func namingStore(t *testing.T) *memory.Store {
	t.Helper()
	s, err := memory.Open(storePath(t), 10, clock.Fake(storeEpoch))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func TestEnsureName_FallbackTruncatesAtRuneLimit(t *testing.T) {
	s := namingStore(t)
	conv := &memory.Conversation{Messages: []memory.Message{
		userText("Please help me refactor the billing module before the release"),
	}}

	s.EnsureName(context.Background(), conv)
	if conv.Name != "Please help me refactor the bi..." {
		t.Fatalf("name: %q", conv.Name)
	}
}

func TestEnsureName_FallbackCountsRunesNotBytes(t *testing.T) {
	s := namingStore(t)
	conv := &memory.Conversation{Messages: []memory.Message{
		userText(strings.Repeat("é", 40)),
	}}

	s.EnsureName(context.Background(), conv)
	want := strings.Repeat("é", 30) + "..."
	if conv.Name != want {
		t.Fatalf("name: %q want %q", conv.Name, want)
	}
}

func TestEnsureName_ShortMessageUnchanged(t *testing.T) {
	s := namingStore(t)
	conv := &memory.Conversation{Messages: []memory.Message{userText("hi there")}}

	s.EnsureName(context.Background(), conv)
	if conv.Name != "hi there" {
		t.Fatalf("name: %q", conv.Name)
	}
}

func TestEnsureName_NewlinesCollapseToSpaces(t *testing.T) {
	s := namingStore(t)
	conv := &memory.Conversation{Messages: []memory.Message{userText("fix the\nbroken build")}}

	s.EnsureName(context.Background(), conv)
	if conv.Name != "fix the broken build" {
		t.Fatalf("name: %q", conv.Name)
	}
}

func TestEnsureName_NoUserTextUsesTimestamp(t *testing.T) {
	s := namingStore(t)
	conv := &memory.Conversation{}

	s.EnsureName(context.Background(), conv)
	want := "Conversation " + storeEpoch.Format("Jan 2, 3:04 PM")
	if conv.Name != want {
		t.Fatalf("name: %q want %q", conv.Name, want)
	}
}

func TestEnsureName_NamerPreferred(t *testing.T) {
	s := namingStore(t)
	s.Namer = &fakeNamer{name: "  Billing refactor  "}
	conv := &memory.Conversation{Messages: []memory.Message{userText("please refactor billing")}}

	s.EnsureName(context.Background(), conv)
	if conv.Name != "Billing refactor" {
		t.Fatalf("name: %q", conv.Name)
	}
}

func TestEnsureName_NamerFailureFallsBack(t *testing.T) {
	s := namingStore(t)
	namer := &fakeNamer{err: errors.New("model unavailable")}
	s.Namer = namer
	conv := &memory.Conversation{Messages: []memory.Message{userText("quick question")}}

	s.EnsureName(context.Background(), conv)
	if namer.calls != 1 {
		t.Fatalf("namer calls: %d", namer.calls)
	}
	if conv.Name != "quick question" {
		t.Fatalf("name: %q", conv.Name)
	}
}

func TestEnsureName_NamerEmptyResultFallsBack(t *testing.T) {
	s := namingStore(t)
	s.Namer = &fakeNamer{name: "   "}
	conv := &memory.Conversation{Messages: []memory.Message{userText("quick question")}}

	s.EnsureName(context.Background(), conv)
	if conv.Name != "quick question" {
		t.Fatalf("name: %q", conv.Name)
	}
}

func TestEnsureName_ExistingNameUntouched(t *testing.T) {
	s := namingStore(t)
	namer := &fakeNamer{name: "different"}
	s.Namer = namer
	conv := &memory.Conversation{Name: "already set", Messages: []memory.Message{userText("hi")}}

	s.EnsureName(context.Background(), conv)
	if conv.Name != "already set" {
		t.Fatalf("name: %q", conv.Name)
	}
	if namer.calls != 0 {
		t.Fatalf("namer was asked for a named conversation")
	}
}

func TestEnsureName_NamerSeesBoundedHead(t *testing.T) {
	s := namingStore(t)
	namer := &fakeNamer{name: "bounded"}
	s.Namer = namer

	var msgs []memory.Message
	for i := 0; i < 10; i++ {
		msgs = append(msgs, userText("message"))
	}
	conv := &memory.Conversation{Messages: msgs}

	s.EnsureName(context.Background(), conv)
	if namer.seen != 4 {
		t.Fatalf("namer saw %d messages, want 4", namer.seen)
	}
}
