package memory_test

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/petasbytes/agent-core/internal/clock"
	"github.com/petasbytes/agent-core/memory"
)

var storeEpoch = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func storePath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "conversations.json")
}

func userText(text string) memory.Message {
	return memory.Message{Role: "user", Blocks: []memory.Block{{Type: "text", Text: text}}}
}

func TestStore_SaveAssignsIDAndStampsTimes(t *testing.T) {
	clk := clock.Fake(storeEpoch)
	s, err := memory.Open(storePath(t), 10, clk)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	conv := &memory.Conversation{Messages: []memory.Message{userText("hi")}}
	if err := s.Save(conv); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := uuid.Parse(conv.ID); err != nil {
		t.Fatalf("assigned ID %q is not a uuid: %v", conv.ID, err)
	}
	if !conv.CreatedAt.Equal(storeEpoch) || !conv.UpdatedAt.Equal(storeEpoch) {
		t.Fatalf("timestamps: created %v updated %v", conv.CreatedAt, conv.UpdatedAt)
	}

	clk.Advance(time.Minute)
	if err := s.Save(conv); err != nil {
		t.Fatalf("resave: %v", err)
	}
	if !conv.CreatedAt.Equal(storeEpoch) {
		t.Fatalf("resave moved CreatedAt to %v", conv.CreatedAt)
	}
	if !conv.UpdatedAt.Equal(storeEpoch.Add(time.Minute)) {
		t.Fatalf("resave UpdatedAt: %v", conv.UpdatedAt)
	}
}

func TestStore_ReopenRoundTrip(t *testing.T) {
	path := storePath(t)
	clk := clock.Fake(storeEpoch)
	s, err := memory.Open(path, 10, clk)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	conv := &memory.Conversation{
		Name:    "migration notes",
		Summary: "Summary of earlier conversation:\n- moved the billing tables",
		Messages: []memory.Message{
			userText("hello"),
			{Role: "assistant", Blocks: []memory.Block{{Type: "text", Text: "hi, what next?"}}},
		},
	}
	if err := s.Save(conv); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if !strings.Contains(string(raw), `"conversations"`) {
		t.Fatalf("blob is not namespaced: %s", raw)
	}

	re, err := memory.Open(path, 10, clk)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok := re.Get(conv.ID)
	if !ok {
		t.Fatalf("conversation %s missing after reopen", conv.ID)
	}
	if got.Name != "migration notes" || got.Summary != conv.Summary {
		t.Fatalf("reloaded conversation: %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Blocks[0].Text != "hello" {
		t.Fatalf("reloaded messages: %+v", got.Messages)
	}
	if !got.UpdatedAt.Equal(storeEpoch) {
		t.Fatalf("reloaded UpdatedAt: %v", got.UpdatedAt)
	}
}

func TestStore_LRUBound_ElevenSavesKeepTen(t *testing.T) {
	clk := clock.Fake(storeEpoch)
	s, err := memory.Open(storePath(t), 10, clk)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	var ids []string
	for i := 0; i < 11; i++ {
		conv := &memory.Conversation{Messages: []memory.Message{userText(fmt.Sprintf("topic %d", i))}}
		if err := s.Save(conv); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
		ids = append(ids, conv.ID)
		clk.Advance(time.Minute)
	}

	list := s.List()
	if len(list) != 10 {
		t.Fatalf("retained: got %d want 10", len(list))
	}
	if _, ok := s.Get(ids[0]); ok {
		t.Fatal("least recently updated conversation survived the bound")
	}
	if _, ok := s.Get(ids[1]); !ok {
		t.Fatal("second oldest conversation was evicted")
	}
	if list[0].ID != ids[10] {
		t.Fatalf("list head: got %s want newest %s", list[0].ID, ids[10])
	}
}

func TestStore_ResaveRefreshesRecency(t *testing.T) {
	clk := clock.Fake(storeEpoch)
	s, err := memory.Open(storePath(t), 2, clk)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	a := &memory.Conversation{Messages: []memory.Message{userText("a")}}
	s.Save(a)
	clk.Advance(time.Minute)
	b := &memory.Conversation{Messages: []memory.Message{userText("b")}}
	s.Save(b)
	clk.Advance(time.Minute)

	// Touch a so b becomes the eviction candidate.
	if err := s.Save(a); err != nil {
		t.Fatalf("resave a: %v", err)
	}
	clk.Advance(time.Minute)

	c := &memory.Conversation{Messages: []memory.Message{userText("c")}}
	if err := s.Save(c); err != nil {
		t.Fatalf("save c: %v", err)
	}

	if _, ok := s.Get(b.ID); ok {
		t.Fatal("b should have been evicted")
	}
	if _, ok := s.Get(a.ID); !ok {
		t.Fatal("refreshed a was evicted")
	}
	if _, ok := s.Get(c.ID); !ok {
		t.Fatal("just-saved c missing")
	}
}

func TestStore_ListNewestFirst(t *testing.T) {
	clk := clock.Fake(storeEpoch)
	s, err := memory.Open(storePath(t), 10, clk)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	for _, name := range []string{"one", "two", "three"} {
		conv := &memory.Conversation{
			Name:     name,
			Messages: []memory.Message{userText(name), userText(name + " again")},
		}
		if err := s.Save(conv); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
		clk.Advance(time.Hour)
	}

	list := s.List()
	if len(list) != 3 {
		t.Fatalf("list: got %d want 3", len(list))
	}
	if list[0].Name != "three" || list[2].Name != "one" {
		t.Fatalf("order: %s, %s, %s", list[0].Name, list[1].Name, list[2].Name)
	}
	if list[0].MessageCount != 2 {
		t.Fatalf("message count: got %d want 2", list[0].MessageCount)
	}
}

func TestStore_DeleteRemovesAndPersists(t *testing.T) {
	path := storePath(t)
	clk := clock.Fake(storeEpoch)
	s, err := memory.Open(path, 10, clk)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	a := &memory.Conversation{Messages: []memory.Message{userText("a")}}
	s.Save(a)
	b := &memory.Conversation{Messages: []memory.Message{userText("b")}}
	s.Save(b)

	if err := s.Delete(a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := s.Get(a.ID); ok {
		t.Fatal("deleted conversation still present")
	}

	re, err := memory.Open(path, 10, clk)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, ok := re.Get(a.ID); ok {
		t.Fatal("delete did not persist")
	}
	if got := re.List(); len(got) != 1 || got[0].ID != b.ID {
		t.Fatalf("surviving conversations: %+v", got)
	}

	if err := s.Delete("no-such-id"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("delete unknown: %v", err)
	}
}

func TestStore_OpenMissingPathStartsEmpty(t *testing.T) {
	s, err := memory.Open(storePath(t), 10, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got := s.List(); len(got) != 0 {
		t.Fatalf("fresh store lists %d conversations", len(got))
	}
}

func TestStore_OpenCorruptBlobFails(t *testing.T) {
	path := storePath(t)
	if err := os.WriteFile(path, []byte("{oops"), 0o600); err != nil {
		t.Fatalf("prep: %v", err)
	}
	if _, err := memory.Open(path, 10, nil); err == nil {
		t.Fatal("expected error for corrupt blob")
	}
}

func TestStore_SaveEmitsStoreSaved(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AGT_OBSERVE_JSON", "1")
	t.Setenv("AGT_ARTIFACTS_DIR", dir)

	s, err := memory.Open(filepath.Join(dir, "conversations.json"), 10, clock.Fake(storeEpoch))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	conv := &memory.Conversation{Messages: []memory.Message{userText("observe me")}}
	if err := s.Save(conv); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "events.jsonl"))
	if err != nil {
		t.Fatalf("read events: %v", err)
	}
	var ev map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad event line %q: %v", line, err)
		}
		if m["event"] == "store_saved" {
			ev = m
		}
	}
	if ev == nil {
		t.Fatal("no store_saved event emitted")
	}
	if ev["conversation_id"] != conv.ID {
		t.Fatalf("conversation_id: %v", ev["conversation_id"])
	}
	if n, ok := ev["conversations"].(float64); !ok || n != 1 {
		t.Fatalf("conversations: %v", ev["conversations"])
	}
	if n, ok := ev["bytes"].(float64); !ok || n <= 0 {
		t.Fatalf("bytes: %v", ev["bytes"])
	}
}
