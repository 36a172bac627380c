package jsonlog

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zhouzirui/ochat/internal/model/record"
)

func TestAppendCreatesArrayFile(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "logs"))
	if err != nil {
		t.Fatalf("New err: %v", err)
	}

	rec := record.New("s1", record.ModeExecute, "llama3", "list files", "a.txt\nb.txt")
	if err := store.Append(context.Background(), rec); err != nil {
		t.Fatalf("Append err: %v", err)
	}

	path, _ := store.Path(record.ModeExecute)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	var got []record.Record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("log is not a JSON array: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].Input != "list files" || got[0].Output != "a.txt\nb.txt" {
		t.Fatalf("unexpected record: %+v", got[0])
	}
}

func TestAppendKeepsExistingRecords(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	ctx := context.Background()

	for _, input := range []string{"one", "two", "three"} {
		if err := store.Append(ctx, record.New("s1", record.ModeChat, "m", input, "ok")); err != nil {
			t.Fatalf("Append %s err: %v", input, err)
		}
	}

	got, err := store.List(record.ModeChat)
	if err != nil {
		t.Fatalf("List err: %v", err)
	}
	if len(got) != 3 || got[0].Input != "one" || got[2].Input != "three" {
		t.Fatalf("unexpected records: %+v", got)
	}

	recent, err := store.Recent(record.ModeChat, 2)
	if err != nil {
		t.Fatalf("Recent err: %v", err)
	}
	if len(recent) != 2 || recent[0].Input != "two" {
		t.Fatalf("unexpected recent records: %+v", recent)
	}

	other, err := store.List(record.ModeExecute)
	if err != nil {
		t.Fatalf("List execute err: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected separate execute log, got %d records", len(other))
	}
}

func TestAppendDoesNotEscapeHTML(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	rec := record.New("s1", record.ModeChat, "m", "a < b", "<b>bold</b> & more")
	if err := store.Append(context.Background(), rec); err != nil {
		t.Fatalf("Append err: %v", err)
	}

	path, _ := store.Path(record.ModeChat)
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "<b>bold</b> & more") {
		t.Fatalf("expected literal output in file, got %s", data)
	}
}

func TestAppendCorruptFileLeftUntouched(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New err: %v", err)
	}

	path, _ := store.Path(record.ModeChat)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	if err := store.Append(context.Background(), record.New("s1", record.ModeChat, "m", "hi", "yo")); err == nil {
		t.Fatal("expected error for corrupt log")
	}

	data, _ := os.ReadFile(path)
	if string(data) != "{not json" {
		t.Fatalf("corrupt log was modified: %s", data)
	}
}

func TestAppendUnknownMode(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New err: %v", err)
	}
	err = store.Append(context.Background(), record.Record{Mode: "shell"})
	if !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
}
