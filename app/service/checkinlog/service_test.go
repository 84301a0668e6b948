package checkinlog

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"syscall"
	"testing"
)

func sampleRecord(date string) Record {
	return Record{
		Date:       date,
		Time:       "09:30:00",
		Mood:       "much better and energetic",
		Energy:     "8 out of 10",
		Objectives: []string{"finish presentation", "go to the gym", "call mom"},
		Summary:    "User feeling much better with high energy and three clear goals.",
	}
}

func readDocument(t *testing.T, path string) Log {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}

	var log Log
	if err = json.Unmarshal(data, &log); err != nil {
		t.Fatalf("decode document: %v", err)
	}

	return log
}

func TestAppendCreatesDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "wellness_log.json")
	store := NewStore(path)

	record := sampleRecord("2025-11-24")
	if err := store.Append(record); err != nil {
		t.Fatalf("Append: %v", err)
	}

	log := readDocument(t, path)
	if len(log.CheckIns) != 1 {
		t.Fatalf("len = %d, want 1", len(log.CheckIns))
	}
	if !reflect.DeepEqual(log.CheckIns[0], record) {
		t.Fatalf("stored record = %+v, want %+v", log.CheckIns[0], record)
	}

	raw, _ := os.ReadFile(path)
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		t.Fatalf("decode top level: %v", err)
	}
	if _, ok := top["check_ins"]; !ok || len(top) != 1 {
		t.Fatalf("unexpected top-level keys: %v", top)
	}
}

func TestAppendThenLoadRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		objectives []string
	}{
		{"one objective", []string{"rest"}},
		{"two objectives", []string{"rest", "read"}},
		{"three objectives", []string{"rest", "read", "walk"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(filepath.Join(t.TempDir(), "log.json"))

			record := sampleRecord("2025-11-24")
			record.Objectives = tt.objectives

			if err := store.Append(record); err != nil {
				t.Fatalf("Append: %v", err)
			}

			got, ok := store.LoadMostRecent()
			if !ok {
				t.Fatalf("LoadMostRecent returned no record")
			}
			if !reflect.DeepEqual(got, record) {
				t.Fatalf("got %+v, want %+v", got, record)
			}
		})
	}
}

func TestLoadMostRecentReturnsLastOfMany(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "log.json"))

	dates := []string{"2025-11-20", "2025-11-21", "2025-11-22", "2025-11-23", "2025-11-24"}
	for i, date := range dates {
		if err := store.Append(sampleRecord(date)); err != nil {
			t.Fatalf("Append #%d: %v", i, err)
		}

		got, ok := store.LoadMostRecent()
		if !ok || got.Date != date {
			t.Fatalf("after append #%d got %q (ok=%v), want %q", i, got.Date, ok, date)
		}
	}

	if n := len(store.List()); n != len(dates) {
		t.Fatalf("List len = %d, want %d", n, len(dates))
	}
}

func TestLoadMostRecentSoftFails(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		prepare func(path string)
	}{
		{"missing", func(string) {}},
		{"malformed", func(path string) { _ = os.WriteFile(path, []byte("{not json"), 0644) }},
		{"empty file", func(path string) { _ = os.WriteFile(path, nil, 0644) }},
		{"empty sequence", func(path string) { _ = os.WriteFile(path, []byte(`{"check_ins":[]}`), 0644) }},
		{"missing key", func(path string) { _ = os.WriteFile(path, []byte(`{}`), 0644) }},
		{"directory", func(path string) { _ = os.Mkdir(path, 0755) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".json")
			tt.prepare(path)

			if got, ok := NewStore(path).LoadMostRecent(); ok {
				t.Fatalf("expected empty result, got %+v", got)
			}
		})
	}
}

func TestAppendOverMalformedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	if err := os.WriteFile(path, []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(path)
	if err := store.Append(sampleRecord("2025-11-24")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if n := len(readDocument(t, path).CheckIns); n != 1 {
		t.Fatalf("len = %d, want 1", n)
	}
}

func TestSecondAppendKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	first := sampleRecord("2025-11-20")

	seed, _ := json.Marshal(Log{CheckIns: []Record{first}})
	if err := os.WriteFile(path, seed, 0644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(path)

	got, ok := store.LoadMostRecent()
	if !ok || !reflect.DeepEqual(got, first) {
		t.Fatalf("initial load = %+v (ok=%v), want %+v", got, ok, first)
	}

	second := sampleRecord("2025-11-24")
	if err := store.Append(second); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, _ = store.LoadMostRecent()
	if got.Date != "2025-11-24" {
		t.Fatalf("most recent date = %q", got.Date)
	}

	log := readDocument(t, path)
	if len(log.CheckIns) != 2 {
		t.Fatalf("len = %d, want 2", len(log.CheckIns))
	}
	if !reflect.DeepEqual(log.CheckIns[0], first) {
		t.Fatalf("first record changed: %+v", log.CheckIns[0])
	}
}

func TestAppendWriteFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	store := NewStore(path)

	first := sampleRecord("2025-11-20")
	if err := store.Append(first); err != nil {
		t.Fatalf("seed Append: %v", err)
	}

	diskFull := errors.New("no space left on device")
	store.writeFile = func(string, []byte) error { return diskFull }

	err := store.Append(sampleRecord("2025-11-24"))
	if !errors.Is(err, ErrStorageWrite) {
		t.Fatalf("err = %v, want ErrStorageWrite", err)
	}
	if !errors.Is(err, diskFull) {
		t.Fatalf("err = %v, want cause preserved", err)
	}

	got, ok := store.LoadMostRecent()
	if !ok || !reflect.DeepEqual(got, first) {
		t.Fatalf("after failure got %+v (ok=%v), want %+v", got, ok, first)
	}
}

func TestAppendUnreadableDocumentKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	store := NewStore(path)

	for _, date := range []string{"2025-11-20", "2025-11-21"} {
		if err := store.Append(sampleRecord(date)); err != nil {
			t.Fatalf("seed Append: %v", err)
		}
	}

	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	ioErr := syscall.EIO
	store.readFile = func(string) ([]byte, error) { return nil, ioErr }

	err = store.Append(sampleRecord("2025-11-24"))
	if !errors.Is(err, ErrStorageWrite) {
		t.Fatalf("err = %v, want ErrStorageWrite", err)
	}
	if !errors.Is(err, ioErr) {
		t.Fatalf("err = %v, want cause preserved", err)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != string(before) {
		t.Fatalf("document changed after failed read:\n%s", after)
	}

	if _, ok := store.LoadMostRecent(); ok {
		t.Fatalf("unreadable document should load as empty")
	}
}

func TestAppendOverDirectoryFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.json")
	if err := os.Mkdir(path, 0755); err != nil {
		t.Fatal(err)
	}

	if err := NewStore(path).Append(sampleRecord("2025-11-24")); !errors.Is(err, ErrStorageWrite) {
		t.Fatalf("err = %v, want ErrStorageWrite", err)
	}

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		t.Fatalf("directory was replaced: %v", err)
	}
}

func TestAppendUnwritablePath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("file, not a directory"), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(filepath.Join(blocker, "log.json"))

	if err := store.Append(sampleRecord("2025-11-24")); !errors.Is(err, ErrStorageWrite) {
		t.Fatalf("err = %v, want ErrStorageWrite", err)
	}
	if _, ok := store.LoadMostRecent(); ok {
		t.Fatalf("expected no record after failed append")
	}
}

func TestRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Record)
		wantErr bool
	}{
		{"valid", func(*Record) {}, false},
		{"blank mood", func(r *Record) { r.Mood = "  " }, true},
		{"blank energy", func(r *Record) { r.Energy = "" }, true},
		{"no objectives", func(r *Record) { r.Objectives = nil }, true},
		{"four objectives", func(r *Record) { r.Objectives = []string{"a", "b", "c", "d"} }, true},
		{"blank objective", func(r *Record) { r.Objectives = []string{"a", " "} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := sampleRecord("2025-11-24")
			tt.mutate(&record)

			if err := record.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
