package id

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	if id1.String() == id2.String() {
		t.Error("Generated IDs should be unique")
	}
}

func TestGenerateString(t *testing.T) {
	gen := NewGenerator()

	id := gen.GenerateString()

	if len(id) != 26 {
		t.Errorf("ULID should be 26 characters, got %d", len(id))
	}
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{WorkspacePrefix, HandlePrefix, RequestPrefix} {
		id := gen.GenerateWithPrefix(prefix)

		if !strings.HasPrefix(id, prefix+"_") {
			t.Errorf("ID should start with '%s_', got: %s", prefix, id)
		}
		if !HasPrefix(id, prefix) {
			t.Errorf("HasPrefix(%s, %s) should be true", id, prefix)
		}
	}
}

func TestIDFormatConsistency(t *testing.T) {
	ids := map[string]string{
		"ws":  string(NewWorkspaceID()),
		"res": string(NewHandleID()),
		"req": string(NewRequestID()),
	}

	for prefix, id := range ids {
		parts := strings.Split(id, "_")
		if len(parts) != 2 {
			t.Errorf("ID should have format 'prefix_ulid', got: %s", id)
			continue
		}
		if parts[0] != prefix {
			t.Errorf("Expected prefix '%s', got '%s' in ID: %s", prefix, parts[0], id)
		}
		if len(parts[1]) != 26 {
			t.Errorf("ULID should be 26 characters, got %d in ID: %s", len(parts[1]), id)
		}
	}
}

func TestHasPrefix(t *testing.T) {
	gen := NewGenerator()

	if !HasPrefix("ws_"+gen.GenerateString(), WorkspacePrefix) {
		t.Error("Generated ID should be valid")
	}

	for _, rest := range []string{"", "invalid", "1234567890", "zzzzzzzzzzzzzzzzzzzzzzzzzzz"} {
		if HasPrefix("ws_"+rest, WorkspacePrefix) {
			t.Errorf("ID should be invalid: ws_%s", rest)
		}
	}
}

func TestParseTypedIDs(t *testing.T) {
	ws := NewWorkspaceID()
	if got, err := ParseWorkspaceID(ws.String()); err != nil || got != ws {
		t.Errorf("ParseWorkspaceID(%s) = %s, %v", ws, got, err)
	}

	tests := []string{"", "ws_", "ws_notaulid", "res_" + Default().GenerateString(), "../../etc"}
	for _, s := range tests {
		if _, err := ParseWorkspaceID(s); err == nil {
			t.Errorf("ParseWorkspaceID(%q) should fail", s)
		}
	}

	h := NewHandleID()
	if _, err := ParseHandleID(h.String()); err != nil {
		t.Errorf("ParseHandleID(%s) failed: %v", h, err)
	}
	if _, err := ParseHandleID(ws.String()); err == nil {
		t.Error("a workspace id is not a handle id")
	}
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	const goroutines = 50
	const idsPerGoroutine = 100

	var wg sync.WaitGroup
	idChan := make(chan string, goroutines*idsPerGoroutine)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < idsPerGoroutine; j++ {
				idChan <- gen.GenerateString()
			}
		}()
	}

	wg.Wait()
	close(idChan)

	seen := make(map[string]bool)
	for id := range idChan {
		if seen[id] {
			t.Errorf("Duplicate ID found in concurrent generation: %s", id)
		}
		seen[id] = true
	}

	if len(seen) != goroutines*idsPerGoroutine {
		t.Errorf("Expected %d unique IDs, got %d", goroutines*idsPerGoroutine, len(seen))
	}
}

func TestLexicographicSorting(t *testing.T) {
	gen := NewGenerator()

	ids := make([]string, 5)
	for i := range ids {
		ids[i] = gen.GenerateString()
		time.Sleep(2 * time.Millisecond)
	}

	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Errorf("IDs should be lexicographically sorted: %s should be > %s", ids[i], ids[i-1])
		}
	}
}

func TestDefaultGenerator(t *testing.T) {
	if Default() != Default() {
		t.Error("Default() should return the same instance")
	}
}

func BenchmarkGenerateWithPrefix(b *testing.B) {
	gen := NewGenerator()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = gen.GenerateWithPrefix(HandlePrefix)
	}
}
