package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func decodeRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("decoding %q: %v", line, err)
		}
		out = append(out, rec)
	}
	return out
}

func TestGroup_StartAndEnd(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Options{JSON: true})

	span, gl := Group(context.Background(), l, "Smoke Test")
	gl.Info("inside")
	span.End()

	recs := decodeRecords(t, &buf)
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3:\n%s", len(recs), buf.String())
	}
	if recs[0]["msg"] != GroupStart+"Smoke Test" {
		t.Errorf("first msg = %v, want group start", recs[0]["msg"])
	}
	if recs[1]["group"] != "Smoke Test" {
		t.Errorf("inner record group = %v, want Smoke Test", recs[1]["group"])
	}
	if recs[2]["msg"] != GroupEnd {
		t.Errorf("last msg = %v, want %q", recs[2]["msg"], GroupEnd)
	}
	if _, ok := recs[2]["elapsed"]; !ok {
		t.Error("end record has no elapsed attribute")
	}
}

func TestSpan_EndIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, Options{JSON: true})

	span, _ := Group(context.Background(), l, "Full Suite")
	span.End()
	span.End()

	if n := strings.Count(buf.String(), GroupEnd); n != 1 {
		t.Errorf("end marker logged %d times, want 1", n)
	}
}

func TestNew_VerboseEnablesDebug(t *testing.T) {
	var quiet, loud bytes.Buffer
	New(&quiet, Options{}).Debug("hidden")
	New(&loud, Options{Verbose: true}).Debug("shown")

	if quiet.Len() != 0 {
		t.Errorf("debug record written without Verbose: %q", quiet.String())
	}
	if !strings.Contains(loud.String(), "shown") {
		t.Errorf("debug record missing with Verbose: %q", loud.String())
	}
}
