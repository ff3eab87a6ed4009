package sourcemap

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEmpty(t *testing.T) {
	sm := NewGenerator("out.wgsl").Generate()
	if sm.Version != 3 || sm.Mappings != "" || len(sm.Sources) != 0 {
		t.Errorf("unexpected empty map %+v", sm)
	}
	if got := sm.ToJSON(); got != `{"version":3,"file":"out.wgsl","sources":[],"names":[],"mappings":""}` {
		t.Errorf("unexpected JSON %s", got)
	}
}

func TestLines(t *testing.T) {
	g := NewGenerator("out.wgsl")
	g.AddLine(1, "main.wgsl", 1)
	g.AddLine(2, "lib.wgsl", 3)
	g.AddLine(3, "lib.wgsl", 4)
	g.AddLine(5, "main.wgsl", 9)
	sm := g.Generate()

	if diff := cmp.Diff([]string{"main.wgsl", "lib.wgsl"}, sm.Sources); diff != "" {
		t.Errorf("sources (-want +got):\n%s", diff)
	}
	if sm.Mappings != "AAAA;ACEA;AACA;;ADKA" {
		t.Errorf("unexpected mappings %q", sm.Mappings)
	}

	decoded, err := DecodeMappings(sm.Mappings)
	if err != nil {
		t.Fatal(err)
	}
	want := []Mapping{
		{GenLine: 0, SrcIndex: 0, SrcLine: 0},
		{GenLine: 1, SrcIndex: 1, SrcLine: 2},
		{GenLine: 2, SrcIndex: 1, SrcLine: 3},
		{GenLine: 4, SrcIndex: 0, SrcLine: 8},
	}
	if diff := cmp.Diff(want, decoded); diff != "" {
		t.Errorf("decoded (-want +got):\n%s", diff)
	}
}

func TestLookup(t *testing.T) {
	g := NewGenerator("")
	g.AddLine(1, "a.wgsl", 2)
	g.AddLine(2, "b.wgsl", 7)
	sm := g.Generate()

	tests := []struct {
		gen  int
		file string
		line int
		ok   bool
	}{
		{1, "a.wgsl", 2, true},
		{2, "b.wgsl", 7, true},
		{3, "", 0, false},
	}
	for _, tt := range tests {
		file, line, ok := sm.Lookup(tt.gen)
		if file != tt.file || line != tt.line || ok != tt.ok {
			t.Errorf("Lookup(%d) = %q, %d, %v", tt.gen, file, line, ok)
		}
	}
}

func TestSourcesContent(t *testing.T) {
	g := NewGenerator("out.wgsl")
	g.AddLine(1, "a.wgsl", 1)
	g.AddLine(2, "b.wgsl", 1)
	g.SetContent("b.wgsl", "b")
	sm := g.Generate()
	if diff := cmp.Diff([]string{"", "b"}, sm.SourcesContent); diff != "" {
		t.Errorf("sourcesContent (-want +got):\n%s", diff)
	}
}

func TestEncodings(t *testing.T) {
	g := NewGenerator("out.wgsl")
	g.AddLine(1, "a.wgsl", 1)
	sm := g.Generate()

	var parsed SourceMap
	if err := json.Unmarshal([]byte(sm.ToJSON()), &parsed); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(*sm, parsed); diff != "" {
		t.Errorf("JSON round trip (-want +got):\n%s", diff)
	}

	uri := sm.ToDataURI()
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:application/json;base64,"))
	if err != nil || string(data) != sm.ToJSON() {
		t.Errorf("bad data URI %q", uri)
	}

	if got := sm.ToComment(false); got != "//# sourceMappingURL=out.wgsl.map" {
		t.Errorf("unexpected comment %q", got)
	}
	if got := sm.ToComment(true); !strings.HasPrefix(got, "//# sourceMappingURL=data:") {
		t.Errorf("unexpected inline comment %q", got)
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := DecodeMappings("AAAA;A!AA"); err == nil {
		t.Error("expected an error")
	}
}
