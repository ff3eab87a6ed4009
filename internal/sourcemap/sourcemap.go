package sourcemap

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// SourceMap represents a Source Map v3.
type SourceMap struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// Mapping ties a generated line to a source line. Lines are 0-indexed.
type Mapping struct {
	GenLine  int
	SrcIndex int
	SrcLine  int
}

// Generator builds a source map one output line at a time.
type Generator struct {
	file     string
	sources  []string
	contents []string
	index    map[string]int
	mappings []Mapping
}

// NewGenerator creates a generator for the output file named file.
func NewGenerator(file string) *Generator {
	return &Generator{file: file, index: make(map[string]int)}
}

// Source returns the index of the named source, adding it on first use.
func (g *Generator) Source(name string) int {
	if i, ok := g.index[name]; ok {
		return i
	}
	i := len(g.sources)
	g.index[name] = i
	g.sources = append(g.sources, name)
	return i
}

// SetContent embeds the text of a source in sourcesContent.
func (g *Generator) SetContent(name, content string) {
	i := g.Source(name)
	for len(g.contents) <= i {
		g.contents = append(g.contents, "")
	}
	g.contents[i] = content
}

// AddLine maps generated line genLine to line srcLine of source. Both
// are 1-based, as in diagnostics. Lines must be added in increasing
// generated order.
func (g *Generator) AddLine(genLine int, source string, srcLine int) {
	g.mappings = append(g.mappings, Mapping{
		GenLine:  genLine - 1,
		SrcIndex: g.Source(source),
		SrcLine:  srcLine - 1,
	})
}

// Generate produces the final SourceMap.
func (g *Generator) Generate() *SourceMap {
	sm := &SourceMap{
		Version:  3,
		File:     g.file,
		Sources:  append([]string{}, g.sources...),
		Names:    []string{},
		Mappings: g.encodeMappings(),
	}
	if len(g.contents) > 0 {
		sm.SourcesContent = append([]string{}, g.contents...)
		for len(sm.SourcesContent) < len(sm.Sources) {
			sm.SourcesContent = append(sm.SourcesContent, "")
		}
	}
	return sm
}

// encodeMappings writes one segment per mapped line. Fields are deltas
// from the previous segment; the generated column is always 0.
func (g *Generator) encodeMappings() string {
	var sb strings.Builder
	line, prevSrc, prevLine := 0, 0, 0
	for _, m := range g.mappings {
		for line < m.GenLine {
			sb.WriteByte(';')
			line++
		}
		if line > m.GenLine {
			continue
		}
		EncodeVLQ(&sb, 0)
		EncodeVLQ(&sb, m.SrcIndex-prevSrc)
		EncodeVLQ(&sb, m.SrcLine-prevLine)
		EncodeVLQ(&sb, 0)
		prevSrc, prevLine = m.SrcIndex, m.SrcLine
		line++
		sb.WriteByte(';')
	}
	return strings.TrimRight(sb.String(), ";")
}

// ToJSON returns the source map as a JSON string.
func (sm *SourceMap) ToJSON() string {
	data, _ := json.Marshal(sm)
	return string(data)
}

// ToDataURI returns the source map as a data URI for inline embedding.
func (sm *SourceMap) ToDataURI() string {
	return "data:application/json;base64," + base64.StdEncoding.EncodeToString([]byte(sm.ToJSON()))
}

// ToComment returns a source map comment for appending to generated code.
func (sm *SourceMap) ToComment(inline bool) string {
	if inline {
		return "//# sourceMappingURL=" + sm.ToDataURI()
	}
	return "//# sourceMappingURL=" + sm.File + ".map"
}

// Lookup returns the source name and 1-based line that generated line
// genLine (1-based) came from.
func (sm *SourceMap) Lookup(genLine int) (string, int, bool) {
	mappings, err := DecodeMappings(sm.Mappings)
	if err != nil {
		return "", 0, false
	}
	for _, m := range mappings {
		if m.GenLine == genLine-1 && m.SrcIndex < len(sm.Sources) {
			return sm.Sources[m.SrcIndex], m.SrcLine + 1, true
		}
	}
	return "", 0, false
}

// DecodeMappings decodes a mappings string. Only the first segment of
// each line is kept.
func DecodeMappings(mappings string) ([]Mapping, error) {
	var out []Mapping
	src, srcLine := 0, 0
	for genLine, line := range strings.Split(mappings, ";") {
		for i, segment := range strings.Split(line, ",") {
			if segment == "" {
				continue
			}
			var fields []int
			for pos := 0; pos < len(segment); {
				v, n, err := DecodeVLQ(segment[pos:])
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", genLine+1, err)
				}
				fields = append(fields, v)
				pos += n
			}
			if len(fields) < 4 {
				continue
			}
			src += fields[1]
			srcLine += fields[2]
			if i == 0 {
				out = append(out, Mapping{GenLine: genLine, SrcIndex: src, SrcLine: srcLine})
			}
		}
	}
	return out, nil
}
