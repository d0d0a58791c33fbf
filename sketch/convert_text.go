package sketch

import (
	"bytes"
	"fmt"
	"strings"

	goorg "github.com/niklasfasching/go-org/org"
	"github.com/yuin/goldmark"
	mdast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	mdtext "github.com/yuin/goldmark/text"
)

// Grammar names accepted by the convert operation.
const (
	GrammarMermaid  = "mermaid"
	GrammarPlantUML = "plantuml"
	GrammarMarkdown = "markdown"
	GrammarOrg      = "org"
)

// outline is the grammar-neutral result of parsing an interchange text:
// a flat node list with nesting levels plus explicit edges. Each engine
// encodes an outline into its own native content.
type outline struct {
	Nodes []outlineNode
	Edges []outlineEdge
}

type outlineNode struct {
	ID    string
	Label string
	Level int // 1-based nesting depth; siblings share a level
}

type outlineEdge struct {
	From  string
	To    string
	Label string
}

// parseGrammar dispatches on the grammar name. Unknown grammars return
// ErrNotImplemented; recognized grammars that yield no nodes return a
// conversion error so the caller can fall back to the verbatim text.
func parseGrammar(grammar, text string) (outline, error) {
	var (
		out outline
		err error
	)
	switch strings.ToLower(strings.TrimSpace(grammar)) {
	case GrammarMermaid:
		out, err = parseMermaid(text)
	case GrammarPlantUML:
		out, err = parsePlantUML(text)
	case GrammarMarkdown:
		out, err = parseMarkdownOutline(text)
	case GrammarOrg:
		out, err = parseOrgOutline(text)
	default:
		return outline{}, ErrNotImplemented
	}
	if err != nil {
		return outline{}, err
	}
	if len(out.Nodes) == 0 {
		return outline{}, &EngineError{Type: ErrConvert, Message: fmt.Sprintf("%s: no nodes recognized", grammar)}
	}
	return out, nil
}

type mermaidArrow struct {
	token string
	label bool
}

var mermaidArrows = []mermaidArrow{
	{token: "-.->", label: true},
	{token: "==>", label: true},
	{token: "-->", label: true},
	{token: "---", label: false},
}

// parseMermaid handles the flowchart subset the models emit: an optional
// graph/flowchart header, one edge or node statement per line, statements
// separated by semicolons, optional |label| edge labels.
func parseMermaid(text string) (outline, error) {
	var out outline
	seen := make(map[string]int)
	for _, rawLine := range strings.Split(text, "\n") {
		for _, stmt := range strings.Split(rawLine, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" || strings.HasPrefix(stmt, "%%") {
				continue
			}
			lower := strings.ToLower(stmt)
			if strings.HasPrefix(lower, "graph ") || strings.HasPrefix(lower, "flowchart ") ||
				lower == "graph" || lower == "flowchart" {
				continue
			}
			arrow, pos := findMermaidArrow(stmt)
			if pos < 0 {
				addOutlineNode(&out, seen, parseMermaidNode(stmt))
				continue
			}
			left := strings.TrimSpace(stmt[:pos])
			rest := strings.TrimSpace(stmt[pos+len(arrow.token):])
			label := ""
			if arrow.label && strings.HasPrefix(rest, "|") {
				if end := strings.Index(rest[1:], "|"); end >= 0 {
					label = strings.TrimSpace(rest[1 : 1+end])
					rest = strings.TrimSpace(rest[end+2:])
				}
			}
			from := parseMermaidNode(left)
			to := parseMermaidNode(rest)
			addOutlineNode(&out, seen, from)
			addOutlineNode(&out, seen, to)
			if from.ID != "" && to.ID != "" {
				out.Edges = append(out.Edges, outlineEdge{From: from.ID, To: to.ID, Label: label})
			}
		}
	}
	return out, nil
}

func findMermaidArrow(stmt string) (mermaidArrow, int) {
	best := -1
	var found mermaidArrow
	for _, a := range mermaidArrows {
		if pos := strings.Index(stmt, a.token); pos >= 0 && (best < 0 || pos < best) {
			best = pos
			found = a
		}
	}
	return found, best
}

// parseMermaidNode splits "id[Label]" style tokens into id and label.
func parseMermaidNode(token string) outlineNode {
	token = strings.TrimSpace(token)
	if token == "" {
		return outlineNode{}
	}
	open := strings.IndexAny(token, "[({>")
	if open < 0 {
		return outlineNode{ID: token, Level: 1}
	}
	id := strings.TrimSpace(token[:open])
	label := strings.TrimRight(token[open:], "])}>")
	label = strings.TrimLeft(label, "[({>")
	label = strings.Trim(strings.TrimSpace(label), `"`)
	return outlineNode{ID: id, Label: label, Level: 1}
}

// parsePlantUML handles arrow statements between @startuml/@enduml, with an
// optional trailing ": label".
func parsePlantUML(text string) (outline, error) {
	var out outline
	seen := make(map[string]int)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "@") || strings.HasPrefix(line, "'") {
			continue
		}
		label := ""
		if colon := strings.Index(line, ":"); colon >= 0 {
			label = strings.TrimSpace(line[colon+1:])
			line = strings.TrimSpace(line[:colon])
		}
		arrow := "-->"
		pos := strings.Index(line, arrow)
		if pos < 0 {
			arrow = "->"
			pos = strings.Index(line, arrow)
		}
		if pos < 0 {
			continue
		}
		from := strings.TrimSpace(line[:pos])
		to := strings.TrimSpace(line[pos+len(arrow):])
		if from == "" || to == "" || from == "[*]" || to == "[*]" {
			continue
		}
		addOutlineNode(&out, seen, outlineNode{ID: slugify(from), Label: trimQuotes(from), Level: 1})
		addOutlineNode(&out, seen, outlineNode{ID: slugify(to), Label: trimQuotes(to), Level: 1})
		out.Edges = append(out.Edges, outlineEdge{From: slugify(from), To: slugify(to), Label: label})
	}
	return out, nil
}

// parseMarkdownOutline maps headings to nodes with heading depth as nesting.
// A fenced ```mermaid block takes precedence over the outline when present.
func parseMarkdownOutline(text string) (outline, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
	src := []byte(text)
	root := md.Parser().Parse(mdtext.NewReader(src))

	var fenced string
	var out outline
	seen := make(map[string]int)
	err := mdast.Walk(root, func(n mdast.Node, entering bool) (mdast.WalkStatus, error) {
		if !entering {
			return mdast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *mdast.FencedCodeBlock:
			if string(node.Language(src)) == GrammarMermaid {
				var b bytes.Buffer
				for i := 0; i < node.Lines().Len(); i++ {
					seg := node.Lines().At(i)
					b.Write(seg.Value(src))
				}
				fenced = b.String()
			}
		case *mdast.Heading:
			label := extractMarkdownText(node, src)
			if label != "" {
				addOutlineNode(&out, seen, outlineNode{ID: slugify(label), Label: label, Level: node.Level})
			}
		}
		return mdast.WalkContinue, nil
	})
	if err != nil {
		return outline{}, &EngineError{Type: ErrConvert, Message: "markdown: walk failed", Err: err}
	}
	if fenced != "" {
		return parseMermaid(fenced)
	}
	return out, nil
}

// parseOrgOutline maps org headings to nodes, nesting by star depth.
func parseOrgOutline(text string) (outline, error) {
	doc := goorg.New().Parse(strings.NewReader(text), "")
	body, err := doc.Write(goorg.NewOrgWriter())
	if err != nil {
		return outline{}, &EngineError{Type: ErrConvert, Message: "org: parse failed", Err: err}
	}
	var out outline
	seen := make(map[string]int)
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "*") {
			continue
		}
		stars := 0
		for stars < len(trimmed) && trimmed[stars] == '*' {
			stars++
		}
		if stars >= len(trimmed) || trimmed[stars] != ' ' {
			continue
		}
		label := strings.TrimSpace(trimmed[stars:])
		if label == "" {
			continue
		}
		addOutlineNode(&out, seen, outlineNode{ID: slugify(label), Label: label, Level: stars})
	}
	return out, nil
}

// addOutlineNode appends a node unless the id was already recorded, keeping
// first-wins labels and deterministic ids via a numeric suffix when a new
// label slugs to a taken id.
func addOutlineNode(out *outline, seen map[string]int, n outlineNode) {
	if n.ID == "" {
		return
	}
	if _, ok := seen[n.ID]; ok {
		return
	}
	seen[n.ID] = len(out.Nodes)
	out.Nodes = append(out.Nodes, n)
}

func slugify(label string) string {
	label = trimQuotes(label)
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(label) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func trimQuotes(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

func extractMarkdownText(n mdast.Node, src []byte) string {
	var b bytes.Buffer
	_ = mdast.Walk(n, func(nn mdast.Node, entering bool) (mdast.WalkStatus, error) {
		if !entering {
			return mdast.WalkContinue, nil
		}
		if tn, ok := nn.(*mdast.Text); ok {
			b.Write(tn.Segment.Value(src))
		}
		return mdast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
