// Package graphml encodes chapter relationship graphs as GraphML and reads
// them back with XPath.
package graphml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/FocuswithJustin/NarrativeCues/core/relations"
)

// Namespace is the GraphML XML namespace.
const Namespace = "http://graphml.graphdrawing.org/xmlns"

// Graph is one chapter's relationship graph.
type Graph struct {
	Chapter int
	Nodes   []string
	Edges   []relations.Edge
}

var (
	graphExpr = xpath.MustCompile(`/*[local-name()='graphml']/*[local-name()='graph']`)
	nodeExpr  = xpath.MustCompile(`*[local-name()='node']`)
	edgeExpr  = xpath.MustCompile(`*[local-name()='edge']`)
	dataExpr  = xpath.MustCompile(`*[local-name()='data']`)
)

// New builds a Graph whose node list is every endpoint of edges, sorted.
func New(chapter int, edges []relations.Edge) Graph {
	seen := make(map[string]bool)
	var nodes []string
	for _, e := range edges {
		for _, n := range []string{e.Source, e.Target} {
			if !seen[n] {
				seen[n] = true
				nodes = append(nodes, n)
			}
		}
	}
	sort.Strings(nodes)
	return Graph{Chapter: chapter, Nodes: nodes, Edges: edges}
}

// Encode writes g as an indented GraphML document.
func Encode(w io.Writer, g Graph) error {
	var buf bytes.Buffer
	writeNode(&buf, build(g), 0, "  ")
	_, err := w.Write(buf.Bytes())
	return err
}

func build(g Graph) *xmlquery.Node {
	doc := &xmlquery.Node{Type: xmlquery.DocumentNode}
	decl := element(xmlquery.DeclarationNode, "xml", "version", "1.0", "encoding", "UTF-8")
	xmlquery.AddChild(doc, decl)

	root := element(xmlquery.ElementNode, "graphml", "xmlns", Namespace)
	xmlquery.AddChild(doc, root)
	for _, key := range [][2]string{{"kind", "string"}, {"strength", "int"}, {"verses", "string"}} {
		xmlquery.AddChild(root, element(xmlquery.ElementNode, "key",
			"id", key[0], "for", "edge", "attr.name", key[0], "attr.type", key[1]))
	}

	graph := element(xmlquery.ElementNode, "graph",
		"id", fmt.Sprintf("chapter-%d", g.Chapter), "edgedefault", "undirected")
	xmlquery.AddChild(root, graph)
	for _, n := range g.Nodes {
		xmlquery.AddChild(graph, element(xmlquery.ElementNode, "node", "id", n))
	}
	for _, e := range g.Edges {
		edge := element(xmlquery.ElementNode, "edge",
			"source", e.Source, "target", e.Target,
			"directed", strconv.FormatBool(e.Kind == relations.Causal))
		xmlquery.AddChild(graph, edge)
		xmlquery.AddChild(edge, data("kind", string(e.Kind)))
		xmlquery.AddChild(edge, data("strength", strconv.Itoa(e.Strength)))
		xmlquery.AddChild(edge, data("verses", joinInts(e.Verses)))
	}
	return doc
}

func element(typ xmlquery.NodeType, name string, attrs ...string) *xmlquery.Node {
	n := &xmlquery.Node{Type: typ, Data: name}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, xmlquery.Attr{Name: xml.Name{Local: attrs[i]}, Value: attrs[i+1]})
	}
	return n
}

func data(key, value string) *xmlquery.Node {
	n := element(xmlquery.ElementNode, "data", "key", key)
	xmlquery.AddChild(n, &xmlquery.Node{Type: xmlquery.TextNode, Data: value})
	return n
}

func writeNode(w *bytes.Buffer, n *xmlquery.Node, depth int, indent string) {
	switch n.Type {
	case xmlquery.DocumentNode:
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			writeNode(w, child, depth, indent)
		}

	case xmlquery.DeclarationNode:
		w.WriteString("<?xml")
		writeAttrs(w, n.Attr)
		w.WriteString("?>\n")

	case xmlquery.ElementNode:
		w.WriteString(strings.Repeat(indent, depth))
		w.WriteString("<" + n.Data)
		writeAttrs(w, n.Attr)

		if n.FirstChild == nil {
			w.WriteString("/>\n")
			return
		}
		if n.FirstChild.Type == xmlquery.TextNode && n.FirstChild.NextSibling == nil {
			w.WriteString(">")
			_ = xml.EscapeText(w, []byte(n.FirstChild.Data))
			w.WriteString("</" + n.Data + ">\n")
			return
		}
		w.WriteString(">\n")
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			writeNode(w, child, depth+1, indent)
		}
		w.WriteString(strings.Repeat(indent, depth))
		w.WriteString("</" + n.Data + ">\n")
	}
}

func writeAttrs(w *bytes.Buffer, attrs []xmlquery.Attr) {
	for _, a := range attrs {
		w.WriteString(" " + a.Name.Local + `="`)
		_ = xml.EscapeText(w, []byte(a.Value))
		w.WriteString(`"`)
	}
}

// Decode reads the first graph of a GraphML document.
func Decode(r io.Reader) (Graph, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return Graph{}, fmt.Errorf("parsing GraphML: %w", err)
	}
	graph := xmlquery.QuerySelector(doc, graphExpr)
	if graph == nil {
		return Graph{}, fmt.Errorf("parsing GraphML: no graph element")
	}

	var g Graph
	if id := graph.SelectAttr("id"); id != "" {
		if c, err := strconv.Atoi(strings.TrimPrefix(id, "chapter-")); err == nil {
			g.Chapter = c
		}
	}
	for _, n := range xmlquery.QuerySelectorAll(graph, nodeExpr) {
		g.Nodes = append(g.Nodes, n.SelectAttr("id"))
	}
	for _, n := range xmlquery.QuerySelectorAll(graph, edgeExpr) {
		e, err := decodeEdge(n)
		if err != nil {
			return Graph{}, err
		}
		g.Edges = append(g.Edges, e)
	}
	return g, nil
}

func decodeEdge(n *xmlquery.Node) (relations.Edge, error) {
	e := relations.Edge{Source: n.SelectAttr("source"), Target: n.SelectAttr("target")}
	for _, d := range xmlquery.QuerySelectorAll(n, dataExpr) {
		value := strings.TrimSpace(d.InnerText())
		switch d.SelectAttr("key") {
		case "kind":
			e.Kind = relations.Kind(value)
		case "strength":
			s, err := strconv.Atoi(value)
			if err != nil {
				return relations.Edge{}, fmt.Errorf("edge %s-%s strength %q: %w", e.Source, e.Target, value, err)
			}
			e.Strength = s
		case "verses":
			for _, f := range strings.Fields(value) {
				v, err := strconv.Atoi(f)
				if err != nil {
					return relations.Edge{}, fmt.Errorf("edge %s-%s verse %q: %w", e.Source, e.Target, f, err)
				}
				e.Verses = append(e.Verses, v)
			}
		}
	}
	return e, nil
}

func joinInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}
