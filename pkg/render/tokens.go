package render

import (
	"encoding/xml"
	"io"
	"strings"
)

// tokenSource is satisfied by *xml.Decoder and by replayed subtrees.
type tokenSource interface {
	Token() (xml.Token, error)
}

type replay struct {
	tokens []xml.Token
	pos    int
}

func (r *replay) Token() (xml.Token, error) {
	if r.pos >= len(r.tokens) {
		return nil, io.EOF
	}
	tok := r.tokens[r.pos]
	r.pos++
	return tok, nil
}

// capture reads the content of the element whose start tag was just read,
// consuming its end tag. The returned tokens are copies.
func capture(src tokenSource) ([]xml.Token, error) {
	var tokens []xml.Token
	depth := 0
	for {
		tok, err := src.Token()
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return tokens, nil
			}
			depth--
		}
		tokens = append(tokens, xml.CopyToken(tok))
	}
}

// skip discards the content of the element whose start tag was just read.
func skip(src tokenSource) error {
	depth := 0
	for {
		tok, err := src.Token()
		if err != nil {
			return unexpectedEOF(err)
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return nil
			}
			depth--
		}
	}
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// node is a small in-memory element used for control subtrees.
type node struct {
	name     xml.Name
	attrs    []xml.Attr
	children []*node
	text     strings.Builder
}

// buildTree reads the content of start into a node.
func buildTree(src tokenSource, start xml.StartElement) (*node, error) {
	root := &node{name: start.Name, attrs: append([]xml.Attr(nil), start.Attr...)}
	stack := []*node{root}
	for {
		tok, err := src.Token()
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		current := stack[len(stack)-1]
		switch t := tok.(type) {
		case xml.StartElement:
			child := &node{name: t.Name, attrs: append([]xml.Attr(nil), t.Attr...)}
			current.children = append(current.children, child)
			stack = append(stack, child)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return root, nil
			}
		case xml.CharData:
			current.text.Write(t)
		}
	}
}

func (n *node) attr(local string) string {
	for _, a := range n.attrs {
		if a.Name.Space == "" && a.Name.Local == local {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

func (n *node) child(space, local string) *node {
	for _, c := range n.children {
		if c.name.Space == space && c.name.Local == local {
			return c
		}
	}
	return nil
}

// content returns the trimmed text of n and its descendants.
func (n *node) content() string {
	var b strings.Builder
	n.collect(&b)
	return strings.Join(strings.Fields(b.String()), " ")
}

func (n *node) collect(b *strings.Builder) {
	b.WriteString(n.text.String())
	b.WriteByte(' ')
	for _, c := range n.children {
		c.collect(b)
	}
}
