package reader

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/joseph-ayodele/order-transformer/internal/entity"
)

func (r *Reader) readHTML(doc *entity.RawDocument, b []byte) error {
	text, enc, err := decodeText(b, r.encodings)
	if err != nil {
		return err
	}
	root, err := html.Parse(strings.NewReader(text))
	if err != nil {
		return fmt.Errorf("html parse: %w", err)
	}
	doc.Root = root
	doc.Encoding = enc
	doc.Lines = visibleLines(root)
	return nil
}

var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Tr: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Table: true, atom.Tbody: true, atom.Thead: true, atom.Section: true, atom.Header: true,
	atom.Footer: true, atom.Form: true, atom.Hr: true, atom.Ul: true, atom.Ol: true, atom.Dt: true, atom.Dd: true,
}

// visibleLines flattens the element tree to text, one line per block element.
// Table cells on the same row are separated by a single space.
func visibleLines(root *html.Node) []string {
	var lines []string
	var sb strings.Builder
	flush := func() {
		lines = append(lines, sb.String())
		sb.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head:
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		block := n.Type == html.ElementNode && blockAtoms[n.DataAtom]
		if block {
			flush()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && (n.DataAtom == atom.Td || n.DataAtom == atom.Th) {
			sb.WriteByte(' ')
		}
		if block {
			flush()
		}
	}
	walk(root)
	flush()
	return normalizeLines(lines)
}
