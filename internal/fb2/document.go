// Package fb2 reads, edits and writes FictionBook 2 documents.
package fb2

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/beevik/etree"
	"github.com/ximaera/fb2lingo/internal/files"
	"golang.org/x/text/encoding/htmlindex"
)

const (
	// Namespace is the FictionBook 2.0 XML namespace.
	Namespace = "http://www.gribuser.ru/xml/fictionbook/2.0"
	// XLinkNamespace is the namespace used by note references.
	XLinkNamespace = "http://www.w3.org/1999/xlink"

	notesBodyName    = "notes"
	defaultXLinkName = "l"
)

// Document is a parsed FB2 book.
type Document struct {
	doc   *etree.Document
	root  *etree.Element
	notes *etree.Element
}

// Paragraph is one <p> element found under a <body>.
type Paragraph struct {
	// Seq is the position of the paragraph among all body paragraphs.
	Seq  int
	Text string
	el   *etree.Element
}

// Element returns the underlying tree node.
func (p *Paragraph) Element() *etree.Element {
	return p.el
}

// Load reads an FB2 document from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fb2 file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Document from raw XML. Legacy encodings declared in the
// XML prolog (windows-1251, koi8-r, ...) are decoded to UTF-8.
func Parse(data []byte) (*Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse fb2 xml: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("fb2 document has no root element")
	}
	if root.Tag != "FictionBook" {
		return nil, fmt.Errorf("unexpected root element %q, want FictionBook", root.Tag)
	}
	if len(root.SelectElements("body")) == 0 {
		return nil, fmt.Errorf("fb2 document has no body")
	}
	return &Document{doc: doc, root: root}, nil
}

func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported fb2 encoding %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

// Paragraphs returns every <p> under every <body>, in document order.
func (d *Document) Paragraphs() []*Paragraph {
	var out []*Paragraph
	for _, body := range d.root.SelectElements("body") {
		collectParagraphs(body, &out)
	}
	return out
}

// TextUnits returns the paragraphs that carry non-empty text.
func (d *Document) TextUnits() []*Paragraph {
	all := d.Paragraphs()
	units := make([]*Paragraph, 0, len(all))
	for _, p := range all {
		if p.Text != "" {
			units = append(units, p)
		}
	}
	return units
}

func collectParagraphs(el *etree.Element, out *[]*Paragraph) {
	for _, child := range el.ChildElements() {
		if child.Tag == "p" {
			*out = append(*out, &Paragraph{
				Seq:  len(*out),
				Text: strings.TrimSpace(TextOf(child)),
				el:   child,
			})
			continue
		}
		collectParagraphs(child, out)
	}
}

// TextOf concatenates all character data below el in document order.
func TextOf(el *etree.Element) string {
	var sb strings.Builder
	appendText(&sb, el)
	return sb.String()
}

func appendText(sb *strings.Builder, el *etree.Element) {
	for _, tok := range el.Child {
		switch t := tok.(type) {
		case *etree.CharData:
			sb.WriteString(t.Data)
		case *etree.Element:
			appendText(sb, t)
		}
	}
}

// Bytes serializes the document as UTF-8 with an XML declaration.
func (d *Document) Bytes() ([]byte, error) {
	d.ensureDeclaration()
	var buf bytes.Buffer
	if _, err := d.doc.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize fb2: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the document to path atomically.
func (d *Document) Save(path string) error {
	data, err := d.Bytes()
	if err != nil {
		return err
	}
	return files.AtomicWrite(path, data, 0644)
}

func (d *Document) ensureDeclaration() {
	const decl = `version="1.0" encoding="UTF-8"`
	for _, tok := range d.doc.Child {
		if pi, ok := tok.(*etree.ProcInst); ok && pi.Target == "xml" {
			pi.Inst = decl
			return
		}
	}
	d.doc.InsertChildAt(0, etree.NewText("\n"))
	d.doc.InsertChildAt(0, etree.NewProcInst("xml", decl))
}
