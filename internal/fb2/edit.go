package fb2

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// NewParagraph returns a detached <p> in the same namespace as like,
// holding only text.
func (d *Document) NewParagraph(like *Paragraph, text string) *etree.Element {
	p := etree.NewElement("p")
	if like != nil {
		p.Space = like.el.Space
	}
	p.SetText(text)
	return p
}

// Replace swaps the paragraph's element for el at the same position.
// The paragraph handle is updated to point at el.
func (d *Document) Replace(p *Paragraph, el *etree.Element) error {
	parent := p.el.Parent()
	if parent == nil {
		return fmt.Errorf("paragraph %d is detached", p.Seq)
	}
	idx := p.el.Index()
	parent.RemoveChildAt(idx)
	parent.InsertChildAt(idx, el)
	p.el = el
	return nil
}

// InsertAfter places el as the next sibling of the paragraph, reusing the
// whitespace that follows the paragraph so indentation stays consistent.
func (d *Document) InsertAfter(p *Paragraph, el *etree.Element) error {
	parent := p.el.Parent()
	if parent == nil {
		return fmt.Errorf("paragraph %d is detached", p.Seq)
	}
	idx := p.el.Index()
	parent.InsertChildAt(idx+1, el)
	if idx+2 < len(parent.Child) {
		if ws, ok := parent.Child[idx+2].(*etree.CharData); ok && strings.TrimSpace(ws.Data) == "" {
			parent.InsertChildAt(idx+1, etree.NewText(ws.Data))
		}
	}
	return nil
}

// NotesBody returns the <body name="notes"> element, creating it after the
// last body on first use. The same element is returned on every call.
func (d *Document) NotesBody() *etree.Element {
	if d.notes != nil {
		return d.notes
	}
	bodies := d.root.SelectElements("body")
	for _, b := range bodies {
		if b.SelectAttrValue("name", "") == notesBodyName {
			d.notes = b
			return b
		}
	}

	notes := etree.NewElement("body")
	notes.Space = d.root.Space
	notes.CreateAttr("name", notesBodyName)
	title := notes.CreateElement(d.qualify("title"))
	title.CreateElement(d.qualify("p")).SetText("Notes")

	last := bodies[len(bodies)-1]
	d.root.InsertChildAt(last.Index()+1, notes)
	d.notes = notes
	return notes
}

// IDs returns the set of id attribute values used anywhere in the book.
func (d *Document) IDs() map[string]bool {
	ids := make(map[string]bool)
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		if id := el.SelectAttrValue("id", ""); id != "" {
			ids[id] = true
		}
		for _, child := range el.ChildElements() {
			walk(child)
		}
	}
	walk(d.root)
	return ids
}

// AppendNote adds a note section with the given id to the notes body.
func (d *Document) AppendNote(id, title, text string) *etree.Element {
	section := d.NotesBody().CreateElement(d.qualify("section"))
	section.CreateAttr("id", id)
	section.CreateElement(d.qualify("title")).CreateElement(d.qualify("p")).SetText(title)
	section.CreateElement(d.qualify("p")).SetText(text)
	return section
}

// AppendNoteRef appends an <a> note reference pointing at id to el.
func (d *Document) AppendNoteRef(el *etree.Element, id, label string) *etree.Element {
	a := el.CreateElement(d.qualify("a"))
	a.CreateAttr(d.XLinkPrefix()+":href", "#"+id)
	a.CreateAttr("type", "note")
	a.SetText(label)
	return a
}

// XLinkPrefix returns the prefix bound to the xlink namespace on the root,
// declaring xmlns:l when the document has none.
func (d *Document) XLinkPrefix() string {
	for _, attr := range d.root.Attr {
		if attr.Space == "xmlns" && attr.Value == XLinkNamespace {
			return attr.Key
		}
	}
	d.root.CreateAttr("xmlns:"+defaultXLinkName, XLinkNamespace)
	return defaultXLinkName
}

func (d *Document) qualify(tag string) string {
	if d.root.Space == "" {
		return tag
	}
	return d.root.Space + ":" + tag
}
