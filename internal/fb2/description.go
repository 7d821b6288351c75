package fb2

import (
	"strings"

	"github.com/rivo/uniseg"
)

// Description holds the title-info fields used for language detection
// and name extraction.
type Description struct {
	Title   string
	Authors []string
	Lang    string
}

// Description reads description/title-info.
func (d *Document) Description() Description {
	var desc Description
	info := d.root.FindElement("./description/title-info")
	if info == nil {
		return desc
	}
	if el := info.SelectElement("book-title"); el != nil {
		desc.Title = strings.TrimSpace(TextOf(el))
	}
	if el := info.SelectElement("lang"); el != nil {
		desc.Lang = strings.ToLower(strings.TrimSpace(TextOf(el)))
	}
	for _, author := range info.SelectElements("author") {
		var parts []string
		for _, tag := range []string{"first-name", "middle-name", "last-name"} {
			if el := author.SelectElement(tag); el != nil {
				if s := strings.TrimSpace(TextOf(el)); s != "" {
					parts = append(parts, s)
				}
			}
		}
		if len(parts) == 0 {
			if el := author.SelectElement("nickname"); el != nil {
				parts = append(parts, strings.TrimSpace(TextOf(el)))
			}
		}
		if name := strings.Join(parts, " "); name != "" {
			desc.Authors = append(desc.Authors, name)
		}
	}
	return desc
}

// Sample joins body text until about limit grapheme clusters are collected.
// The result never splits a grapheme cluster.
func (d *Document) Sample(limit int) string {
	var sb strings.Builder
	count := 0
	for _, p := range d.TextUnits() {
		if count >= limit {
			break
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
			count++
		}
		gr := uniseg.NewGraphemes(p.Text)
		for count < limit && gr.Next() {
			sb.WriteString(gr.Str())
			count++
		}
	}
	return sb.String()
}
