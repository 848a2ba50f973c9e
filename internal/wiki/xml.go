package wiki

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// ErrNoStructure is returned when text holds no usable wiki structure.
var ErrNoStructure = errors.New("no wiki structure found")

const (
	partialRoot   = "partial_wiki"
	structureRoot = "wiki_structure"
)

type xmlPartial struct {
	XMLName  xml.Name            `xml:"partial_wiki"`
	Sections []xmlPartialSection `xml:"sections>section"`
}

type xmlPartialSection struct {
	ID          string           `xml:"id,attr"`
	Title       string           `xml:"title"`
	Pages       []xmlPartialPage `xml:"pages>page"`
	SectionRefs []string         `xml:"subsections>section_ref"`
}

type xmlPartialPage struct {
	ID          string   `xml:"id,attr"`
	Title       string   `xml:"title"`
	Description string   `xml:"description"`
	Importance  string   `xml:"importance"`
	Files       []string `xml:"relevant_files>file_path"`
	Related     []string `xml:"related_pages>related"`
}

type xmlStructure struct {
	XMLName     xml.Name     `xml:"wiki_structure"`
	Title       string       `xml:"title"`
	Description string       `xml:"description"`
	Sections    []xmlSection `xml:"sections>section"`
	Pages       []xmlPage    `xml:"pages>page"`
}

type xmlSection struct {
	ID          string   `xml:"id,attr"`
	Title       string   `xml:"title"`
	PageRefs    []string `xml:"pages>page_ref"`
	SectionRefs []string `xml:"subsections>section_ref"`
}

type xmlPage struct {
	ID          string   `xml:"id,attr"`
	Title       string   `xml:"title"`
	Description string   `xml:"description"`
	Importance  string   `xml:"importance"`
	Files       []string `xml:"relevant_files>file_path"`
	Related     []string `xml:"related_pages>related"`
	Parent      string   `xml:"parent_section"`
}

// ExtractTagged returns the outermost <root>...</root> span of text, or text
// wrapped in root tags when the markers are missing.
func ExtractTagged(text, root string) string {
	t := strings.TrimSpace(text)
	open := "<" + root
	closing := "</" + root + ">"
	start := strings.Index(t, open)
	end := strings.LastIndex(t, closing)
	if start >= 0 && end > start {
		return strings.TrimSpace(t[start : end+len(closing)])
	}
	return open + ">\n" + text + "\n" + closing
}

// decodeLenient decodes generated XML, tolerating bare ampersands, HTML
// entities and unclosed tags.
func decodeLenient(text string, v any) error {
	d := xml.NewDecoder(strings.NewReader(text))
	d.Strict = false
	d.AutoClose = xml.HTMLAutoClose
	d.Entity = xml.HTMLEntity
	return d.Decode(v)
}

// ParsePartial reads generation output for one shard. It never fails: text
// that cannot be parsed yields a partial with no sections. Ids are
// namespaced by shard; missing ids are synthesized.
func ParsePartial(shard, text string) Partial {
	out := Partial{Shard: shard}

	var doc xmlPartial
	if err := decodeLenient(ExtractTagged(text, partialRoot), &doc); err != nil {
		return out
	}

	pageSeq := 0
	for i, s := range doc.Sections {
		local := strings.TrimSpace(s.ID)
		if local == "" {
			local = fmt.Sprintf("#sec-%d", i+1)
		}
		sec := PartialSection{
			ID:    NamespaceID(shard, local),
			Title: strings.TrimSpace(s.Title),
		}
		for _, ref := range trimAll(s.SectionRefs) {
			sec.SectionRefs = append(sec.SectionRefs, NamespaceID(shard, ref))
		}
		for _, p := range s.Pages {
			pageSeq++
			pid := strings.TrimSpace(p.ID)
			if pid == "" {
				pid = fmt.Sprintf("#page-%d", pageSeq)
			}
			page := PartialPage{
				ID:          NamespaceID(shard, pid),
				Title:       strings.TrimSpace(p.Title),
				Description: strings.TrimSpace(p.Description),
				Importance:  NormalizeImportance(p.Importance),
				Files:       trimAll(p.Files),
			}
			for _, r := range trimAll(p.Related) {
				page.Related = append(page.Related, NamespaceID(shard, r))
			}
			sec.Pages = append(sec.Pages, page)
		}
		out.Sections = append(out.Sections, sec)
	}
	return out
}

// ParseStructure reads a <wiki_structure> document, typically generation
// output, without any repair beyond whitespace trimming.
func ParseStructure(text string) (Structure, error) {
	var doc xmlStructure
	if err := decodeLenient(ExtractTagged(text, structureRoot), &doc); err != nil {
		return Structure{}, fmt.Errorf("%w: %v", ErrNoStructure, err)
	}

	s := Structure{
		Title:       strings.TrimSpace(doc.Title),
		Description: strings.TrimSpace(doc.Description),
		Sections:    make([]Section, 0, len(doc.Sections)),
		Pages:       make([]Page, 0, len(doc.Pages)),
	}
	for _, sec := range doc.Sections {
		s.Sections = append(s.Sections, Section{
			ID:          strings.TrimSpace(sec.ID),
			Title:       strings.TrimSpace(sec.Title),
			PageRefs:    trimAll(sec.PageRefs),
			SectionRefs: trimAll(sec.SectionRefs),
		})
	}
	for _, p := range doc.Pages {
		s.Pages = append(s.Pages, Page{
			ID:          strings.TrimSpace(p.ID),
			Title:       strings.TrimSpace(p.Title),
			Description: strings.TrimSpace(p.Description),
			Importance:  NormalizeImportance(p.Importance),
			Files:       trimAll(p.Files),
			Related:     trimAll(p.Related),
			Parent:      strings.TrimSpace(p.Parent),
		})
	}
	if len(s.Sections) == 0 && len(s.Pages) == 0 {
		return s, ErrNoStructure
	}
	return s, nil
}

// MarshalXML renders s as an indented <wiki_structure> document.
func MarshalXML(s Structure) ([]byte, error) {
	doc := xmlStructure{Title: s.Title, Description: s.Description}
	for _, sec := range s.Sections {
		doc.Sections = append(doc.Sections, xmlSection{
			ID: sec.ID, Title: sec.Title, PageRefs: sec.PageRefs, SectionRefs: sec.SectionRefs,
		})
	}
	for _, p := range s.Pages {
		doc.Pages = append(doc.Pages, xmlPage{
			ID: p.ID, Title: p.Title, Description: p.Description, Importance: p.Importance,
			Files: p.Files, Related: p.Related, Parent: p.Parent,
		})
	}
	return xml.MarshalIndent(doc, "", "  ")
}

// MarshalPartialXML renders a partial in the shape generation returns. Ids
// are written without their shard namespace.
func MarshalPartialXML(p Partial) ([]byte, error) {
	strip := func(id string) string { return strings.TrimPrefix(id, p.Shard+"::") }
	doc := xmlPartial{}
	for _, s := range p.Sections {
		xs := xmlPartialSection{ID: strip(s.ID), Title: s.Title}
		for _, ref := range s.SectionRefs {
			xs.SectionRefs = append(xs.SectionRefs, strip(ref))
		}
		for _, page := range s.Pages {
			xp := xmlPartialPage{
				ID: strip(page.ID), Title: page.Title, Description: page.Description,
				Importance: page.Importance, Files: page.Files,
			}
			for _, r := range page.Related {
				xp.Related = append(xp.Related, strip(r))
			}
			xs.Pages = append(xs.Pages, xp)
		}
		doc.Sections = append(doc.Sections, xs)
	}
	return xml.MarshalIndent(doc, "", "  ")
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
