package wiki

// PruneAndRenumber drops sections whose title is not allowed, pages citing
// no existing file, dangling references and sections left without pages,
// then renumbers sections and pages to section-1..N and page-1..M in their
// current order. Running it on its own output returns the same tree.
func PruneAndRenumber(s Structure, allowed func(title string) bool, files map[string]bool) Structure {
	in := s.Clone()

	var sections []Section
	seenSection := make(map[string]bool)
	for _, sec := range in.Sections {
		if sec.ID == "" || seenSection[sec.ID] || sec.Title == "" || !allowed(sec.Title) {
			continue
		}
		seenSection[sec.ID] = true
		sections = append(sections, sec)
	}

	var pages []Page
	seenPage := make(map[string]bool)
	for _, p := range in.Pages {
		if p.ID == "" || seenPage[p.ID] {
			continue
		}
		seenPage[p.ID] = true
		p.Files = existingFiles(p.Files, files)
		if len(p.Files) == 0 {
			continue
		}
		pages = append(pages, p)
	}

	// Removing a page can empty a section and removing a section can orphan
	// its pages, so iterate until nothing changes.
	for {
		sectionIDs := make(map[string]bool, len(sections))
		owner := make(map[string]string)
		for _, sec := range sections {
			sectionIDs[sec.ID] = true
			for _, ref := range sec.PageRefs {
				if _, ok := owner[ref]; !ok {
					owner[ref] = sec.ID
				}
			}
		}

		keptPages := pages[:0:0]
		for _, p := range pages {
			if !sectionIDs[p.Parent] {
				sid, ok := owner[p.ID]
				if !ok {
					continue
				}
				p.Parent = sid
			}
			keptPages = append(keptPages, p)
		}

		pageIDs := make(map[string]bool, len(keptPages))
		for _, p := range keptPages {
			pageIDs[p.ID] = true
		}

		keptSections := sections[:0:0]
		for _, sec := range sections {
			sec.PageRefs = filterRefs(sec.PageRefs, pageIDs, "")
			if len(sec.PageRefs) > 0 {
				keptSections = append(keptSections, sec)
			}
		}

		changed := len(keptPages) != len(pages) || len(keptSections) != len(sections)
		pages, sections = keptPages, keptSections
		if !changed {
			break
		}
	}

	sectionIDs := make(map[string]bool, len(sections))
	for _, sec := range sections {
		sectionIDs[sec.ID] = true
	}
	pageIDs := make(map[string]bool, len(pages))
	for _, p := range pages {
		pageIDs[p.ID] = true
	}
	for i := range sections {
		sections[i].SectionRefs = filterRefs(sections[i].SectionRefs, sectionIDs, sections[i].ID)
	}
	for i := range pages {
		pages[i].Related = filterRefs(pages[i].Related, pageIDs, pages[i].ID)
		pages[i].Importance = NormalizeImportance(pages[i].Importance)
	}

	return renumber(Structure{
		Title:       in.Title,
		Description: in.Description,
		Sections:    sections,
		Pages:       pages,
	})
}

func renumber(s Structure) Structure {
	secMap := make(map[string]string, len(s.Sections))
	for i, sec := range s.Sections {
		secMap[sec.ID] = SectionID(i + 1)
	}
	pageMap := make(map[string]string, len(s.Pages))
	for i, p := range s.Pages {
		pageMap[p.ID] = PageID(i + 1)
	}

	out := Structure{
		Title:       s.Title,
		Description: s.Description,
		Sections:    make([]Section, 0, len(s.Sections)),
		Pages:       make([]Page, 0, len(s.Pages)),
	}
	for _, sec := range s.Sections {
		out.Sections = append(out.Sections, Section{
			ID:          secMap[sec.ID],
			Title:       sec.Title,
			PageRefs:    remap(sec.PageRefs, pageMap),
			SectionRefs: remap(sec.SectionRefs, secMap),
		})
	}
	for _, p := range s.Pages {
		p.ID = pageMap[p.ID]
		p.Parent = secMap[p.Parent]
		p.Related = remap(p.Related, pageMap)
		out.Pages = append(out.Pages, p)
	}
	return out
}

// Reconcile repairs the parent/page-ref relation of a tree that did not
// come from Merge: pages missing from their parent's refs are appended, and
// pages with an unknown parent adopt the first section that references them.
func Reconcile(s Structure) Structure {
	out := s.Clone()

	owner := make(map[string]string)
	sectionIdx := make(map[string]int)
	for i, sec := range out.Sections {
		sectionIdx[sec.ID] = i
		for _, ref := range sec.PageRefs {
			if _, ok := owner[ref]; !ok {
				owner[ref] = sec.ID
			}
		}
	}
	for i, p := range out.Pages {
		if _, ok := sectionIdx[p.Parent]; !ok {
			if sid, ok := owner[p.ID]; ok {
				out.Pages[i].Parent = sid
			}
			continue
		}
		sec := &out.Sections[sectionIdx[p.Parent]]
		if !containsString(sec.PageRefs, p.ID) {
			sec.PageRefs = append(sec.PageRefs, p.ID)
		}
	}
	return out
}

func existingFiles(in []string, files map[string]bool) []string {
	kept := make([]string, 0, len(in))
	for _, f := range in {
		if files[f] {
			kept = append(kept, f)
		}
	}
	return sortedUnique(kept)
}

func filterRefs(refs []string, valid map[string]bool, self string) []string {
	out := make([]string, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, r := range refs {
		if r == self || !valid[r] || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

func remap(refs []string, m map[string]string) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if n, ok := m[r]; ok {
			out = append(out, n)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
