package wiki

import (
	"errors"
	"fmt"
)

// Validate checks the invariants every canonical tree must satisfy and
// reports each violation.
func Validate(s Structure, files map[string]bool) error {
	var errs []error

	sectionIDs := make(map[string]bool, len(s.Sections))
	for i, sec := range s.Sections {
		if want := SectionID(i + 1); sec.ID != want {
			errs = append(errs, fmt.Errorf("section %d has id %q, want %q", i+1, sec.ID, want))
		}
		sectionIDs[sec.ID] = true
	}
	pageIDs := make(map[string]bool, len(s.Pages))
	for i, p := range s.Pages {
		if want := PageID(i + 1); p.ID != want {
			errs = append(errs, fmt.Errorf("page %d has id %q, want %q", i+1, p.ID, want))
		}
		pageIDs[p.ID] = true
	}

	for _, sec := range s.Sections {
		if len(sec.PageRefs) == 0 {
			errs = append(errs, fmt.Errorf("section %s has no pages", sec.ID))
		}
		for _, ref := range sec.PageRefs {
			if !pageIDs[ref] {
				errs = append(errs, fmt.Errorf("section %s references missing page %s", sec.ID, ref))
			}
		}
		for _, ref := range sec.SectionRefs {
			if !sectionIDs[ref] {
				errs = append(errs, fmt.Errorf("section %s references missing section %s", sec.ID, ref))
			}
		}
	}

	for _, p := range s.Pages {
		if !sectionIDs[p.Parent] {
			errs = append(errs, fmt.Errorf("page %s has unknown parent section %q", p.ID, p.Parent))
		}
		if len(p.Files) == 0 {
			errs = append(errs, fmt.Errorf("page %s cites no files", p.ID))
		}
		for _, f := range p.Files {
			if !files[f] {
				errs = append(errs, fmt.Errorf("page %s cites missing file %s", p.ID, f))
			}
		}
		for _, r := range p.Related {
			if !pageIDs[r] {
				errs = append(errs, fmt.Errorf("page %s relates to missing page %s", p.ID, r))
			}
		}
	}
	return errors.Join(errs...)
}
