package catalog

import (
	"github.com/neu-planner/backend/internal/registry"
)

// Index is an immutable, ordered course catalog keyed by course code.
type Index struct {
	courses []CourseRecord
	byCode  map[string]int
}

// Ingest builds an Index keeping the first record seen for each
// subject+number. Records missing either part are skipped.
func Ingest(records []CourseRecord) *Index {
	idx := &Index{
		courses: make([]CourseRecord, 0, len(records)),
		byCode:  make(map[string]int, len(records)),
	}
	for _, rec := range records {
		if rec.Subject == "" || rec.Number == "" {
			continue
		}
		code := rec.Code()
		if _, ok := idx.byCode[code]; ok {
			continue
		}
		if rec.Credits <= 0 {
			rec.Credits = DefaultCredits
		}
		idx.byCode[code] = len(idx.courses)
		idx.courses = append(idx.courses, rec)
	}
	return idx
}

func IngestRaw(raw []registry.RawCourseRecord) *Index {
	records := make([]CourseRecord, 0, len(raw))
	for _, r := range raw {
		records = append(records, FromRaw(r))
	}
	return Ingest(records)
}

func (idx *Index) Lookup(code string) (CourseRecord, bool) {
	i, ok := idx.byCode[NormalizeCode(code)]
	if !ok {
		return CourseRecord{}, false
	}
	return idx.courses[i], true
}

// All returns the catalog in ingestion order.
func (idx *Index) All() []CourseRecord {
	return append([]CourseRecord(nil), idx.courses...)
}

func (idx *Index) Len() int {
	return len(idx.courses)
}

func (idx *Index) BySubject(subject string) []CourseRecord {
	var out []CourseRecord
	for _, c := range idx.courses {
		if c.Subject == subject {
			out = append(out, c)
		}
	}
	return out
}

// Subjects lists subjects in order of first appearance.
func (idx *Index) Subjects() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range idx.courses {
		if _, ok := seen[c.Subject]; ok {
			continue
		}
		seen[c.Subject] = struct{}{}
		out = append(out, c.Subject)
	}
	return out
}

// Without returns a new Index excluding the given codes.
func (idx *Index) Without(codes []string) *Index {
	if len(codes) == 0 {
		return idx
	}
	skip := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		skip[NormalizeCode(c)] = struct{}{}
	}

	kept := make([]CourseRecord, 0, len(idx.courses))
	for _, c := range idx.courses {
		if _, ok := skip[c.Code()]; !ok {
			kept = append(kept, c)
		}
	}
	return Ingest(kept)
}
