package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/neu-planner/backend/internal/cache"
	"github.com/neu-planner/backend/internal/catalog"
	"github.com/neu-planner/backend/internal/validator"
	"github.com/neu-planner/backend/pkg/logger"
)

const (
	defaultMaxResults = 10
	maxMaxResults     = 50
	relevanceWeight   = 0.8
	offeredWeight     = 0.2
)

type ScheduleRequest struct {
	Courses  []string `json:"courses"`
	Semester string   `json:"semester"`
	Year     int      `json:"year"`
	Term     string   `json:"term,omitempty"`
}

type ScheduleResult struct {
	validator.ScheduleResult
	Semester string `json:"semester"`
	Year     int    `json:"year"`
	TermCode string `json:"term_code"`
}

// ValidateSchedule checks one semester's course list against the catalog.
func (r *Runner) ValidateSchedule(ctx context.Context, req ScheduleRequest) (*ScheduleResult, error) {
	codes := normalizeCodes(req.Courses)
	if len(codes) == 0 {
		return nil, invalid("at least one course is required")
	}
	semester, ok := catalog.ParseSemester(req.Semester)
	if !ok {
		return nil, invalid("unknown semester %q", req.Semester)
	}

	var subjects, malformed []string
	for _, code := range codes {
		subject, _, ok := catalog.SplitCode(code)
		if !ok {
			malformed = append(malformed, code)
			continue
		}
		subjects = append(subjects, subject)
	}

	var (
		courses []catalog.CourseRecord
		unknown = malformed
		term    = req.Term
	)
	if len(subjects) > 0 {
		loaded, err := r.loadCatalog(ctx, req.Term, subjects)
		if err != nil {
			return nil, err
		}
		term = loaded.Term
		for _, code := range codes {
			if _, _, ok := catalog.SplitCode(code); !ok {
				continue
			}
			if c, found := loaded.Index.Lookup(code); found {
				courses = append(courses, c)
			} else {
				unknown = append(unknown, code)
			}
		}
	}

	res := validator.ValidateSchedule(courses, unknown, semester, validator.Rules{MinLoad: r.cfg.MinLoad, MaxLoad: r.cfg.MaxLoad})
	logger.Info("Schedule validated",
		zap.Strings("courses", codes),
		zap.String("semester", string(semester)),
		zap.Bool("valid", res.Valid),
	)
	return &ScheduleResult{ScheduleResult: res, Semester: string(semester), Year: req.Year, TermCode: term}, nil
}

type RecommendationRequest struct {
	CompletedCourses []string `json:"completed_courses,omitempty"`
	Interests        []string `json:"interests"`
	TargetSemester   string   `json:"target_semester,omitempty"`
	MaxResults       int      `json:"max_results,omitempty"`
	Term             string   `json:"term,omitempty"`
}

type Recommendation struct {
	catalog.ScoredCourse
	Code            string  `json:"code"`
	Relevance       float64 `json:"relevance"`
	OfferedInTarget bool    `json:"offered_in_target"`
}

type RecommendationResult struct {
	TermCode        string           `json:"term_code"`
	Subjects        []string         `json:"subjects"`
	Recommendations []Recommendation `json:"recommendations"`
}

// GetRecommendations ranks uncompleted courses for the interests. The
// score blends relevance with availability in the target semester.
func (r *Runner) GetRecommendations(ctx context.Context, req RecommendationRequest) (*RecommendationResult, error) {
	interests := make([]string, 0, len(req.Interests))
	for _, in := range req.Interests {
		if in = strings.TrimSpace(in); in != "" {
			interests = append(interests, in)
		}
	}
	if len(interests) == 0 {
		return nil, invalid("at least one interest is required")
	}

	limit := req.MaxResults
	if limit <= 0 {
		limit = defaultMaxResults
	}
	limit = min(limit, maxMaxResults)

	target := catalog.Unknown
	if req.TargetSemester != "" {
		s, ok := catalog.ParseSemester(req.TargetSemester)
		if !ok {
			return nil, invalid("unknown semester %q", req.TargetSemester)
		}
		target = s
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.RecommendTimeout)
	defer cancel()

	subjects := r.deps.Subjects.Select(ctx, interests)
	loaded, err := r.loadCatalog(ctx, req.Term, subjects.Data)
	if err != nil {
		return nil, err
	}
	available := loaded.Index.Without(normalizeCodes(req.CompletedCourses))
	if available.Len() == 0 {
		return nil, insufficient("catalog", "no uncompleted courses found for the requested subjects")
	}

	ranked := r.deps.Scorer.Rank(ctx, available.All(), interests, r.cfg.RecommendWindow)

	recs := make([]Recommendation, 0, len(ranked))
	for _, sc := range ranked {
		rec := Recommendation{ScoredCourse: sc, Code: sc.Code(), Relevance: sc.Score}
		if target != catalog.Unknown {
			rec.OfferedInTarget = sc.OfferedIn(target)
			offered := 0.0
			if rec.OfferedInTarget {
				offered = 1
			}
			rec.Score = relevanceWeight*sc.Score + offeredWeight*offered
		}
		recs = append(recs, rec)
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Score > recs[j].Score })
	if len(recs) > limit {
		recs = recs[:limit]
	}

	logger.Info("Recommendations generated",
		zap.Strings("interests", interests),
		zap.Int("candidates", available.Len()),
		zap.Int("returned", len(recs)),
	)
	return &RecommendationResult{TermCode: loaded.Term, Subjects: subjects.Data, Recommendations: recs}, nil
}

type CourseInfo struct {
	catalog.CourseRecord
	Code        string `json:"code"`
	TermCode    string `json:"term_code"`
	Description string `json:"description,omitempty"`
}

// CourseInfo looks a course up and attaches its catalog description when
// the portal has one. A failed description fetch is not an error.
func (r *Runner) CourseInfo(ctx context.Context, code, term string) (*CourseInfo, error) {
	subject, _, ok := catalog.SplitCode(code)
	if !ok {
		return nil, invalid("malformed course code %q", code)
	}

	loaded, err := r.loadCatalog(ctx, term, []string{subject})
	if err != nil {
		return nil, err
	}
	course, found := loaded.Index.Lookup(code)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrCourseNotFound, catalog.NormalizeCode(code))
	}

	info := &CourseInfo{CourseRecord: course, Code: course.Code(), TermCode: loaded.Term}
	if course.CRN != "" && r.deps.Describer != nil {
		info.Description = r.description(ctx, loaded.Term, course.CRN)
	}
	return info, nil
}

func (r *Runner) description(ctx context.Context, term, crn string) string {
	key := cache.DescriptionKey(term, crn)
	var desc string
	hit, err := cache.GetJSON(ctx, r.deps.Store, "description", key, &desc)
	if err != nil {
		logger.Warn("Description cache read failed", zap.String("key", key), zap.Error(err))
	}
	if hit {
		return desc
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	desc, err = r.deps.Describer.CourseDescription(ctx, term, crn)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Warn("Description fetch failed", zap.String("crn", crn), zap.Error(err))
		}
		return ""
	}
	if err := cache.SetJSON(ctx, r.deps.Store, key, desc, r.cfg.DescriptionTTL); err != nil {
		logger.Warn("Failed to cache description", zap.String("key", key), zap.Error(err))
	}
	return desc
}
