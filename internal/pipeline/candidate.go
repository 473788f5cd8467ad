package pipeline

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Tallisgo/JianLi-Tanuki/constants"
	"github.com/Tallisgo/JianLi-Tanuki/internal/entity"
)

// NewCandidate builds an unsaved candidate from an extracted record.
// Position comes from the most recent job, school, major and education level
// from the most recent education entry.
func NewCandidate(rec *entity.ResumeRecord, taskID string, now time.Time) *entity.Candidate {
	c := &entity.Candidate{
		TaskID:          &taskID,
		Name:            strings.TrimSpace(entity.Deref(rec.Name)),
		Phone:           present(rec.Phone()),
		Email:           present(rec.Email()),
		Address:         present(rec.Address()),
		Summary:         present(rec.Summary),
		Skills:          rec.Skills,
		Languages:       rec.Languages,
		Certifications:  rec.Certifications,
		ExperienceYears: ExperienceYears(rec.Experience, now),
		Status:          constants.CandidateStatusActive,
	}
	applyLatest(c, rec)
	return c
}

// MergeRecord overlays rec onto c. Scalars overwrite only when rec has a value;
// skills, languages and certifications are replaced when rec has any.
func MergeRecord(c *entity.Candidate, rec *entity.ResumeRecord) {
	if name := strings.TrimSpace(entity.Deref(rec.Name)); name != "" {
		c.Name = name
	}
	overwrite(&c.Phone, rec.Phone())
	overwrite(&c.Email, rec.Email())
	overwrite(&c.Address, rec.Address())
	overwrite(&c.Summary, rec.Summary)
	if len(rec.Skills) > 0 {
		c.Skills = rec.Skills
	}
	if len(rec.Languages) > 0 {
		c.Languages = rec.Languages
	}
	if len(rec.Certifications) > 0 {
		c.Certifications = rec.Certifications
	}
	applyLatest(c, rec)
}

func applyLatest(c *entity.Candidate, rec *entity.ResumeRecord) {
	if len(rec.Experience) > 0 {
		overwrite(&c.Position, rec.Experience[0].Title)
	}
	if len(rec.Education) > 0 {
		edu := rec.Education[0]
		overwrite(&c.School, edu.Institution)
		overwrite(&c.Major, edu.Major)
		overwrite(&c.EducationLevel, edu.Degree)
	}
}

func present(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func overwrite(dst **string, src *string) {
	if v := present(src); v != nil {
		*dst = v
	}
}

var yearRe = regexp.MustCompile(`(19|20)\d{2}`)

var ongoing = []string{"至今", "现在", "目前", "present", "now", "current"}

// ExperienceYears spans the earliest start year to the latest end year across
// jobs. Ongoing jobs end in now's year. Nil when no year can be read.
func ExperienceYears(jobs []entity.WorkEntry, now time.Time) *int {
	first, last := 0, 0
	for _, j := range jobs {
		start := parseYear(entity.Deref(j.StartDate))
		if start == 0 {
			continue
		}
		end := parseYear(entity.Deref(j.EndDate))
		if end == 0 && isOngoing(entity.Deref(j.EndDate)) {
			end = now.Year()
		}
		if end < start {
			end = start
		}
		if first == 0 || start < first {
			first = start
		}
		if end > last {
			last = end
		}
	}
	if first == 0 {
		return nil
	}
	years := last - first
	return &years
}

func parseYear(s string) int {
	m := yearRe.FindString(s)
	if m == "" {
		return 0
	}
	y, _ := strconv.Atoi(m)
	return y
}

func isOngoing(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return false
	}
	for _, w := range ongoing {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
