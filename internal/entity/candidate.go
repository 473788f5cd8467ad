package entity

import "time"

// Candidate is the persisted entity derived from a completed ResumeRecord.
type Candidate struct {
	ID              int64     `json:"id"`
	TaskID          *string   `json:"task_id,omitempty"`
	Name            string    `json:"name"`
	Phone           *string   `json:"phone,omitempty"`
	Email           *string   `json:"email,omitempty"`
	Address         *string   `json:"address,omitempty"`
	Position        *string   `json:"position,omitempty"`
	ExperienceYears *int      `json:"experience_years,omitempty"`
	EducationLevel  *string   `json:"education_level,omitempty"`
	School          *string   `json:"school,omitempty"`
	Major           *string   `json:"major,omitempty"`
	Skills          []string  `json:"skills,omitempty"`
	Languages       []string  `json:"languages,omitempty"`
	Certifications  []string  `json:"certifications,omitempty"`
	Summary         *string   `json:"summary,omitempty"`
	Status          string    `json:"status"`
	Notes           *string   `json:"notes,omitempty"`
	Rating          *int      `json:"rating,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CandidateFilter narrows candidate searches. Empty fields are ignored.
type CandidateFilter struct {
	Name           string
	Phone          string
	Email          string
	Position       string
	Skill          string
	Status         string
	EducationLevel string
	ExperienceMin  *int // inclusive, years
	ExperienceMax  *int // inclusive, years
	Limit          int
	Offset         int
}

// CandidateStats summarizes the candidate store. Averages skip candidates
// without a rating or experience figure.
type CandidateStats struct {
	Total         int     `json:"total"`
	Active        int     `json:"active"`
	Inactive      int     `json:"inactive"`
	AvgRating     float64 `json:"avg_rating"`
	AvgExperience float64 `json:"avg_experience"`
}

// SkillCount is how many candidates list a skill.
type SkillCount struct {
	Skill string `json:"skill"`
	Count int    `json:"count"`
}
