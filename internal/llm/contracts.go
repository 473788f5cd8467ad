package llm

import (
	"context"

	"github.com/Tallisgo/JianLi-Tanuki/internal/entity"
)

// ResumeFields is the wire shape we accept from the model. It is decoded only after
// the document has passed schema validation, with unknown keys rejected.
type ResumeFields struct {
	Name           *string          `json:"name"`
	Contact        *ContactFields   `json:"contact"`
	Education      []EducationField `json:"education"`
	Experience     []WorkField      `json:"experience"`
	Projects       []ProjectField   `json:"projects"`
	Skills         []string         `json:"skills"`
	Languages      []string         `json:"languages"`
	Certifications []string         `json:"certifications"`
	Summary        *string          `json:"summary"`
	Other          *string          `json:"other"`
}

type ContactFields struct {
	Phone   *string `json:"phone"`
	Email   *string `json:"email"`
	Address *string `json:"address"`
}

type EducationField struct {
	Degree      *string `json:"degree"`
	Institution *string `json:"institution"`
	Major       *string `json:"major"`
	StartYear   *string `json:"start_year"`
	EndYear     *string `json:"end_year"`
	GPA         *string `json:"gpa"`
}

type WorkField struct {
	Title       *string `json:"title"`
	Company     *string `json:"company"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
}

type ProjectField struct {
	Name         *string  `json:"name"`
	Description  *string  `json:"description"`
	Technologies []string `json:"technologies"`
	StartDate    *string  `json:"start_date"`
	EndDate      *string  `json:"end_date"`
}

// ResumeExtractor is the interface our pipeline depends on.
type ResumeExtractor interface {
	Extract(ctx context.Context, text string) (*entity.ResumeRecord, error)
}
