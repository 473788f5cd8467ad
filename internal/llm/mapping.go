package llm

import (
	"bytes"
	"encoding/json"

	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
	"github.com/Tallisgo/JianLi-Tanuki/internal/entity"
	"github.com/Tallisgo/JianLi-Tanuki/internal/names"
)

// DecodeRecord validates raw against the résumé schema and maps it onto a
// ResumeRecord. Any mismatch fails with MALFORMED_PAYLOAD.
func DecodeRecord(raw []byte) (*entity.ResumeRecord, error) {
	if err := ValidateResumeJSON(raw); err != nil {
		return nil, common.MalformedPayload("model output does not match the résumé schema", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var f ResumeFields
	if err := dec.Decode(&f); err != nil {
		return nil, common.MalformedPayload("model output cannot be mapped to a résumé record", err)
	}
	return ToRecord(f), nil
}

// ToRecord maps wire fields to the domain record. Absent values stay nil and empty
// lists become nil. The name is normalized.
func ToRecord(f ResumeFields) *entity.ResumeRecord {
	rec := &entity.ResumeRecord{
		Name:           names.NormalizePtr(f.Name),
		Skills:         nonEmpty(f.Skills),
		Languages:      nonEmpty(f.Languages),
		Certifications: nonEmpty(f.Certifications),
		Summary:        f.Summary,
		Other:          f.Other,
	}
	if f.Contact != nil {
		rec.Contact = &entity.ContactInfo{
			Phone:   f.Contact.Phone,
			Email:   f.Contact.Email,
			Address: f.Contact.Address,
		}
	}
	for _, e := range f.Education {
		rec.Education = append(rec.Education, entity.Education{
			Degree:      e.Degree,
			Institution: e.Institution,
			Major:       e.Major,
			StartYear:   e.StartYear,
			EndYear:     e.EndYear,
			GPA:         e.GPA,
		})
	}
	for _, w := range f.Experience {
		rec.Experience = append(rec.Experience, entity.WorkEntry{
			Title:       w.Title,
			Company:     w.Company,
			StartDate:   w.StartDate,
			EndDate:     w.EndDate,
			Description: w.Description,
			Location:    w.Location,
		})
	}
	for _, p := range f.Projects {
		rec.Projects = append(rec.Projects, entity.ProjectInfo{
			Name:         p.Name,
			Description:  p.Description,
			Technologies: nonEmpty(p.Technologies),
			StartDate:    p.StartDate,
			EndDate:      p.EndDate,
		})
	}
	return rec
}

func nonEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
