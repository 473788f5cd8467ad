package entity

// ResumeRecord is the structured candidate data produced by extraction.
// Every field is optional; nil means absent, which is distinct from "".
type ResumeRecord struct {
	Name           *string       `json:"name"`
	Contact        *ContactInfo  `json:"contact"`
	Education      []Education   `json:"education"`
	Experience     []WorkEntry   `json:"experience"`
	Projects       []ProjectInfo `json:"projects"`
	Skills         []string      `json:"skills"`
	Languages      []string      `json:"languages"`
	Certifications []string      `json:"certifications"`
	Summary        *string       `json:"summary"`
	Other          *string       `json:"other"`
}

type ContactInfo struct {
	Phone   *string `json:"phone"`
	Email   *string `json:"email"`
	Address *string `json:"address"`
}

type Education struct {
	Degree      *string `json:"degree"`
	Institution *string `json:"institution"`
	Major       *string `json:"major"`
	StartYear   *string `json:"start_year"`
	EndYear     *string `json:"end_year"`
	GPA         *string `json:"gpa"`
}

type WorkEntry struct {
	Title       *string `json:"title"`
	Company     *string `json:"company"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
}

type ProjectInfo struct {
	Name         *string  `json:"name"`
	Description  *string  `json:"description"`
	Technologies []string `json:"technologies"`
	StartDate    *string  `json:"start_date"`
	EndDate      *string  `json:"end_date"`
}

// Phone returns the contact phone or nil.
func (r *ResumeRecord) Phone() *string {
	if r == nil || r.Contact == nil {
		return nil
	}
	return r.Contact.Phone
}

// Email returns the contact email or nil.
func (r *ResumeRecord) Email() *string {
	if r == nil || r.Contact == nil {
		return nil
	}
	return r.Contact.Email
}

// Address returns the contact address or nil.
func (r *ResumeRecord) Address() *string {
	if r == nil || r.Contact == nil {
		return nil
	}
	return r.Contact.Address
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

// Deref returns *p or the zero value.
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
