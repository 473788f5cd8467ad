package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/Tallisgo/JianLi-Tanuki/constants"
	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
	"github.com/Tallisgo/JianLi-Tanuki/internal/entity"
)

const candidatesTable = "candidates"

var candidateColumns = []string{
	"id", "task_id", "name", "phone", "email", "address", "position", "experience_years",
	"education_level", "school", "major", "skills", "languages", "certifications", "summary",
	"status", "notes", "rating", "tags", "created_at", "updated_at",
}

type CandidateRepository interface {
	SaveCandidate(ctx context.Context, c *entity.Candidate) (*entity.Candidate, error)
	GetCandidate(ctx context.Context, id int64) (*entity.Candidate, error)
	List(ctx context.Context, f entity.CandidateFilter) ([]entity.Candidate, error)
	FindCandidatesByExactName(ctx context.Context, name string) ([]entity.Candidate, error)
	GetByTaskID(ctx context.Context, taskID string) (*entity.Candidate, error)
	Delete(ctx context.Context, id int64) error
	Statistics(ctx context.Context) (entity.CandidateStats, error)
	SkillStats(ctx context.Context, limit int) ([]entity.SkillCount, error)
}

type candidateRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewCandidateRepository(db *DB, logger *slog.Logger) CandidateRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &candidateRepository{db: db, logger: logger}
}

// SaveCandidate inserts c when c.ID is zero and updates the row otherwise.
// The stored candidate is returned.
func (r *candidateRepository) SaveCandidate(ctx context.Context, c *entity.Candidate) (*entity.Candidate, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, common.NewAppError(common.CodeInvalid, "candidate name is required", common.ErrInvalidInput)
	}
	if c.Rating != nil && (*c.Rating < 1 || *c.Rating > 5) {
		return nil, common.NewAppError(common.CodeInvalid, "rating must be between 1 and 5", common.ErrInvalidInput)
	}
	out := *c
	if out.Status == "" {
		out.Status = constants.CandidateStatusActive
	}
	vals, err := candidateValues(&out)
	if err != nil {
		return nil, common.NewAppError(common.CodeInternal, "encode candidate", err)
	}
	now := time.Now().UTC()
	out.UpdatedAt = now

	if out.ID == 0 {
		out.CreatedAt = now
		ins := r.db.builder().Insert(candidatesTable)
		for _, kv := range vals {
			ins.Set(kv.col, kv.val)
		}
		q, args := ins.Set("created_at", now).Set("updated_at", now).Returning("id").Query()
		if err := r.db.sqlDB().QueryRowContext(ctx, q, args...).Scan(&out.ID); err != nil {
			r.logger.Error("candidate create failed", "name", out.Name, "error", err)
			return nil, common.DatabaseError("create candidate", err)
		}
		r.logger.Info("candidate created", "candidate_id", out.ID, "task_id", entity.Deref(out.TaskID))
		return &out, nil
	}

	upd := r.db.builder().Update(candidatesTable)
	for _, kv := range vals {
		upd.Set(kv.col, kv.val)
	}
	q, args := upd.Set("updated_at", now).Where(entsql.EQ("id", out.ID)).Query()
	res, err := r.db.sqlDB().ExecContext(ctx, q, args...)
	if err != nil {
		r.logger.Error("candidate update failed", "candidate_id", out.ID, "error", err)
		return nil, common.DatabaseError("update candidate", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, common.CandidateNotFound(out.ID)
	}
	r.logger.Info("candidate updated", "candidate_id", out.ID, "task_id", entity.Deref(out.TaskID))
	return r.GetCandidate(ctx, out.ID)
}

type colVal struct {
	col string
	val any
}

func candidateValues(c *entity.Candidate) ([]colVal, error) {
	lists := map[string][]string{
		"skills":         c.Skills,
		"languages":      c.Languages,
		"certifications": c.Certifications,
		"tags":           c.Tags,
	}
	vals := []colVal{
		{"task_id", val(c.TaskID)},
		{"name", c.Name},
		{"phone", val(c.Phone)},
		{"email", val(c.Email)},
		{"address", val(c.Address)},
		{"position", val(c.Position)},
		{"experience_years", val(c.ExperienceYears)},
		{"education_level", val(c.EducationLevel)},
		{"school", val(c.School)},
		{"major", val(c.Major)},
		{"summary", val(c.Summary)},
		{"status", c.Status},
		{"notes", val(c.Notes)},
		{"rating", val(c.Rating)},
	}
	for _, col := range []string{"skills", "languages", "certifications", "tags"} {
		v, err := jsonList(lists[col])
		if err != nil {
			return nil, err
		}
		vals = append(vals, colVal{col, v})
	}
	return vals, nil
}

func (r *candidateRepository) GetCandidate(ctx context.Context, id int64) (*entity.Candidate, error) {
	q, args := r.db.builder().Select(candidateColumns...).
		From(entsql.Table(candidatesTable)).
		Where(entsql.EQ("id", id)).
		Query()
	c, err := scanCandidate(r.db.sqlDB().QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.CandidateNotFound(id)
	}
	if err != nil {
		r.logger.Error("candidate get failed", "candidate_id", id, "error", err)
		return nil, common.DatabaseError("get candidate", err)
	}
	return c, nil
}

// List returns candidates newest first. Name, phone, email, position and skill
// filters match by substring; status and education level match exactly and the
// experience bounds are inclusive.
func (r *candidateRepository) List(ctx context.Context, f entity.CandidateFilter) ([]entity.Candidate, error) {
	var preds []*entsql.Predicate
	for col, sub := range map[string]string{
		"name":     f.Name,
		"phone":    f.Phone,
		"email":    f.Email,
		"position": f.Position,
		"skills":   f.Skill,
	} {
		if sub != "" {
			preds = append(preds, entsql.Contains(col, sub))
		}
	}
	if f.Status != "" {
		preds = append(preds, entsql.EQ("status", f.Status))
	}
	if f.EducationLevel != "" {
		preds = append(preds, entsql.EQ("education_level", f.EducationLevel))
	}
	if f.ExperienceMin != nil {
		preds = append(preds, entsql.GTE("experience_years", *f.ExperienceMin))
	}
	if f.ExperienceMax != nil {
		preds = append(preds, entsql.LTE("experience_years", *f.ExperienceMax))
	}
	s := r.db.builder().Select(candidateColumns...).From(entsql.Table(candidatesTable))
	if len(preds) > 0 {
		s.Where(entsql.And(preds...))
	}
	s.OrderBy(entsql.Desc("created_at"), entsql.Desc("id")).Limit(pageLimit(f.Limit))
	if f.Offset > 0 {
		s.Offset(f.Offset)
	}
	return r.query(ctx, s)
}

// FindCandidatesByExactName matches the name case-sensitively, oldest first.
func (r *candidateRepository) FindCandidatesByExactName(ctx context.Context, name string) ([]entity.Candidate, error) {
	s := r.db.builder().Select(candidateColumns...).
		From(entsql.Table(candidatesTable)).
		Where(entsql.EQ("name", name)).
		OrderBy("id")
	return r.query(ctx, s)
}

// GetByTaskID returns the candidate most recently written by the task's run.
func (r *candidateRepository) GetByTaskID(ctx context.Context, taskID string) (*entity.Candidate, error) {
	s := r.db.builder().Select(candidateColumns...).
		From(entsql.Table(candidatesTable)).
		Where(entsql.EQ("task_id", taskID)).
		OrderBy(entsql.Desc("updated_at"), entsql.Desc("id")).
		Limit(1)
	list, err := r.query(ctx, s)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, common.NewAppError(common.CodeCandidateNotFound, "no candidate for task "+taskID, common.ErrCandidateNotFound)
	}
	return &list[0], nil
}

// Statistics counts candidates by status and averages rating and experience.
// Averages are rounded to two and one decimals.
func (r *candidateRepository) Statistics(ctx context.Context) (entity.CandidateStats, error) {
	var (
		stats            entity.CandidateStats
		active, inactive sql.NullInt64
		rating, exp      sql.NullFloat64
	)
	q, args := r.db.builder().SelectExpr(
		entsql.Expr("COUNT(*)"),
		entsql.Expr("SUM(CASE WHEN status = '"+constants.CandidateStatusActive+"' THEN 1 ELSE 0 END)"),
		entsql.Expr("SUM(CASE WHEN status = '"+constants.CandidateStatusInactive+"' THEN 1 ELSE 0 END)"),
		entsql.Expr("AVG(rating)"),
		entsql.Expr("AVG(experience_years)"),
	).From(entsql.Table(candidatesTable)).Query()
	err := r.db.sqlDB().QueryRowContext(ctx, q, args...).Scan(&stats.Total, &active, &inactive, &rating, &exp)
	if err != nil {
		r.logger.Error("candidate stats failed", "error", err)
		return stats, common.DatabaseError("candidate stats", err)
	}
	stats.Active = int(active.Int64)
	stats.Inactive = int(inactive.Int64)
	stats.AvgRating = math.Round(rating.Float64*100) / 100
	stats.AvgExperience = math.Round(exp.Float64*10) / 10
	return stats, nil
}

// SkillStats ranks skills by how many candidates list them, most common first,
// ties broken by name. A non-positive limit returns the top 20.
func (r *candidateRepository) SkillStats(ctx context.Context, limit int) ([]entity.SkillCount, error) {
	if limit <= 0 {
		limit = 20
	}
	q, args := r.db.builder().Select("skills").
		From(entsql.Table(candidatesTable)).
		Where(entsql.And(entsql.NotNull("skills"), entsql.NEQ("skills", ""))).
		Query()
	rows, err := r.db.sqlDB().QueryContext(ctx, q, args...)
	if err != nil {
		r.logger.Error("skill stats failed", "error", err)
		return nil, common.DatabaseError("skill stats", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var raw sql.NullString
		if err := rows.Scan(&raw); err != nil {
			return nil, common.DatabaseError("scan skills", err)
		}
		skills, err := decodeList(raw)
		if err != nil {
			// rows written by other tools may hold a comma separated list
			skills = strings.Split(raw.String, ",")
		}
		seen := map[string]bool{}
		for _, s := range skills {
			s = strings.TrimSpace(s)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			counts[s]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, common.DatabaseError("skill stats", err)
	}

	out := make([]entity.SkillCount, 0, len(counts))
	for s, n := range counts {
		out = append(out, entity.SkillCount{Skill: s, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Skill < out[j].Skill
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *candidateRepository) Delete(ctx context.Context, id int64) error {
	q, args := r.db.builder().Delete(candidatesTable).Where(entsql.EQ("id", id)).Query()
	res, err := r.db.sqlDB().ExecContext(ctx, q, args...)
	if err != nil {
		return common.DatabaseError("delete candidate", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.CandidateNotFound(id)
	}
	r.logger.Info("candidate deleted", "candidate_id", id)
	return nil
}

func (r *candidateRepository) query(ctx context.Context, s *entsql.Selector) ([]entity.Candidate, error) {
	q, args := s.Query()
	rows, err := r.db.sqlDB().QueryContext(ctx, q, args...)
	if err != nil {
		r.logger.Error("candidate query failed", "error", err)
		return nil, common.DatabaseError("query candidates", err)
	}
	defer rows.Close()

	var out []entity.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, common.DatabaseError("scan candidate", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, common.DatabaseError("query candidates", err)
	}
	return out, nil
}

func scanCandidate(row rowScanner) (*entity.Candidate, error) {
	var (
		c                                 entity.Candidate
		taskID, phone, email, address     sql.NullString
		position, eduLevel, school, major sql.NullString
		skills, languages, certs, tags    sql.NullString
		summary, notes                    sql.NullString
		expYears, rating                  sql.NullInt64
	)
	if err := row.Scan(&c.ID, &taskID, &c.Name, &phone, &email, &address, &position, &expYears,
		&eduLevel, &school, &major, &skills, &languages, &certs, &summary,
		&c.Status, &notes, &rating, &tags, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.TaskID = nullString(taskID)
	c.Phone = nullString(phone)
	c.Email = nullString(email)
	c.Address = nullString(address)
	c.Position = nullString(position)
	c.ExperienceYears = nullInt(expYears)
	c.EducationLevel = nullString(eduLevel)
	c.School = nullString(school)
	c.Major = nullString(major)
	c.Summary = nullString(summary)
	c.Notes = nullString(notes)
	c.Rating = nullInt(rating)

	var err error
	if c.Skills, err = decodeList(skills); err != nil {
		return nil, err
	}
	if c.Languages, err = decodeList(languages); err != nil {
		return nil, err
	}
	if c.Certifications, err = decodeList(certs); err != nil {
		return nil, err
	}
	if c.Tags, err = decodeList(tags); err != nil {
		return nil, err
	}
	return &c, nil
}
