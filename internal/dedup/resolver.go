// Package dedup decides whether an extracted résumé belongs to a known candidate.
package dedup

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Tallisgo/JianLi-Tanuki/internal/entity"
)

// CandidateFinder looks up candidates whose stored name equals name exactly.
type CandidateFinder interface {
	FindCandidatesByExactName(ctx context.Context, name string) ([]entity.Candidate, error)
}

// Resolver matches on exact name, then phone or email.
type Resolver struct {
	finder      CandidateFinder
	countryCode string
	logger      *slog.Logger
}

type Option func(*Resolver)

// WithCountryCode sets the calling code stripped before phones are compared.
func WithCountryCode(cc string) Option {
	return func(r *Resolver) {
		r.countryCode = strings.TrimPrefix(strings.TrimSpace(cc), "+")
	}
}

func NewResolver(finder CandidateFinder, logger *slog.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{finder: finder, countryCode: "86", logger: logger}
	for _, o := range opts {
		o(r)
	}
	return r
}

// FindDuplicate returns the first known candidate that matches name and either
// phone or email. With no phone and no email, a single exact-name hit comes back
// as an ambiguous MatchName; several hits cannot be told apart and yield none.
func (r *Resolver) FindDuplicate(ctx context.Context, name string, phone, email *string) (entity.DuplicateMatch, error) {
	none := entity.DuplicateMatch{Kind: entity.MatchNone}
	if strings.TrimSpace(name) == "" {
		return none, nil
	}
	hits, err := r.finder.FindCandidatesByExactName(ctx, name)
	if err != nil {
		r.logger.Error("dedup.lookup.failed", "name", name, "error", err)
		return none, err
	}
	if len(hits) == 0 {
		return none, nil
	}

	p, e := trimmed(phone), trimmed(email)
	if p != "" || e != "" {
		for i := range hits {
			c := hits[i]
			if p != "" && c.Phone != nil && samePhone(p, *c.Phone, r.countryCode) {
				r.logger.Info("dedup.match", "candidate_id", c.ID, "kind", entity.MatchPhone)
				return entity.DuplicateMatch{Kind: entity.MatchPhone, Candidate: &c}, nil
			}
			if e != "" && c.Email != nil && sameEmail(e, *c.Email) {
				r.logger.Info("dedup.match", "candidate_id", c.ID, "kind", entity.MatchEmail)
				return entity.DuplicateMatch{Kind: entity.MatchEmail, Candidate: &c}, nil
			}
		}
		return none, nil
	}

	if len(hits) == 1 {
		c := hits[0]
		r.logger.Info("dedup.match.ambiguous", "candidate_id", c.ID, "name", name)
		return entity.DuplicateMatch{Kind: entity.MatchName, Candidate: &c}, nil
	}
	r.logger.Info("dedup.match.unresolved", "name", name, "hits", len(hits))
	return none, nil
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
