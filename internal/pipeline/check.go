package pipeline

import (
	"context"
	"strings"

	"github.com/Tallisgo/JianLi-Tanuki/internal/common"
	"github.com/Tallisgo/JianLi-Tanuki/internal/entity"
	"github.com/Tallisgo/JianLi-Tanuki/internal/names"
)

// DuplicateCheck answers a duplicate query made outside any task.
type DuplicateCheck struct {
	Exists bool                    `json:"exists"`
	Notice *entity.DuplicateNotice `json:"notice,omitempty"`
}

// CheckDuplicate runs the duplicate lookup for a name with optional phone and email.
// The name is normalized the same way extracted names are.
func CheckDuplicate(ctx context.Context, finder DuplicateFinder, name, phone, email string) (DuplicateCheck, error) {
	name = names.Normalize(name)
	if err := common.NewValidator().Field("name", name, common.Required).Err(); err != nil {
		return DuplicateCheck{}, err
	}
	match, err := finder.FindDuplicate(ctx, name, optional(phone), optional(email))
	if err != nil {
		return DuplicateCheck{}, err
	}
	if !match.Found() {
		return DuplicateCheck{}, nil
	}
	return DuplicateCheck{Exists: true, Notice: NewDuplicateNotice(match)}, nil
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}
