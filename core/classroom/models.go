package classroom

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezvolt/darasa/core"
)

// Classroom is a teaching space owned by one account and joined by members
// via a short code.
type Classroom struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Code        string    `json:"code"`
	OwnerID     string    `json:"owner_id"`
	MemberIDs   []string  `json:"member_ids"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// IsOwner reports whether acctID owns the classroom.
func (c *Classroom) IsOwner(acctID string) bool { return c.OwnerID == acctID }

// IsMember reports whether acctID is the owner or a joined member.
func (c *Classroom) IsMember(acctID string) bool {
	if c.IsOwner(acctID) {
		return true
	}
	for _, id := range c.MemberIDs {
		if id == acctID {
			return true
		}
	}
	return false
}

// NewClassroom contains information needed to create a Classroom.
type NewClassroom struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description" validate:"required"`
	Code        string `json:"code" validate:"required,len=7,excludesall= "`
}

func (nc *NewClassroom) Validate(validate *validator.Validate, svc *Service) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	nc.Code = core.CleanString(nc.Code)

	if err := validate.Struct(nc); err != nil {
		return err
	}
	if len(strings.Fields(nc.Description)) < 20 {
		return core.NewValidationError(nil, core.FieldError{
			Field: "description", Error: "must be at least 20 words",
		})
	}
	return svc.checkCodeUniqueness(nc.Code)
}
