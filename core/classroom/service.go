package classroom

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/trezvolt/darasa/core"
	"github.com/trezvolt/darasa/core/account"
)

var (
	// errors
	ErrNotFound   = errors.New("classroom not found")
	ErrCodeExists = errors.New("a classroom with this code already exists")
	ErrForbidden  = errors.New("permission denied")
)

type (
	Repository interface {
		CheckCodeUniqueness(ctx context.Context, code string) error
		CreateClassroom(ctx context.Context, room Classroom) (Classroom, error)
		GetClassroomByID(ctx context.Context, id string) (Classroom, error)
		GetClassroomByCode(ctx context.Context, code string) (Classroom, error)
		QueryClassroomsByAccount(ctx context.Context, acctID string) ([]Classroom, error)
		AddMember(ctx context.Context, roomID, acctID string) error
		RemoveMember(ctx context.Context, roomID, acctID string) error
		DeleteClassroom(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// checkCodeUniqueness surfaces ErrCodeExists untouched: a taken join code is
// a conflict with existing state, not malformed input.
func (svc *Service) checkCodeUniqueness(code string) error {
	return svc.repo.CheckCodeUniqueness(context.Background(), code)
}

// Create opens a classroom owned by the caller. Students cannot create
// classrooms.
func (svc *Service) Create(ctx context.Context, owner account.Account, nc NewClassroom) (Classroom, error) {
	if owner.IsStudent() {
		return Classroom{}, ErrForbidden
	}
	now := account.NowFunc().UTC()
	room := Classroom{
		ID:          uuid.NewString(),
		Name:        nc.Name,
		Description: nc.Description,
		Code:        nc.Code,
		OwnerID:     owner.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateClassroom(ctx, room)
}

// Get returns a classroom to its owner or members only.
func (svc *Service) Get(ctx context.Context, caller account.Account, id string) (Classroom, error) {
	room, err := svc.repo.GetClassroomByID(ctx, id)
	if err != nil {
		return Classroom{}, err
	}
	if !room.IsMember(caller.ID) {
		return Classroom{}, ErrForbidden
	}
	return room, nil
}

func (svc *Service) QueryForAccount(ctx context.Context, acctID string) ([]Classroom, error) {
	return svc.repo.QueryClassroomsByAccount(ctx, acctID)
}

// Join adds the caller to the classroom matching the join code.
func (svc *Service) Join(ctx context.Context, caller account.Account, code string) (Classroom, error) {
	room, err := svc.repo.GetClassroomByCode(ctx, core.CleanString(code))
	if err != nil {
		return Classroom{}, err
	}
	if room.IsMember(caller.ID) {
		return room, nil // already in; idempotent
	}
	if err := svc.repo.AddMember(ctx, room.ID, caller.ID); err != nil {
		return Classroom{}, err
	}
	room.MemberIDs = append(room.MemberIDs, caller.ID)
	return room, nil
}

// AddMember enrolls an account into a classroom on the owner's (or an
// admin's) behalf. Enrolling an existing member is a no-op.
func (svc *Service) AddMember(ctx context.Context, caller account.Account, roomID, acctID string) (Classroom, error) {
	room, err := svc.repo.GetClassroomByID(ctx, roomID)
	if err != nil {
		return Classroom{}, err
	}
	if !room.IsOwner(caller.ID) && !caller.IsAdmin() {
		return Classroom{}, ErrForbidden
	}
	if room.IsMember(acctID) {
		return room, nil
	}
	if err := svc.repo.AddMember(ctx, room.ID, acctID); err != nil {
		return Classroom{}, err
	}
	room.MemberIDs = append(room.MemberIDs, acctID)
	return room, nil
}

// RemoveMember expels a member on the owner's (or an admin's) behalf.
// The owner cannot be removed from their own classroom.
func (svc *Service) RemoveMember(ctx context.Context, caller account.Account, roomID, acctID string) error {
	room, err := svc.repo.GetClassroomByID(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsOwner(caller.ID) && !caller.IsAdmin() {
		return ErrForbidden
	}
	if room.IsOwner(acctID) {
		return ErrForbidden
	}
	return svc.repo.RemoveMember(ctx, room.ID, acctID)
}

// Leave removes the caller from a classroom; the owner cannot leave their own.
func (svc *Service) Leave(ctx context.Context, caller account.Account, roomID string) error {
	room, err := svc.repo.GetClassroomByID(ctx, roomID)
	if err != nil {
		return err
	}
	if room.IsOwner(caller.ID) {
		return ErrForbidden
	}
	return svc.repo.RemoveMember(ctx, room.ID, caller.ID)
}

// Delete removes a classroom; only the owner (or an admin) may do so.
func (svc *Service) Delete(ctx context.Context, caller account.Account, roomID string) error {
	room, err := svc.repo.GetClassroomByID(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsOwner(caller.ID) && !caller.IsAdmin() {
		return ErrForbidden
	}
	return svc.repo.DeleteClassroom(ctx, room.ID)
}
