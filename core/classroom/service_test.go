package classroom_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezvolt/darasa/core"
	"github.com/trezvolt/darasa/core/account"
	"github.com/trezvolt/darasa/core/classroom"
	inmemdb "github.com/trezvolt/darasa/storage/database/inmem"
)

var (
	teacher = account.Account{ID: "teacher-1", Role: account.RoleTeacher}
	student = account.Account{ID: "student-1", Role: account.RoleStudent}
	admin   = account.Account{ID: "admin-1", Role: account.RoleAdmin}
)

func newTestService(t *testing.T) *classroom.Service {
	t.Helper()
	db, err := inmemdb.Open()
	require.NoError(t, err)
	return classroom.NewService(inmemdb.NewClassroomRepository(db))
}

func createRoom(t *testing.T, svc *classroom.Service, owner account.Account, code string) classroom.Classroom {
	t.Helper()
	room, err := svc.Create(context.Background(), owner, classroom.NewClassroom{
		Name:        "Algebra II",
		Description: "A full-year algebra course covering linear equations and much more besides",
		Code:        code,
	})
	require.NoError(t, err)
	return room
}

func TestCreate(t *testing.T) {
	svc := newTestService(t)

	room := createRoom(t, svc, teacher, "ALG2-24")
	assert.Equal(t, teacher.ID, room.OwnerID)
	assert.True(t, room.IsMember(teacher.ID))

	// students cannot open classrooms
	_, err := svc.Create(context.Background(), student, classroom.NewClassroom{
		Name: "Nope", Description: "irrelevant", Code: "NOPE-01",
	})
	assert.ErrorIs(t, err, classroom.ErrForbidden)
}

func TestNewClassroomValidate(t *testing.T) {
	svc := newTestService(t)
	validate, _ := core.NewValidator()
	createRoom(t, svc, teacher, "ALG2-24")

	tests := []struct {
		name    string
		data    classroom.NewClassroom
		wantErr bool
	}{
		{
			name: "ok",
			data: classroom.NewClassroom{
				Name:        "Biology",
				Description: "An introductory biology course spanning cells genetics evolution ecology and the scientific method with weekly laboratory sessions and two graded practical examinations included",
				Code:        "BIO1-24",
			},
		},
		{
			name: "short code",
			data: classroom.NewClassroom{
				Name:        "Biology",
				Description: "An introductory biology course spanning cells genetics evolution ecology and the scientific method with weekly laboratory sessions and two graded practical examinations included",
				Code:        "BIO",
			},
			wantErr: true,
		},
		{
			name: "code with space",
			data: classroom.NewClassroom{
				Name:        "Biology",
				Description: "An introductory biology course spanning cells genetics evolution ecology and the scientific method with weekly laboratory sessions and two graded practical examinations included",
				Code:        "BIO 124",
			},
			wantErr: true,
		},
		{
			name: "description under 20 words",
			data: classroom.NewClassroom{
				Name:        "Biology",
				Description: "Too short to be useful",
				Code:        "BIO1-24",
			},
			wantErr: true,
		},
		{
			name: "duplicate code",
			data: classroom.NewClassroom{
				Name:        "Algebra again",
				Description: "An introductory biology course spanning cells genetics evolution ecology and the scientific method with weekly laboratory sessions and two graded practical examinations included",
				Code:        "ALG2-24",
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.data.Validate(validate, svc)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetMembersOnly(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	room := createRoom(t, svc, teacher, "ALG2-24")

	_, err := svc.Get(ctx, teacher, room.ID)
	require.NoError(t, err)

	_, err = svc.Get(ctx, student, room.ID)
	assert.ErrorIs(t, err, classroom.ErrForbidden)

	_, err = svc.Get(ctx, teacher, "no-such-room")
	assert.ErrorIs(t, err, classroom.ErrNotFound)
}

func TestJoinAndLeave(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	room := createRoom(t, svc, teacher, "ALG2-24")

	joined, err := svc.Join(ctx, student, "ALG2-24")
	require.NoError(t, err)
	assert.True(t, joined.IsMember(student.ID))

	// joining twice is idempotent
	joined, err = svc.Join(ctx, student, "ALG2-24")
	require.NoError(t, err)
	assert.True(t, joined.IsMember(student.ID))

	_, err = svc.Join(ctx, student, "WRONG-1")
	assert.ErrorIs(t, err, classroom.ErrNotFound)

	// members can now read the room
	_, err = svc.Get(ctx, student, room.ID)
	require.NoError(t, err)

	// the owner cannot leave their own classroom
	err = svc.Leave(ctx, teacher, room.ID)
	assert.ErrorIs(t, err, classroom.ErrForbidden)

	require.NoError(t, svc.Leave(ctx, student, room.ID))
	_, err = svc.Get(ctx, student, room.ID)
	assert.ErrorIs(t, err, classroom.ErrForbidden)
}

func TestQueryForAccount(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	createRoom(t, svc, teacher, "ALG2-24")
	createRoom(t, svc, teacher, "GEO1-24")

	rooms, err := svc.QueryForAccount(ctx, teacher.ID)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)

	rooms, err = svc.QueryForAccount(ctx, student.ID)
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	room := createRoom(t, svc, teacher, "ALG2-24")

	_, err := svc.Join(ctx, student, "ALG2-24")
	require.NoError(t, err)

	// a plain member cannot delete
	err = svc.Delete(ctx, student, room.ID)
	assert.ErrorIs(t, err, classroom.ErrForbidden)

	// an admin can
	require.NoError(t, svc.Delete(ctx, admin, room.ID))
	_, err = svc.Get(ctx, teacher, room.ID)
	assert.ErrorIs(t, err, classroom.ErrNotFound)
}

func TestAddMember(t *testing.T) {
	svc := newTestService(t)
	room := createRoom(t, svc, teacher, "ALG2-24")
	ctx := context.Background()

	// only the owner (or an admin) enrolls others
	_, err := svc.AddMember(ctx, student, room.ID, "student-2")
	assert.ErrorIs(t, err, classroom.ErrForbidden)

	got, err := svc.AddMember(ctx, teacher, room.ID, student.ID)
	require.NoError(t, err)
	assert.True(t, got.IsMember(student.ID))

	// enrolling twice is a no-op
	got, err = svc.AddMember(ctx, teacher, room.ID, student.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{student.ID}, got.MemberIDs)

	// admins may enroll too
	_, err = svc.AddMember(ctx, admin, room.ID, "student-2")
	require.NoError(t, err)

	_, err = svc.AddMember(ctx, teacher, "no-such-room", student.ID)
	assert.ErrorIs(t, err, classroom.ErrNotFound)
}

func TestRemoveMember(t *testing.T) {
	svc := newTestService(t)
	room := createRoom(t, svc, teacher, "ALG2-24")
	ctx := context.Background()

	_, err := svc.AddMember(ctx, teacher, room.ID, student.ID)
	require.NoError(t, err)

	// members cannot expel each other
	err = svc.RemoveMember(ctx, student, room.ID, student.ID)
	assert.ErrorIs(t, err, classroom.ErrForbidden)

	// the owner cannot be removed, not even by an admin
	err = svc.RemoveMember(ctx, admin, room.ID, teacher.ID)
	assert.ErrorIs(t, err, classroom.ErrForbidden)

	require.NoError(t, svc.RemoveMember(ctx, teacher, room.ID, student.ID))

	got, err := svc.Get(ctx, teacher, room.ID)
	require.NoError(t, err)
	assert.False(t, got.IsMember(student.ID))
}
