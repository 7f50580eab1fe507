package inmemdb

import (
	"context"

	"github.com/trezvolt/darasa/core/classroom"
)

type classroomRepository struct {
	db *classroomTable
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db *DB) classroom.Repository {
	return &classroomRepository{db: db.classrooms}
}

func (repo *classroomRepository) CheckCodeUniqueness(_ context.Context, code string) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, room := range repo.db.table {
		if room.Code == code {
			return classroom.ErrCodeExists
		}
	}
	return nil
}

func (repo *classroomRepository) CreateClassroom(_ context.Context, room classroom.Classroom) (classroom.Classroom, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, r := range repo.db.table {
		if r.Code == room.Code {
			return classroom.Classroom{}, classroom.ErrCodeExists
		}
	}
	repo.db.table[room.ID] = &room
	return room, nil
}

func (repo *classroomRepository) GetClassroomByID(_ context.Context, id string) (classroom.Classroom, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if room, ok := repo.db.table[id]; ok {
		return *room, nil
	}
	return classroom.Classroom{}, classroom.ErrNotFound
}

func (repo *classroomRepository) GetClassroomByCode(_ context.Context, code string) (classroom.Classroom, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, room := range repo.db.table {
		if room.Code == code {
			return *room, nil
		}
	}
	return classroom.Classroom{}, classroom.ErrNotFound
}

func (repo *classroomRepository) QueryClassroomsByAccount(_ context.Context, acctID string) ([]classroom.Classroom, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	rooms := make([]classroom.Classroom, 0)
	for _, room := range repo.db.table {
		if room.IsMember(acctID) {
			rooms = append(rooms, *room)
		}
	}
	return rooms, nil
}

func (repo *classroomRepository) AddMember(_ context.Context, roomID, acctID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	room, ok := repo.db.table[roomID]
	if !ok {
		return classroom.ErrNotFound
	}
	for _, id := range room.MemberIDs {
		if id == acctID {
			return nil
		}
	}
	room.MemberIDs = append(room.MemberIDs, acctID)
	return nil
}

func (repo *classroomRepository) RemoveMember(_ context.Context, roomID, acctID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	room, ok := repo.db.table[roomID]
	if !ok {
		return classroom.ErrNotFound
	}
	members := room.MemberIDs[:0]
	for _, id := range room.MemberIDs {
		if id != acctID {
			members = append(members, id)
		}
	}
	room.MemberIDs = members
	return nil
}

func (repo *classroomRepository) DeleteClassroom(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.table, id)
	return nil
}
