package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezvolt/darasa/core/classroom"
)

type classroomRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Code        string    `db:"code"`
	OwnerID     string    `db:"owner_id"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (row classroomRow) toClassroom(memberIDs []string) classroom.Classroom {
	return classroom.Classroom{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Code:        row.Code,
		OwnerID:     row.OwnerID,
		MemberIDs:   memberIDs,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

type classroomRepository struct {
	db *sqlx.DB
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db *sqlx.DB) classroom.Repository {
	return &classroomRepository{db: db}
}

func (repo *classroomRepository) CheckCodeUniqueness(ctx context.Context, code string) error {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM classroom WHERE code = $1)`, code)
	if err != nil {
		return errors.Wrap(err, "checking code uniqueness")
	}
	if exists {
		return classroom.ErrCodeExists
	}
	return nil
}

func (repo *classroomRepository) members(ctx context.Context, roomID string) ([]string, error) {
	var ids []string
	const query = `SELECT account_id FROM classroom_member WHERE classroom_id = $1 ORDER BY joined_at`
	if err := repo.db.SelectContext(ctx, &ids, query, roomID); err != nil {
		return nil, errors.Wrap(err, "querying classroom members")
	}
	return ids, nil
}

func (repo *classroomRepository) CreateClassroom(ctx context.Context, room classroom.Classroom) (classroom.Classroom, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return classroom.Classroom{}, errors.Wrap(err, "beginning tx")
	}
	defer tx.Rollback()

	const insertRoom = `
		INSERT INTO classroom (id, name, description, code, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = tx.ExecContext(ctx, insertRoom,
		room.ID, room.Name, room.Description, room.Code, room.OwnerID, room.CreatedAt.UTC(), room.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err, "code") {
			return classroom.Classroom{}, classroom.ErrCodeExists
		}
		return classroom.Classroom{}, errors.Wrap(err, "creating classroom")
	}

	// the owner is always a member
	const insertMember = `INSERT INTO classroom_member (classroom_id, account_id, joined_at) VALUES ($1, $2, $3)`
	if _, err = tx.ExecContext(ctx, insertMember, room.ID, room.OwnerID, room.CreatedAt.UTC()); err != nil {
		return classroom.Classroom{}, errors.Wrap(err, "adding owner membership")
	}

	if err = tx.Commit(); err != nil {
		return classroom.Classroom{}, errors.Wrap(err, "committing tx")
	}
	room.MemberIDs = []string{room.OwnerID}
	return room, nil
}

func (repo *classroomRepository) getWhere(ctx context.Context, clause string, args ...interface{}) (classroom.Classroom, error) {
	var row classroomRow
	err := repo.db.GetContext(ctx, &row, `SELECT * FROM classroom WHERE `+clause, args...)
	if err == sql.ErrNoRows {
		return classroom.Classroom{}, classroom.ErrNotFound
	}
	if err != nil {
		return classroom.Classroom{}, errors.Wrap(err, "querying classroom")
	}
	ids, err := repo.members(ctx, row.ID)
	if err != nil {
		return classroom.Classroom{}, err
	}
	return row.toClassroom(ids), nil
}

func (repo *classroomRepository) GetClassroomByID(ctx context.Context, id string) (classroom.Classroom, error) {
	return repo.getWhere(ctx, `id = $1`, id)
}

func (repo *classroomRepository) GetClassroomByCode(ctx context.Context, code string) (classroom.Classroom, error) {
	return repo.getWhere(ctx, `code = $1`, code)
}

func (repo *classroomRepository) QueryClassroomsByAccount(ctx context.Context, acctID string) ([]classroom.Classroom, error) {
	var rows []classroomRow
	const query = `
		SELECT c.* FROM classroom c
		JOIN classroom_member m ON m.classroom_id = c.id
		WHERE m.account_id = $1
		ORDER BY c.created_at`
	if err := repo.db.SelectContext(ctx, &rows, query, acctID); err != nil {
		return nil, errors.Wrap(err, "querying classrooms by account")
	}

	rooms := make([]classroom.Classroom, 0, len(rows))
	for _, row := range rows {
		ids, err := repo.members(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, row.toClassroom(ids))
	}
	return rooms, nil
}

func (repo *classroomRepository) AddMember(ctx context.Context, roomID, acctID string) error {
	const query = `
		INSERT INTO classroom_member (classroom_id, account_id, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (classroom_id, account_id) DO NOTHING`
	_, err := repo.db.ExecContext(ctx, query, roomID, acctID, time.Now().UTC())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" { // foreign key: no such classroom
			return classroom.ErrNotFound
		}
		return errors.Wrap(err, "adding classroom member")
	}
	return nil
}

func (repo *classroomRepository) RemoveMember(ctx context.Context, roomID, acctID string) error {
	const query = `DELETE FROM classroom_member WHERE classroom_id = $1 AND account_id = $2`
	_, err := repo.db.ExecContext(ctx, query, roomID, acctID)
	return errors.Wrap(err, "removing classroom member")
}

func (repo *classroomRepository) DeleteClassroom(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM classroom WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting classroom")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return classroom.ErrNotFound
	}
	return nil
}
