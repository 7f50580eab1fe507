package inmemdb

import (
	"sync"

	"github.com/trezvolt/darasa/core/account"
	"github.com/trezvolt/darasa/core/classroom"
)

type (
	accountTable struct {
		sync.RWMutex
		table map[string]*account.Account
	}

	classroomTable struct {
		sync.RWMutex
		table map[string]*classroom.Classroom
	}

	DB struct {
		accounts   *accountTable
		classrooms *classroomTable
	}
)

func Open() (*DB, error) {
	return &DB{
		accounts:   &accountTable{table: make(map[string]*account.Account)},
		classrooms: &classroomTable{table: make(map[string]*classroom.Classroom)},
	}, nil
}
