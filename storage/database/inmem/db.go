package inmemdb

import (
	"sync"

	"github.com/trezcool/campus/core/user"
)

type (
	// DB holds the tables shared by the in-memory repositories.
	DB struct {
		user    *userTable
		student *studentTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	studentTable struct {
		sync.RWMutex
		table map[string]*user.StudentProfile
	}
)

func Open() *DB {
	return &DB{
		user:    &userTable{table: make(map[string]*user.User)},
		student: &studentTable{table: make(map[string]*user.StudentProfile)},
	}
}
