package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
)

type studentRepository struct {
	db    *studentTable
	users *userTable
}

var _ user.StudentRepository = (*studentRepository)(nil)

func NewStudentRepository(db *DB) user.StudentRepository {
	return &studentRepository{db: db.student, users: db.user}
}

// withEmail fills the profile email from the user table.
func (repo *studentRepository) withEmail(profile user.StudentProfile) user.StudentProfile {
	repo.users.RLock()
	defer repo.users.RUnlock()
	if usr, ok := repo.users.table[profile.UserID]; ok {
		profile.Email = usr.Email
	}
	return profile
}

func (repo *studentRepository) CreateStudentProfile(_ context.Context, profile user.StudentProfile, _ ...core.DBExecutor) (user.StudentProfile, error) {
	repo.users.RLock()
	_, ok := repo.users.table[profile.UserID]
	repo.users.RUnlock()
	if !ok {
		return user.StudentProfile{}, user.ErrNotFound
	}

	repo.db.Lock()
	p := profile
	repo.db.table[profile.UserID] = &p
	repo.db.Unlock()
	return repo.withEmail(profile), nil
}

func (repo *studentRepository) GetStudentProfile(_ context.Context, userID string, _ ...core.DBExecutor) (user.StudentProfile, error) {
	repo.db.RLock()
	profile, ok := repo.db.table[userID]
	repo.db.RUnlock()
	if !ok {
		return user.StudentProfile{}, user.ErrProfileNotFound
	}
	return repo.withEmail(*profile), nil
}

func (repo *studentRepository) QueryStudentProfiles(_ context.Context, filter user.StudentFilter, _ ...core.DBExecutor) ([]user.StudentProfile, error) {
	repo.db.RLock()
	profiles := make([]user.StudentProfile, 0, len(repo.db.table))
	for _, p := range repo.db.table {
		if filter.Status == "" || p.Status == filter.Status {
			profiles = append(profiles, *p)
		}
	}
	repo.db.RUnlock()

	for i := range profiles {
		profiles[i] = repo.withEmail(profiles[i])
	}
	sort.SliceStable(profiles, func(i, j int) bool { return profiles[i].CreatedAt.Before(profiles[j].CreatedAt) })
	return profiles, nil
}

func (repo *studentRepository) UpdateStudentProfile(_ context.Context, profile user.StudentProfile, _ ...core.DBExecutor) (user.StudentProfile, error) {
	repo.db.Lock()
	orig, ok := repo.db.table[profile.UserID]
	if !ok {
		repo.db.Unlock()
		return user.StudentProfile{}, user.ErrProfileNotFound
	}
	orig.Status = profile.Status
	orig.ReviewedBy = profile.ReviewedBy
	orig.ReviewedAt = profile.ReviewedAt
	orig.ReviewNote = profile.ReviewNote
	orig.UpdatedAt = profile.UpdatedAt
	updated := *orig
	repo.db.Unlock()
	return repo.withEmail(updated), nil
}
