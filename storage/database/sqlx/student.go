package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
)

const studentColumns = `sp.user_id, u.email, sp.first_name, sp.last_name, sp.country, sp.document_type,
	sp.document_number, sp.nationality, sp.phone_type, sp.phone_prefix, sp.phone_area, sp.phone_number,
	sp.study_area, sp.modality, sp.program, sp.start_period, sp.dni_key, sp.degree_key, sp.status,
	sp.reviewed_by, sp.reviewed_at, sp.review_note, sp.created_at, sp.updated_at`

const studentFrom = ` FROM student_profile sp JOIN "user" u ON u.id = sp.user_id`

type studentRow struct {
	UserID         string      `db:"user_id"`
	Email          null.String `db:"email"`
	FirstName      string      `db:"first_name"`
	LastName       string      `db:"last_name"`
	Country        null.String `db:"country"`
	DocumentType   string      `db:"document_type"`
	DocumentNumber string      `db:"document_number"`
	Nationality    null.String `db:"nationality"`
	PhoneType      null.String `db:"phone_type"`
	PhonePrefix    null.String `db:"phone_prefix"`
	PhoneArea      null.String `db:"phone_area"`
	PhoneNumber    null.String `db:"phone_number"`
	StudyArea      null.String `db:"study_area"`
	Modality       null.String `db:"modality"`
	Program        string      `db:"program"`
	StartPeriod    null.String `db:"start_period"`
	DNIKey         string      `db:"dni_key"`
	DegreeKey      string      `db:"degree_key"`
	Status         string      `db:"status"`
	ReviewedBy     null.String `db:"reviewed_by"`
	ReviewedAt     null.Time   `db:"reviewed_at"`
	ReviewNote     null.String `db:"review_note"`
	CreatedAt      null.Time   `db:"created_at"`
	UpdatedAt      null.Time   `db:"updated_at"`
}

type studentRepository struct {
	exec core.DBExecutor
}

var _ user.StudentRepository = (*studentRepository)(nil)

func NewStudentRepository(exec core.DBExecutor) user.StudentRepository {
	return &studentRepository{exec: exec}
}

func (repo studentRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func (repo studentRepository) fromRow(row studentRow) user.StudentProfile {
	return user.StudentProfile{
		UserID:         row.UserID,
		Email:          row.Email.String,
		FirstName:      row.FirstName,
		LastName:       row.LastName,
		Country:        row.Country.String,
		DocumentType:   row.DocumentType,
		DocumentNumber: row.DocumentNumber,
		Nationality:    row.Nationality.String,
		PhoneType:      row.PhoneType.String,
		PhonePrefix:    row.PhonePrefix.String,
		PhoneArea:      row.PhoneArea.String,
		PhoneNumber:    row.PhoneNumber.String,
		StudyArea:      row.StudyArea.String,
		Modality:       row.Modality.String,
		Program:        row.Program,
		StartPeriod:    row.StartPeriod.String,
		DNIKey:         row.DNIKey,
		DegreeKey:      row.DegreeKey,
		Status:         row.Status,
		ReviewedBy:     row.ReviewedBy.String,
		ReviewedAt:     row.ReviewedAt.Time,
		ReviewNote:     row.ReviewNote.String,
		CreatedAt:      row.CreatedAt.Time,
		UpdatedAt:      row.UpdatedAt.Time,
	}
}

func (repo studentRepository) get(ctx context.Context, exe core.DBExecutor, userID string) (user.StudentProfile, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return user.StudentProfile{}, user.ErrProfileNotFound
	}
	var row studentRow
	q := `SELECT ` + studentColumns + studentFrom + ` WHERE sp.user_id = ?`
	if err := sqlx.GetContext(ctx, exe, &row, exe.Rebind(q), userID); err != nil {
		if err == sql.ErrNoRows {
			return user.StudentProfile{}, user.ErrProfileNotFound
		}
		return user.StudentProfile{}, errors.Wrap(err, "finding student profile")
	}
	return repo.fromRow(row), nil
}

func (repo studentRepository) CreateStudentProfile(ctx context.Context, p user.StudentProfile, exec ...core.DBExecutor) (user.StudentProfile, error) {
	exe := repo.getExec(exec)

	q := `INSERT INTO student_profile (
		user_id, first_name, last_name, country, document_type, document_number, nationality,
		phone_type, phone_prefix, phone_area, phone_number, study_area, modality, program, start_period,
		dni_key, degree_key, status, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := exe.ExecContext(ctx, exe.Rebind(q),
		p.UserID, p.FirstName, p.LastName, nullString(p.Country), p.DocumentType, p.DocumentNumber, nullString(p.Nationality),
		nullString(p.PhoneType), nullString(p.PhonePrefix), nullString(p.PhoneArea), nullString(p.PhoneNumber),
		nullString(p.StudyArea), nullString(p.Modality), p.Program, nullString(p.StartPeriod),
		p.DNIKey, p.DegreeKey, p.Status, nullTime(p.CreatedAt), nullTime(p.UpdatedAt),
	)
	if err != nil {
		return user.StudentProfile{}, errors.Wrap(err, "inserting student profile")
	}
	return repo.get(ctx, exe, p.UserID)
}

func (repo studentRepository) GetStudentProfile(ctx context.Context, userID string, exec ...core.DBExecutor) (user.StudentProfile, error) {
	return repo.get(ctx, repo.getExec(exec), userID)
}

func (repo studentRepository) QueryStudentProfiles(ctx context.Context, filter user.StudentFilter, exec ...core.DBExecutor) ([]user.StudentProfile, error) {
	exe := repo.getExec(exec)

	q := `SELECT ` + studentColumns + studentFrom
	var args []interface{}
	if filter.Status != "" {
		q += ` WHERE sp.status = ?`
		args = append(args, filter.Status)
	}
	q += ` ORDER BY sp.created_at ASC`

	var rows []studentRow
	if err := sqlx.SelectContext(ctx, exe, &rows, exe.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying student profiles")
	}
	profiles := make([]user.StudentProfile, 0, len(rows))
	for _, row := range rows {
		profiles = append(profiles, repo.fromRow(row))
	}
	return profiles, nil
}

// UpdateStudentProfile saves the review of the profile.
func (repo studentRepository) UpdateStudentProfile(ctx context.Context, p user.StudentProfile, exec ...core.DBExecutor) (user.StudentProfile, error) {
	exe := repo.getExec(exec)

	q := `UPDATE student_profile SET status = ?, reviewed_by = ?, reviewed_at = ?, review_note = ?, updated_at = ?
	WHERE user_id = ?`
	res, err := exe.ExecContext(ctx, exe.Rebind(q),
		p.Status, nullString(p.ReviewedBy), nullTime(p.ReviewedAt), nullString(p.ReviewNote), nullTime(p.UpdatedAt),
		p.UserID,
	)
	if err != nil {
		return user.StudentProfile{}, errors.Wrap(err, "updating student profile")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.StudentProfile{}, user.ErrProfileNotFound
	}
	return repo.get(ctx, exe, p.UserID)
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}
