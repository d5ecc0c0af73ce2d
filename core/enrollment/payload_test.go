package enrollment_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core/enrollment"
)

func completeDraft() enrollment.Draft {
	d := validDraft()
	d.StudyArea = "engineering"
	d.Modality = "online"
	d.Program = "software-engineering"
	d.StartPeriod = "2027-1"
	d.Files.Identity = &enrollment.File{Name: "dni.png", Size: 1024, ContentType: "image/png", Key: "enrollments/s1/dni"}
	d.Files.Degree = &enrollment.File{Name: "degree.pdf", Size: 2048, ContentType: "application/pdf", Key: "enrollments/s1/degree"}
	return d
}

func TestAssembler_Assemble(t *testing.T) {
	a := enrollment.NewAssembler(validator.New())

	p, err := a.Assemble(completeDraft())
	require.NoError(t, err)

	want := []enrollment.Field{
		{Name: "email", Value: "ana@gmail.com"},
		{Name: "password", Value: "Abcd1234"},
		{Name: "name", Value: "Ana"},
		{Name: "lastName", Value: "Pérez"},
		{Name: "role", Value: "STUDENT"},
		{Name: "country", Value: "PE"},
		{Name: "documentType", Value: "DNI"},
		{Name: "documentNumber", Value: "87654321"},
		{Name: "nationality", Value: "peruvian"},
		{Name: "phoneType", Value: "mobile"},
		{Name: "phonePrefix", Value: "+51"},
		{Name: "phoneNumber", Value: "987654321"},
		{Name: "studyArea", Value: "engineering"},
		{Name: "modality", Value: "online"},
		{Name: "program", Value: "software-engineering"},
		{Name: "startPeriod", Value: "2027-1"},
	}
	if diff := cmp.Diff(want, p.Fields()); diff != "" {
		t.Errorf("Assemble() fields mismatch (-want +got):\n%s", diff)
	}

	attachments := p.Attachments()
	require.Len(t, attachments, 2)
	assert.Equal(t, "dniUrl", attachments[0].Name)
	assert.Equal(t, "enrollments/s1/dni", attachments[0].File.Key)
	assert.Equal(t, "degreeUrl", attachments[1].Name)

	file, ok := p.Attachment(enrollment.AttachmentDegree)
	assert.True(t, ok)
	assert.Equal(t, "degree.pdf", file.Name)
	_, ok = p.Field(enrollment.FieldPhoneArea)
	assert.False(t, ok, "empty optional fields are omitted")
}

func TestAssembler_Errors(t *testing.T) {
	a := enrollment.NewAssembler(validator.New())

	tests := []struct {
		name    string
		edit    func(d *enrollment.Draft)
		wantErr error
	}{
		{name: "missing degree", edit: func(d *enrollment.Draft) { d.Files.Degree = nil }, wantErr: enrollment.ErrMissingDocuments},
		{name: "missing identity", edit: func(d *enrollment.Draft) { d.Files.Identity = nil }, wantErr: enrollment.ErrMissingDocuments},
		{name: "documents checked first", edit: func(d *enrollment.Draft) { d.Files.Identity, d.Email = nil, "" }, wantErr: enrollment.ErrMissingDocuments},
		{name: "missing last name", edit: func(d *enrollment.Draft) { d.LastName = "" }, wantErr: enrollment.ErrInvalidSubmission},
		{name: "malformed email", edit: func(d *enrollment.Draft) { d.Email = "ana" }, wantErr: enrollment.ErrInvalidSubmission},
		{name: "short password", edit: func(d *enrollment.Draft) { d.Password, d.ConfirmPassword = "Ab1", "Ab1" }, wantErr: enrollment.ErrInvalidSubmission},
		{name: "passwords mismatch", edit: func(d *enrollment.Draft) { d.ConfirmPassword = "Abcd12345" }, wantErr: enrollment.ErrInvalidSubmission},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := completeDraft()
			tt.edit(&d)
			_, err := a.Assemble(d)
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

func TestAssembler_DefaultProgram(t *testing.T) {
	a := enrollment.NewAssembler(validator.New())
	d := completeDraft()
	d.Program = ""

	p, err := a.Assemble(d)
	require.NoError(t, err)
	program, _ := p.Field(enrollment.FieldProgram)
	assert.Equal(t, enrollment.UndeclaredProgram, program)
}
