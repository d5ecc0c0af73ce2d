package enrollment

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// DefaultMaxFileSize is the maximum size of each uploaded document: 5 MiB.
const DefaultMaxFileSize int64 = 5 << 20

// Slot identifies one of the two required documents.
type Slot string

const (
	SlotIdentity Slot = "dni"    // identity document (image)
	SlotDegree   Slot = "degree" // degree or certificate (document/PDF)
)

var (
	Slots = []Slot{SlotIdentity, SlotDegree}

	ErrUnknownSlot = errors.New("unknown document slot")
)

func ParseSlot(s string) (Slot, error) {
	for _, slot := range Slots {
		if string(slot) == s {
			return slot, nil
		}
	}
	return "", ErrUnknownSlot
}

func (s Slot) Label() string {
	switch s {
	case SlotIdentity:
		return "identity document"
	case SlotDegree:
		return "degree certificate"
	default:
		return string(s)
	}
}

// File is a handle on an uploaded document staged in the blob storage.
type File struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	Key         string `json:"key"`
}

type Files struct {
	Identity *File `json:"dni,omitempty"`
	Degree   *File `json:"degree,omitempty"`
}

func (f *Files) Get(slot Slot) *File {
	switch slot {
	case SlotIdentity:
		return f.Identity
	case SlotDegree:
		return f.Degree
	}
	return nil
}

func (f *Files) set(slot Slot, file *File) {
	switch slot {
	case SlotIdentity:
		f.Identity = file
	case SlotDegree:
		f.Degree = file
	}
}

// Clear empties the slot and returns the file it held, if any.
func (f *Files) Clear(slot Slot) *File {
	prev := f.Get(slot)
	f.set(slot, nil)
	return prev
}

// Complete reports whether both documents are attached.
func (f Files) Complete() bool {
	return f.Identity != nil && f.Degree != nil
}

// Upload is a document received from the user.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Content     io.Reader
}

// FileSizeError is returned when a document exceeds the maximum size.
type FileSizeError struct {
	Slot    Slot
	MaxSize int64
}

func (e *FileSizeError) Error() string {
	return fmt.Sprintf("the %s must not exceed %s", e.Slot.Label(), formatSize(e.MaxSize))
}

// fileGate rejects documents over maxSize.
type fileGate struct {
	maxSize int64
}

func (g fileGate) check(slot Slot, size int64) error {
	if size > g.maxSize {
		return &FileSizeError{Slot: slot, MaxSize: g.maxSize}
	}
	return nil
}

func stagingKey(sessionID string, slot Slot) string {
	return fmt.Sprintf("enrollments/%s/%s", sessionID, slot)
}

func formatSize(n int64) string {
	const unit = 1024
	switch {
	case n >= unit*unit && n%(unit*unit) == 0:
		return fmt.Sprintf("%d MiB", n/(unit*unit))
	case n >= unit && n%unit == 0:
		return fmt.Sprintf("%d KiB", n/unit)
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
