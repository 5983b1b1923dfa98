package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/kshivamiitk/classboard/models"
	"github.com/kshivamiitk/classboard/protocol"
	"github.com/kshivamiitk/classboard/store"
)

// Error messages double as the wire error codes sent to clients.
var (
	ErrInvalidClass         = errors.New("invalid-class")
	ErrInvalidTeacherKey    = errors.New("invalid-teacher-key")
	ErrUnknownRole          = errors.New("unknown-role")
	ErrUnknownRequest       = errors.New("unknown-request")
	ErrNotAllowedToAnnotate = errors.New("not-allowed-to-annotate")
	ErrNoStudentAnnotations = errors.New("no-student-annotations")
)

const teacherDisplayName = "Teacher"

func newClassID() (string, error) {
	return randomURLToken(6)
}

// Teacher keys are short and typed by hand, so stick to unambiguous
// uppercase alphanumerics.
func newTeacherKey() (string, error) {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}

func newStudentToken() (string, error) {
	return randomURLToken(8)
}

func randomURLToken(numBytes int) (string, error) {
	buf := make([]byte, numBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CreateClass mints a new session around an uploaded PDF. The returned class
// carries the generated id and teacher key; the caller hands both to the
// teacher's browser and never stores them elsewhere.
func (s *Service) CreateClass(ctx context.Context, pdfFilename string) (models.Class, error) {
	classID, err := newClassID()
	if err != nil {
		return models.Class{}, err
	}
	teacherKey, err := newTeacherKey()
	if err != nil {
		return models.Class{}, err
	}

	class := models.Class{
		ID:          classID,
		TeacherKey:  teacherKey,
		PDFFilename: pdfFilename,
		Created:     time.Now().Unix(),
	}
	return s.Store.CreateClass(ctx, class)
}

// JoinTeacher authenticates a teacher join against the class key.
func (s *Service) JoinTeacher(ctx context.Context, classID string, key string) (models.Class, error) {
	class, err := s.Store.GetClass(ctx, classID)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return models.Class{}, ErrInvalidClass
		}
		return models.Class{}, err
	}
	if class.TeacherKey != key {
		return models.Class{}, ErrInvalidTeacherKey
	}
	return class, nil
}

// JoinStudent resolves a student join. A recognized token reclaims the
// existing identity (updating the display name); anything else mints a fresh
// token. Tokens are never rejected, so a student who lost theirs simply
// starts over as a new identity.
func (s *Service) JoinStudent(ctx context.Context, classID string, providedToken string, name string) (models.Class, models.Student, error) {
	class, err := s.Store.GetClass(ctx, classID)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return models.Class{}, models.Student{}, ErrInvalidClass
		}
		return models.Class{}, models.Student{}, err
	}

	if providedToken != "" {
		student, err := s.Store.GetStudent(ctx, classID, providedToken)
		if err == nil {
			student.Name = name
			if err := s.Store.PutStudent(ctx, classID, student); err != nil {
				return models.Class{}, models.Student{}, err
			}
			return class, student, nil
		}
		if !errors.Is(err, store.ErrItemNotFound) {
			return models.Class{}, models.Student{}, err
		}
	}

	token, err := newStudentToken()
	if err != nil {
		return models.Class{}, models.Student{}, err
	}
	student := models.Student{Token: token, Name: name, Allowed: false}
	if err := s.Store.PutStudent(ctx, classID, student); err != nil {
		return models.Class{}, models.Student{}, err
	}
	return class, student, nil
}

// AnnotatorUpdate builds the current lock announcement for a class.
func (s *Service) AnnotatorUpdate(ctx context.Context, classID string) (protocol.AnnotatorUpdate, error) {
	class, err := s.Store.GetClass(ctx, classID)
	if err != nil {
		return protocol.AnnotatorUpdate{}, err
	}
	return s.annotatorUpdateFor(ctx, class), nil
}

func (s *Service) annotatorUpdateFor(ctx context.Context, class models.Class) protocol.AnnotatorUpdate {
	update := protocol.AnnotatorUpdate{
		Type:             protocol.KindAnnotatorUpdate,
		CurrentAnnotator: class.CurrentAnnotator,
	}
	switch {
	case class.CurrentAnnotator == models.TeacherAuthor:
		update.AnnotatorName = teacherDisplayName
	case class.CurrentAnnotator != "":
		if student, err := s.Store.GetStudent(ctx, class.ID, class.CurrentAnnotator); err == nil {
			update.AnnotatorName = student.Name
		}
	}
	return update
}

// PendingList builds the open request list with resolved student names,
// sent to a teacher on join.
func (s *Service) PendingList(ctx context.Context, classID string) (protocol.PendingList, error) {
	pending, err := s.Store.ListPending(ctx, classID)
	if err != nil {
		return protocol.PendingList{}, err
	}

	list := protocol.PendingList{
		Type:    protocol.KindPendingList,
		Pending: make([]protocol.PendingItem, 0, len(pending)),
	}
	for _, req := range pending {
		item := protocol.PendingItem{
			RequestID: req.RequestID,
			Page:      req.Page,
			Note:      req.Note,
		}
		if student, err := s.Store.GetStudent(ctx, classID, req.StudentToken); err == nil {
			item.Name = student.Name
		}
		list.Pending = append(list.Pending, item)
	}
	return list, nil
}
