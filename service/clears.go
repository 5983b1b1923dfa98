package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/kshivamiitk/classboard/models"
	"github.com/kshivamiitk/classboard/protocol"
	"github.com/kshivamiitk/classboard/store"
	"github.com/kshivamiitk/classboard/worker"
)

// The actual deletes run async through the queue; the consumer rebuilds the
// cache snapshot and pushes fresh init_strokes to the class when done. The
// lock bookkeeping and the user-facing announcements happen here, up front.

func (s *Service) enqueueClear(ctx context.Context, msg worker.ClearStrokesMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.MQ.Send(ctx, string(body))
}

// ClearAllStrokes wipes every stroke in the class and releases the lock.
func (s *Service) ClearAllStrokes(ctx context.Context, classID string) error {
	if err := s.Store.SetAnnotator(ctx, classID, "", ""); err != nil {
		return err
	}
	if err := s.Cache.SetAnnotator(ctx, classID, ""); err != nil {
		return err
	}

	if err := s.enqueueClear(ctx, worker.ClearStrokesMessage{ClassID: classID, DeleteAll: true}); err != nil {
		return err
	}

	s.broadcast(ctx, classID, protocol.ClearCommand{Type: protocol.KindClearAll})
	s.broadcast(ctx, classID, protocol.AnnotatorUpdate{Type: protocol.KindAnnotatorUpdate})
	return nil
}

// ClearTeacherStrokes removes only teacher-authored strokes, leaving student
// work untouched.
func (s *Service) ClearTeacherStrokes(ctx context.Context, classID string) error {
	if err := s.enqueueClear(ctx, worker.ClearStrokesMessage{ClassID: classID, Author: models.TeacherAuthor}); err != nil {
		return err
	}

	s.broadcast(ctx, classID, protocol.Info{
		Type:    protocol.KindInfo,
		Message: "Teacher annotations cleared (students preserved).",
	})
	return nil
}

// ClearStudentStrokes removes the strokes of the most recent student
// annotator. That identity is tracked exactly so this operation has a
// well-defined target; there is deliberately no clear-all-students variant.
func (s *Service) ClearStudentStrokes(ctx context.Context, classID string) error {
	class, err := s.Store.GetClass(ctx, classID)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return ErrInvalidClass
		}
		return err
	}

	target := class.LastStudentAnnotator
	if target == "" {
		return ErrNoStudentAnnotations
	}

	current := class.CurrentAnnotator
	if current == target {
		current = ""
	}
	if err := s.Store.SetAnnotator(ctx, classID, current, ""); err != nil {
		return err
	}
	if err := s.Cache.SetAnnotator(ctx, classID, current); err != nil {
		return err
	}
	class.CurrentAnnotator = current

	if err := s.enqueueClear(ctx, worker.ClearStrokesMessage{ClassID: classID, Author: target}); err != nil {
		return err
	}

	s.broadcast(ctx, classID, s.annotatorUpdateFor(ctx, class))
	s.broadcast(ctx, classID, protocol.Info{
		Type:    protocol.KindInfo,
		Message: "Cleared annotations made by last student annotator (teacher annotations preserved).",
	})
	return nil
}

// ClearMyStrokes lets a student retract their own strokes, dropping the lock
// and last-annotator references if they point at that student.
func (s *Service) ClearMyStrokes(ctx context.Context, classID string, studentToken string) error {
	class, err := s.Store.GetClass(ctx, classID)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return ErrInvalidClass
		}
		return err
	}

	current := class.CurrentAnnotator
	last := class.LastStudentAnnotator
	if current == studentToken {
		current = ""
	}
	if last == studentToken {
		last = ""
	}
	if current != class.CurrentAnnotator || last != class.LastStudentAnnotator {
		if err := s.Store.SetAnnotator(ctx, classID, current, last); err != nil {
			return err
		}
		if err := s.Cache.SetAnnotator(ctx, classID, current); err != nil {
			return err
		}
		class.CurrentAnnotator = current
	}

	if err := s.enqueueClear(ctx, worker.ClearStrokesMessage{ClassID: classID, Author: studentToken}); err != nil {
		return err
	}

	s.broadcast(ctx, classID, s.annotatorUpdateFor(ctx, class))
	return nil
}
