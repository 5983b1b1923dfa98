package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/kshivamiitk/classboard/models"
	"github.com/kshivamiitk/classboard/protocol"
	"github.com/kshivamiitk/classboard/store"
)

// RequestAnnotate records a student's ask to annotate a page and announces
// it to the class. The teacher sees it immediately if connected; otherwise
// it waits in the pending list until their next join.
func (s *Service) RequestAnnotate(ctx context.Context, classID string, studentToken string, studentName string, page int, note string) (models.PendingRequest, error) {
	if err := ValidatePage(page); err != nil {
		return models.PendingRequest{}, err
	}

	requestUUID, err := uuid.NewV4()
	if err != nil {
		return models.PendingRequest{}, err
	}

	req := models.PendingRequest{
		RequestID:    requestUUID.String(),
		StudentToken: studentToken,
		Page:         page,
		Note:         note,
	}
	if err := s.Store.PutPending(ctx, classID, req); err != nil {
		return models.PendingRequest{}, err
	}

	s.broadcast(ctx, classID, protocol.PendingNew{
		Type: protocol.KindPendingNew,
		PendingItem: protocol.PendingItem{
			RequestID: req.RequestID,
			Name:      studentName,
			Page:      page,
			Note:      note,
		},
	})
	return req, nil
}

// ApproveRequest grants the annotation lock to the requesting student.
// Popping the pending item and setting the annotator are separate writes;
// the pop wins ties, so a double approve reports unknown-request.
func (s *Service) ApproveRequest(ctx context.Context, classID string, requestID string) error {
	req, err := s.Store.PopPending(ctx, classID, requestID)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return ErrUnknownRequest
		}
		return err
	}

	student, err := s.Store.GetStudent(ctx, classID, req.StudentToken)
	if err != nil {
		if !errors.Is(err, store.ErrItemNotFound) {
			return err
		}
		student = models.Student{Token: req.StudentToken, Name: "Unknown"}
	}
	student.Allowed = true
	if err := s.Store.PutStudent(ctx, classID, student); err != nil {
		return err
	}

	if err := s.Store.SetAnnotator(ctx, classID, req.StudentToken, req.StudentToken); err != nil {
		return err
	}
	if err := s.Cache.SetAnnotator(ctx, classID, req.StudentToken); err != nil {
		return err
	}

	s.sendTo(ctx, classID, req.StudentToken, protocol.RequestResult{
		Type:   protocol.KindRequestResult,
		Result: "approved",
		Page:   req.Page,
	})
	s.broadcast(ctx, classID, protocol.AnnotatorUpdate{
		Type:             protocol.KindAnnotatorUpdate,
		CurrentAnnotator: req.StudentToken,
		AnnotatorName:    student.Name,
	})
	s.broadcast(ctx, classID, protocol.Info{
		Type:    protocol.KindInfo,
		Message: fmt.Sprintf("%s approved to annotate page %d.", student.Name, req.Page),
	})
	return nil
}

// DenyRequest drops the pending item and tells only the requester.
func (s *Service) DenyRequest(ctx context.Context, classID string, requestID string) error {
	req, err := s.Store.PopPending(ctx, classID, requestID)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return ErrUnknownRequest
		}
		return err
	}

	s.sendTo(ctx, classID, req.StudentToken, protocol.RequestResult{
		Type:   protocol.KindRequestResult,
		Result: "denied",
		Page:   req.Page,
	})
	return nil
}

// RevokeAnnotator releases the lock. With a token it releases only if that
// student currently holds it; without one it releases unconditionally. Either
// way the resulting state is broadcast so clients converge.
func (s *Service) RevokeAnnotator(ctx context.Context, classID string, studentToken string) error {
	class, err := s.Store.GetClass(ctx, classID)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return ErrInvalidClass
		}
		return err
	}

	if studentToken == "" || class.CurrentAnnotator == studentToken {
		if class.CurrentAnnotator != "" {
			if err := s.Store.SetAnnotator(ctx, classID, "", class.LastStudentAnnotator); err != nil {
				return err
			}
			if err := s.Cache.SetAnnotator(ctx, classID, ""); err != nil {
				return err
			}
		}
		class.CurrentAnnotator = ""
	}

	s.broadcast(ctx, classID, s.annotatorUpdateFor(ctx, class))
	s.broadcast(ctx, classID, protocol.Info{
		Type:    protocol.KindInfo,
		Message: "Annotation stopped by teacher.",
	})
	return nil
}

// ReleaseAnnotator lets the current holder hand the lock back without teacher
// involvement. Anyone who does not hold it is rejected, so the only broadcast
// a non-holder can trigger is none at all.
func (s *Service) ReleaseAnnotator(ctx context.Context, classID string, holderToken string) error {
	class, err := s.Store.GetClass(ctx, classID)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return ErrInvalidClass
		}
		return err
	}

	if holderToken == "" || class.CurrentAnnotator != holderToken {
		return ErrNotAllowedToAnnotate
	}

	if err := s.Store.SetAnnotator(ctx, classID, "", class.LastStudentAnnotator); err != nil {
		return err
	}
	if err := s.Cache.SetAnnotator(ctx, classID, ""); err != nil {
		return err
	}
	class.CurrentAnnotator = ""

	s.broadcast(ctx, classID, s.annotatorUpdateFor(ctx, class))
	s.broadcast(ctx, classID, protocol.Info{
		Type:    protocol.KindInfo,
		Message: "Annotation stopped.",
	})
	return nil
}
