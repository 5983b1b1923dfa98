package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/kshivamiitk/classboard/models"
	"github.com/kshivamiitk/classboard/protocol"
	"github.com/kshivamiitk/classboard/worker"
)

const (
	maxAuthorStrokes = 10000
	maxPageStrokes   = 1000
)

func (s *Service) enforceAuthorAndPageQuota(ctx context.Context, classID string, author string, page int) error {
	// Check author quota
	authorStrokeCount, err := s.Cache.GetAuthorStrokeCount(ctx, classID, author)
	if err != nil {
		return err
	}
	if authorStrokeCount == -1 {
		// Cache miss: seed from the store's GSI count
		authorStrokeCount, err = s.Store.GetAuthorStrokeCount(ctx, classID, author)
		if err != nil {
			return err
		}
		s.Cache.SeedAuthorStrokeCount(ctx, classID, author, authorStrokeCount)
	}
	if authorStrokeCount >= maxAuthorStrokes {
		log.Printf("Author %s in class %s exceeded stroke quota (%d)", author, classID, authorStrokeCount)
		return errors.New("author stroke quota exceeded")
	}

	// Page counts only exist once the class snapshot is cached
	isComplete, _ := s.Cache.IsClassComplete(ctx, classID)
	if !isComplete {
		if _, err := s.LoadStrokes(ctx, classID); err != nil {
			log.Printf("Failed to load class %s for quota check: %v", classID, err)
			// Continue anyway - if we can't load, assume 0 strokes
		}
	}

	pageStrokeCount, err := s.Cache.GetPageStrokeCount(ctx, classID, page)
	if err != nil {
		pageStrokeCount = 0
	}
	if pageStrokeCount >= maxPageStrokes {
		log.Printf("Page %d in class %s exceeded stroke quota (%d)", page, classID, pageStrokeCount)
		return errors.New("page stroke quota exceeded")
	}
	return nil
}

// SubmitStroke commits one finished stroke. Teachers may always draw;
// a student draws only while holding the annotation lock. The stroke is
// acknowledged as soon as its id is generated, with persistence, caching
// and fan-out running asynchronously.
func (s *Service) SubmitStroke(ctx context.Context, classID string, role models.Role, token string, wire protocol.WireStroke) (string, error) {
	stroke := wire.ToModel()
	if err := ValidateStroke(stroke); err != nil {
		return "", err
	}

	author := models.TeacherAuthor
	if role == models.RoleStudent {
		holder, found, err := s.Cache.GetAnnotator(ctx, classID)
		if err != nil || !found {
			class, err := s.Store.GetClass(ctx, classID)
			if err != nil {
				return "", err
			}
			holder = class.CurrentAnnotator
			s.Cache.SetAnnotator(ctx, classID, holder)
		}
		if holder != token {
			return "", ErrNotAllowedToAnnotate
		}
		author = token
	}
	stroke.Author = author

	if err := s.enforceAuthorAndPageQuota(ctx, classID, author, stroke.Page); err != nil {
		return "", err
	}

	strokeUUID, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	strokeId := strokeUUID.String()

	record := models.StrokeRecord{
		ClassID: classID,
		Id:      strokeId,
		Stroke:  stroke,
	}

	// Async side-effects - return to caller as soon as strokeId is generated
	go func() {
		s.Cache.IncrementAuthorStrokeCount(context.Background(), classID, author)

		batched := worker.BatchedStroke{Record: record}
		if role == models.RoleStudent {
			batched.StudentToken = token
		}
		s.StrokeBatcher.WriteCh <- batched

		cached := protocol.CachedStroke{Id: strokeId, WireStroke: protocol.FromModel(stroke)}
		if strokeBytes, err := json.Marshal(cached); err == nil {
			t, _ := getTimeFromUUIDv7(strokeId)
			s.Cache.AddStroke(context.Background(), classID, strokeId, t.UnixMilli(), stroke.Page, strokeBytes)
		}

		s.broadcast(context.Background(), classID, protocol.ApplyStroke{
			Type:   protocol.KindApplyStroke,
			Stroke: protocol.FromModel(stroke),
		})
	}()

	return strokeId, nil
}

func getTimeFromUUIDv7(strokeId string) (time.Time, error) {
	id, err := uuid.FromString(strokeId)
	if err != nil || id.Version() != uuid.V7 {
		return time.Time{}, err
	}
	ts, err := uuid.TimestampFromV7(id)
	if err != nil {
		return time.Time{}, err
	}
	return ts.Time()
}
