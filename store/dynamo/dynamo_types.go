package dynamo

import (
	"strings"

	"github.com/kshivamiitk/classboard/models"
)

type dynamoClass struct {
	PK                   string `dynamodbav:"PK"`
	SK                   string `dynamodbav:"SK"`
	TeacherKey           string `dynamodbav:"TeacherKey"`
	PDFFilename          string `dynamodbav:"PDFFilename"`
	CurrentAnnotator     string `dynamodbav:"CurrentAnnotator"`
	LastStudentAnnotator string `dynamodbav:"LastStudentAnnotator"`
	Created              int64  `dynamodbav:"Created"`
}

// Map domain Class -> Dynamo
func classToDynamo(c models.Class) dynamoClass {
	return dynamoClass{
		PK:                   "CLASS#" + c.ID,
		SK:                   "META",
		TeacherKey:           c.TeacherKey,
		PDFFilename:          c.PDFFilename,
		CurrentAnnotator:     c.CurrentAnnotator,
		LastStudentAnnotator: c.LastStudentAnnotator,
		Created:              c.Created,
	}
}

// Map Dynamo -> domain Class
func classFromDynamo(dc dynamoClass) models.Class {
	return models.Class{
		ID:                   strings.TrimPrefix(dc.PK, "CLASS#"),
		TeacherKey:           dc.TeacherKey,
		PDFFilename:          dc.PDFFilename,
		CurrentAnnotator:     dc.CurrentAnnotator,
		LastStudentAnnotator: dc.LastStudentAnnotator,
		Created:              dc.Created,
	}
}

type dynamoStudent struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	Name        string `dynamodbav:"Name"`
	Allowed     bool   `dynamodbav:"Allowed"`
	StrokeCount int    `dynamodbav:"StrokeCount"`
}

func studentToDynamo(classID string, s models.Student) dynamoStudent {
	return dynamoStudent{
		PK:          "CLASS#" + classID,
		SK:          "STUDENT#" + s.Token,
		Name:        s.Name,
		Allowed:     s.Allowed,
		StrokeCount: s.StrokeCount,
	}
}

func studentFromDynamo(ds dynamoStudent) models.Student {
	return models.Student{
		Token:       strings.TrimPrefix(ds.SK, "STUDENT#"),
		Name:        ds.Name,
		Allowed:     ds.Allowed,
		StrokeCount: ds.StrokeCount,
	}
}

type dynamoPending struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	StudentToken string `dynamodbav:"StudentToken"`
	Page         int    `dynamodbav:"Page"`
	Note         string `dynamodbav:"Note"`
}

func pendingToDynamo(classID string, r models.PendingRequest) dynamoPending {
	return dynamoPending{
		PK:           "CLASS#" + classID,
		SK:           "PENDING#" + r.RequestID,
		StudentToken: r.StudentToken,
		Page:         r.Page,
		Note:         r.Note,
	}
}

func pendingFromDynamo(dp dynamoPending) models.PendingRequest {
	return models.PendingRequest{
		RequestID:    strings.TrimPrefix(dp.SK, "PENDING#"),
		StudentToken: dp.StudentToken,
		Page:         dp.Page,
		Note:         dp.Note,
	}
}

// Stroke items sort by SK (UUIDv7), which is creation-time ordered. AuthorKey
// feeds GSI_AuthorStrokes so author-scoped clears can query without scanning.
type dynamoStroke struct {
	PK        string         `dynamodbav:"PK"`
	SK        string         `dynamodbav:"SK"`
	AuthorKey string         `dynamodbav:"AuthorKey"`
	Author    string         `dynamodbav:"Author"`
	Page      int            `dynamodbav:"Page"`
	Color     string         `dynamodbav:"Color"`
	Width     int            `dynamodbav:"Width"`
	Points    []models.Point `dynamodbav:"Points"`
}

func authorKey(classID, author string) string {
	return classID + "#" + author
}

func strokeRecordToDynamo(sr models.StrokeRecord) dynamoStroke {
	return dynamoStroke{
		PK:        "STROKE#" + sr.ClassID,
		SK:        sr.Id,
		AuthorKey: authorKey(sr.ClassID, sr.Stroke.Author),
		Author:    sr.Stroke.Author,
		Page:      sr.Stroke.Page,
		Color:     sr.Stroke.Color,
		Width:     sr.Stroke.Width,
		Points:    sr.Stroke.Points,
	}
}

func strokeRecordFromDynamo(ds dynamoStroke) models.StrokeRecord {
	return models.StrokeRecord{
		ClassID: strings.TrimPrefix(ds.PK, "STROKE#"),
		Id:      ds.SK,
		Stroke: models.Stroke{
			Page:   ds.Page,
			Author: ds.Author,
			Color:  ds.Color,
			Width:  ds.Width,
			Points: ds.Points,
		},
	}
}
