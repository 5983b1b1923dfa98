package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/kshivamiitk/classboard/models"
)

type DynamoClassStore struct {
	client    *dynamodb.Client
	tableName string
}

func NewDynamoClassStore(ctx context.Context, devMode bool, dynamodbEndpoint string, tableName string) (*DynamoClassStore, error) {
	client, err := newDynamoDBClient(context.Background(), devMode, dynamodbEndpoint)
	if err != nil {
		return nil, err
	}

	tables, err := getTables(client, ctx)
	if err != nil {
		return nil, err
	}

	foundTable := false
	for _, table := range tables {
		if table == tableName {
			foundTable = true
			break
		}
	}
	if !foundTable {
		return nil, fmt.Errorf("given table name '%s' not found in dynamodb", tableName)
	}

	return &DynamoClassStore{client: client, tableName: tableName}, nil
}

func (dynamoStore *DynamoClassStore) CreateClass(ctx context.Context, class models.Class) (models.Class, error) {
	dc := classToDynamo(class)
	dc.Created = time.Now().Unix()
	dc, _, err := ensureItem(dynamoStore, ctx, dc)
	if err != nil {
		return models.Class{}, err
	}
	return classFromDynamo(dc), nil
}

func (dynamoStore *DynamoClassStore) GetClass(ctx context.Context, classID string) (models.Class, error) {
	dc, err := getItem[dynamoClass](dynamoStore, ctx, "CLASS#"+classID, "META", false)
	if err != nil {
		return models.Class{}, err
	}
	return classFromDynamo(dc), nil
}

func (dynamoStore *DynamoClassStore) SetAnnotator(ctx context.Context, classID string, current string, lastStudent string) error {
	dc := dynamoClass{
		PK:                   "CLASS#" + classID,
		SK:                   "META",
		CurrentAnnotator:     current,
		LastStudentAnnotator: lastStudent,
	}
	_, err := updateItem(dynamoStore, ctx, dc, []string{"CurrentAnnotator", "LastStudentAnnotator"})
	return err
}

func (dynamoStore *DynamoClassStore) PutStudent(ctx context.Context, classID string, student models.Student) error {
	return putItem(dynamoStore, ctx, studentToDynamo(classID, student))
}

func (dynamoStore *DynamoClassStore) GetStudent(ctx context.Context, classID string, token string) (models.Student, error) {
	ds, err := getItem[dynamoStudent](dynamoStore, ctx, "CLASS#"+classID, "STUDENT#"+token, false)
	if err != nil {
		return models.Student{}, err
	}
	return studentFromDynamo(ds), nil
}

func (dynamoStore *DynamoClassStore) ListStudents(ctx context.Context, classID string) ([]models.Student, error) {
	items, err := queryAllBySKPrefix[dynamoStudent](dynamoStore, ctx, "CLASS#"+classID, "STUDENT#")
	if err != nil {
		return nil, err
	}
	students := make([]models.Student, 0, len(items))
	for _, it := range items {
		students = append(students, studentFromDynamo(it))
	}
	return students, nil
}

func (dynamoStore *DynamoClassStore) IncrementStudentStrokeCount(ctx context.Context, classID string, token string, count int) error {
	// Strict mode: only increment if the student record exists, so a cleared
	// class cannot accrete partial student records from late counter flushes.
	return incrementCounter(dynamoStore, ctx, "CLASS#"+classID, "STUDENT#"+token, "StrokeCount", count, false)
}

func (dynamoStore *DynamoClassStore) PutPending(ctx context.Context, classID string, req models.PendingRequest) error {
	return putItem(dynamoStore, ctx, pendingToDynamo(classID, req))
}

// PopPending removes the request and returns it. Approving and denying both
// consume the request exactly once; a second pop yields ErrItemNotFound.
func (dynamoStore *DynamoClassStore) PopPending(ctx context.Context, classID string, requestID string) (models.PendingRequest, error) {
	dp, err := deleteItemReturningOld[dynamoPending](dynamoStore, ctx, "CLASS#"+classID, "PENDING#"+requestID)
	if err != nil {
		return models.PendingRequest{}, err
	}
	return pendingFromDynamo(dp), nil
}

func (dynamoStore *DynamoClassStore) ListPending(ctx context.Context, classID string) ([]models.PendingRequest, error) {
	items, err := queryAllBySKPrefix[dynamoPending](dynamoStore, ctx, "CLASS#"+classID, "PENDING#")
	if err != nil {
		return nil, err
	}
	pending := make([]models.PendingRequest, 0, len(items))
	for _, it := range items {
		pending = append(pending, pendingFromDynamo(it))
	}
	return pending, nil
}

func (dynamoStore *DynamoClassStore) GetStrokeRecords(ctx context.Context, classID string) ([]models.StrokeRecord, error) {
	// UUIDv7 sort keys make ascending SK order chronological.
	dynamoStrokes, err := queryAllByPK[dynamoStroke](dynamoStore, ctx, "STROKE#"+classID, true, 0)
	if err != nil {
		return []models.StrokeRecord{}, err
	}

	records := make([]models.StrokeRecord, 0, len(dynamoStrokes))
	for _, ds := range dynamoStrokes {
		records = append(records, strokeRecordFromDynamo(ds))
	}
	return records, nil
}

func (dynamoStore *DynamoClassStore) WriteStrokeBatch(ctx context.Context, strokes []models.StrokeRecord) ([]models.StrokeRecord, error) {
	var writeRequests []types.WriteRequest
	for _, stroke := range strokes {
		ds := strokeRecordToDynamo(stroke)
		avMap, err := attributevalue.MarshalMap(ds)
		if err != nil {
			return nil, fmt.Errorf("marshal error: %w", err)
		}

		writeRequests = append(writeRequests, types.WriteRequest{
			PutRequest: &types.PutRequest{
				Item: avMap,
			},
		})
	}

	unprocessed, err := writeBatchRequests[dynamoStroke](dynamoStore, ctx, writeRequests)

	unbatched := make([]models.StrokeRecord, 0, len(unprocessed))
	for _, u := range unprocessed {
		unbatched = append(unbatched, strokeRecordFromDynamo(u))
	}
	return unbatched, err
}

func (dynamoStore *DynamoClassStore) DeleteClassStrokes(ctx context.Context, classID string) error {
	return batchDeleteByPKThrottled(dynamoStore, ctx, "STROKE#"+classID, 50*time.Millisecond)
}

func (dynamoStore *DynamoClassStore) DeleteAuthorStrokes(ctx context.Context, classID string, author string) error {
	return batchDeleteByGSIThrottled(dynamoStore, ctx, "GSI_AuthorStrokes", "AuthorKey", authorKey(classID, author), 50*time.Millisecond)
}

func (dynamoStore *DynamoClassStore) GetAuthorStrokeCount(ctx context.Context, classID string, author string) (int, error) {
	return countByGSI(dynamoStore, ctx, "GSI_AuthorStrokes", "AuthorKey", authorKey(classID, author))
}
