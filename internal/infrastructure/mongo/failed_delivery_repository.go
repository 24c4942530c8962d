package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sngm3741/form-intake/api/internal/intake/application"
	"github.com/sngm3741/form-intake/api/internal/intake/domain"
)

const defaultFailureListLimit = 50

// FailedDeliveryRepository はシンク書き込み失敗を保存し、再送対象として参照させるリポジトリ。
type FailedDeliveryRepository struct {
	failures *mongo.Collection
}

// NewFailedDeliveryRepository は失敗記録用コレクションを束縛したリポジトリを生成する。
func NewFailedDeliveryRepository(db *mongo.Database, collection string) *FailedDeliveryRepository {
	return &FailedDeliveryRepository{failures: db.Collection(collection)}
}

// Record は失敗を pending 状態で挿入し、採番した ID を failure に書き戻す。
func (r *FailedDeliveryRepository) Record(ctx context.Context, failure *domain.FailedDelivery) error {
	if failure == nil {
		return errors.New("failed delivery is nil")
	}
	doc := mapFailureToDocument(*failure)
	doc.ID = primitive.NewObjectID()
	if doc.Status == "" {
		doc.Status = domain.FailureStatusPending
	}
	if _, err := r.failures.InsertOne(ctx, doc); err != nil {
		return err
	}
	failure.ID = doc.ID.Hex()
	return nil
}

// List は pending の失敗記録を新しい順に返す。
func (r *FailedDeliveryRepository) List(ctx context.Context, paging application.Paging) ([]domain.FailedDelivery, error) {
	limit := paging.Limit
	if limit <= 0 {
		limit = defaultFailureListLimit
	}
	findOpts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))
	if paging.Page > 1 {
		findOpts.SetSkip(int64((paging.Page - 1) * limit))
	}

	cursor, err := r.failures.Find(ctx, bson.M{"status": domain.FailureStatusPending}, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	failures := make([]domain.FailedDelivery, 0)
	for cursor.Next(ctx) {
		var doc FailedDeliveryDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		failures = append(failures, mapFailureDocument(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return failures, nil
}

// FindByID は ObjectID 文字列から失敗記録を復元する。
func (r *FailedDeliveryRepository) FindByID(ctx context.Context, id string) (*domain.FailedDelivery, error) {
	objectID, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return nil, application.ErrNotFound
	}
	var doc FailedDeliveryDocument
	err = r.failures.FindOne(ctx, bson.M{"_id": objectID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, application.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	failure := mapFailureDocument(doc)
	return &failure, nil
}

// MarkResolved は再送成功を記録する。
func (r *FailedDeliveryRepository) MarkResolved(ctx context.Context, id string) error {
	return r.update(ctx, id, bson.M{
		"$set": bson.M{"status": domain.FailureStatusResolved, "lastTriedAt": time.Now().UTC()},
		"$inc": bson.M{"attempts": 1},
	})
}

// MarkAttempt は再送失敗を記録し、試行回数を増やす。
func (r *FailedDeliveryRepository) MarkAttempt(ctx context.Context, id string, cause string) error {
	return r.update(ctx, id, bson.M{
		"$set": bson.M{"error": cause, "lastTriedAt": time.Now().UTC()},
		"$inc": bson.M{"attempts": 1},
	})
}

func (r *FailedDeliveryRepository) update(ctx context.Context, id string, update bson.M) error {
	objectID, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return application.ErrNotFound
	}
	result, err := r.failures.UpdateByID(ctx, objectID, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return application.ErrNotFound
	}
	return nil
}

func mapFailureToDocument(failure domain.FailedDelivery) FailedDeliveryDocument {
	return FailedDeliveryDocument{
		Target:       failure.Sink,
		SubmissionID: failure.SubmissionID,
		Payload:      string(failure.Payload),
		Error:        failure.Error,
		Attempts:     failure.Attempts,
		Status:       failure.Status,
		SubmittedAt:  failure.SubmittedAt.UTC(),
		CreatedAt:    failure.CreatedAt.UTC(),
		LastTriedAt:  failure.LastTriedAt.UTC(),
	}
}

func mapFailureDocument(doc FailedDeliveryDocument) domain.FailedDelivery {
	return domain.FailedDelivery{
		ID:           doc.ID.Hex(),
		Sink:         doc.Target,
		SubmissionID: doc.SubmissionID,
		Payload:      []byte(doc.Payload),
		Error:        doc.Error,
		Attempts:     doc.Attempts,
		Status:       doc.Status,
		SubmittedAt:  doc.SubmittedAt,
		CreatedAt:    doc.CreatedAt,
		LastTriedAt:  doc.LastTriedAt,
	}
}
