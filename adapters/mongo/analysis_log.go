package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/fixit/server/domain"
	"github.com/satriahrh/fixit/server/domain/entities"
	"github.com/satriahrh/fixit/server/domain/repositories"
)

const analysesCollection = "analyses"

// AnalysisLog stores completed troubleshoot requests in MongoDB
type AnalysisLog struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ repositories.AnalysisLog = (*AnalysisLog)(nil)

// NewAnalysisLog creates the audit log and builds its indexes in the background
func NewAnalysisLog(db *mongo.Database, retention time.Duration, logger *zap.Logger) *AnalysisLog {
	collection := db.Collection(analysesCollection)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		indexes := []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "request_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "answer_type", Value: 1}, {Key: "created_at", Value: -1}},
			},
		}
		// Old records expire on their own when a retention is configured
		if retention > 0 {
			indexes = append(indexes, mongo.IndexModel{
				Keys:    bson.D{{Key: "created_at", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(int32(retention.Seconds())),
			})
		} else {
			indexes = append(indexes, mongo.IndexModel{
				Keys: bson.D{{Key: "created_at", Value: -1}},
			})
		}

		if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
			logger.Error("Failed to create analysis indexes", zap.Error(err))
		} else {
			logger.Info("Analysis indexes created successfully")
		}
	}()

	return &AnalysisLog{
		collection: collection,
		logger:     logger,
	}
}

// Create inserts the record of a finished request
func (r *AnalysisLog) Create(ctx context.Context, record *entities.AnalysisRecord) error {
	if record == nil {
		return errors.New("record cannot be nil")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		r.logger.Error("Failed to store analysis", zap.Error(err), zap.String("request_id", record.RequestID))
		return fmt.Errorf("failed to store analysis: %w", err)
	}

	r.logger.Debug("Analysis stored",
		zap.String("request_id", record.RequestID),
		zap.String("answer_type", string(record.AnswerType)))
	return nil
}

// GetByRequestID loads the record of one request
func (r *AnalysisLog) GetByRequestID(ctx context.Context, requestID string) (*entities.AnalysisRecord, error) {
	var record entities.AnalysisRecord
	err := r.collection.FindOne(ctx, bson.M{"request_id": requestID}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRecordNotFound
		}
		r.logger.Error("Failed to get analysis", zap.Error(err), zap.String("request_id", requestID))
		return nil, err
	}
	return &record, nil
}

// ListRecent returns up to limit records, newest first
func (r *AnalysisLog) ListRecent(ctx context.Context, limit int) ([]*entities.AnalysisRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		r.logger.Error("Failed to list analyses", zap.Error(err))
		return nil, err
	}
	defer cursor.Close(ctx)

	records := make([]*entities.AnalysisRecord, 0, limit)
	for cursor.Next(ctx) {
		var record entities.AnalysisRecord
		if err := cursor.Decode(&record); err != nil {
			r.logger.Error("Failed to decode analysis", zap.Error(err))
			continue
		}
		records = append(records, &record)
	}

	if err := cursor.Err(); err != nil {
		r.logger.Error("Cursor error", zap.Error(err))
		return nil, err
	}
	return records, nil
}
