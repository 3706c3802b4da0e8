package mongo

import (
	"context"
	"errors"
	"time"

	"ecotrack/waste-app/internal/domain"
	"ecotrack/waste-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const recordCollectionName = "collection_records"

// mongoRecordRepository implements repository.RecordRepository
type mongoRecordRepository struct {
	collection *mongo.Collection
}

// NewMongoRecordRepository creates a new collection record repository backed by MongoDB.
func NewMongoRecordRepository(db *mongo.Database) repository.RecordRepository {
	return &mongoRecordRepository{
		collection: db.Collection(recordCollectionName),
	}
}

// Create inserts a new record, normally in draft status.
func (r *mongoRecordRepository) Create(ctx context.Context, record *domain.CollectionRecord) (primitive.ObjectID, error) {
	if record.CreatedBy == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("record requires createdBy")
	}
	if record.Status == "" {
		record.Status = domain.StatusDraft
	}
	if record.Fields == nil {
		record.Fields = map[string]any{}
	}

	record.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, record)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByID retrieves a record by its ID.
func (r *mongoRecordRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.CollectionRecord, error) {
	var record domain.CollectionRecord
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// UpdateFields sets only the given keys inside the Fields sub-document.
// An empty map is a no-op. Only draft records accept field updates.
func (r *mongoRecordRepository) UpdateFields(ctx context.Context, id primitive.ObjectID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	set := bson.M{"updatedAt": time.Now().UTC()}
	for key, value := range fields {
		set["fields."+key] = value
	}

	filter := bson.M{"_id": id, "status": domain.StatusDraft}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetStatus performs a guarded lifecycle transition. The filter includes the
// expected current status, so a concurrent transition loses cleanly.
func (r *mongoRecordRepository) SetStatus(ctx context.Context, id primitive.ObjectID, from, to domain.RecordStatus, reviewedBy *primitive.ObjectID, rejectReason string) error {
	now := time.Now().UTC()
	set := bson.M{
		"status":    to,
		"updatedAt": now,
	}
	switch to {
	case domain.StatusSubmitted:
		set["submittedAt"] = now
	case domain.StatusApproved, domain.StatusRejected:
		set["reviewedAt"] = now
		if reviewedBy != nil {
			set["reviewedBy"] = *reviewedBy
		}
	}
	if rejectReason != "" {
		set["rejectReason"] = rejectReason
	}

	filter := bson.M{"_id": id, "status": from}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrUpdateFailed
	}
	return nil
}

// ListByStatus returns records in a status, optionally restricted to one
// creator, newest first.
func (r *mongoRecordRepository) ListByStatus(ctx context.Context, status domain.RecordStatus, createdBy *primitive.ObjectID) ([]domain.CollectionRecord, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	if createdBy != nil {
		filter["createdBy"] = *createdBy
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []domain.CollectionRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// EnsureRecordIndexes creates necessary indexes for the records collection.
func EnsureRecordIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "updatedAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "createdBy", Value: 1}},
			Options: options.Index(),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// Non-fatal, see EnsureUserIndexes.
	}
}
