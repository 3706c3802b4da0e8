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

const fileCollectionName = "record_files"

// mongoFileRepository implements repository.FileRepository
type mongoFileRepository struct {
	collection *mongo.Collection
}

// NewMongoFileRepository creates a new file metadata repository backed by MongoDB.
func NewMongoFileRepository(db *mongo.Database) repository.FileRepository {
	return &mongoFileRepository{
		collection: db.Collection(fileCollectionName),
	}
}

// Create inserts new file metadata.
func (r *mongoFileRepository) Create(ctx context.Context, file *domain.StoredFile) (primitive.ObjectID, error) {
	if file.RecordID == primitive.NilObjectID || file.ObjectKey == "" || file.Category == "" {
		return primitive.NilObjectID, errors.New("file requires recordId, objectKey, and category")
	}

	file.ID = primitive.NewObjectID()
	file.UploadedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, file)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByID retrieves file metadata by its ID.
func (r *mongoFileRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.StoredFile, error) {
	var file domain.StoredFile
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&file)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &file, nil
}

// GetByRecordID retrieves all file metadata linked to a record, in upload order.
func (r *mongoFileRepository) GetByRecordID(ctx context.Context, recordID primitive.ObjectID) ([]domain.StoredFile, error) {
	filter := bson.M{"recordId": recordID}
	findOptions := options.Find().SetSort(bson.D{{Key: "uploadedAt", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var files []domain.StoredFile
	if err = cursor.All(ctx, &files); err != nil {
		return nil, err
	}
	return files, nil
}

// ReplaceMeta updates the descriptive metadata after the bytes under the
// file's object key were swapped. The id and object key stay the same.
func (r *mongoFileRepository) ReplaceMeta(ctx context.Context, id primitive.ObjectID, fileName, contentType string, size int64) error {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"fileName":    fileName,
			"contentType": contentType,
			"size":        size,
			"replacedAt":  now,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes file metadata.
func (r *mongoFileRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureFileIndexes creates necessary indexes for the files collection.
func EnsureFileIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "recordId", Value: 1}, {Key: "category", Value: 1}},
			Options: options.Index(),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// Non-fatal, see EnsureUserIndexes.
	}
}
