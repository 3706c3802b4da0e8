package mongo

import (
	"context"

	"ecotrack/waste-app/internal/domain"
	"ecotrack/waste-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const referenceCollectionName = "reference_items"

// mongoReferenceRepository implements repository.ReferenceRepository. All
// reference kinds live in one collection, discriminated by the kind field.
type mongoReferenceRepository struct {
	collection *mongo.Collection
}

// NewMongoReferenceRepository creates a new reference data repository backed by MongoDB.
func NewMongoReferenceRepository(db *mongo.Database) repository.ReferenceRepository {
	return &mongoReferenceRepository{
		collection: db.Collection(referenceCollectionName),
	}
}

// GetByKind returns all items of one reference kind, sorted by name.
func (r *mongoReferenceRepository) GetByKind(ctx context.Context, kind domain.RefKind) ([]domain.RefItem, error) {
	filter := bson.M{"kind": kind}
	findOptions := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var items []domain.RefItem
	if err = cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.RefItem{}
	}
	return items, nil
}

// EnsureReferenceIndexes creates necessary indexes for the reference collection.
func EnsureReferenceIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "kind", Value: 1}, {Key: "name", Value: 1}},
			Options: options.Index(),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// Non-fatal, see EnsureUserIndexes.
	}
}
