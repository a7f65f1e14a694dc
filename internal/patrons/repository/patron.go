package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"libris/internal/domain"
	patronserrors "libris/internal/patrons/errors"
	"libris/pkg/config"
	mongotx "libris/pkg/db/mongo"
)

const (
	CollectionName = "Patrons"
)

type mongoPatronRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type PatronRepository interface {
	Create(ctx context.Context, patron *domain.Patron) error
	FindByID(ctx context.Context, id string) (*domain.Patron, error)
	FindByEmail(ctx context.Context, email string) (*domain.Patron, error)
	FindAll(ctx context.Context, activeOnly bool, limit int, offset int64) ([]*domain.Patron, error)
	Update(ctx context.Context, patron *domain.Patron) error
	Count(ctx context.Context, activeOnly bool) (int64, error)

	EnsureIndexes(ctx context.Context) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoPatronRepository(cfg *config.Config) PatronRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoPatronRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoPatronRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

// EnsureIndexes creates the unique email index, the actual enforcement
// point for email uniqueness.
func (r *mongoPatronRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "is_active", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create patron indexes: %w", err)
	}
	return nil
}

func (r *mongoPatronRepository) Create(ctx context.Context, patron *domain.Patron) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, patron); err != nil {
		return fmt.Errorf("failed to create patron: %w", err)
	}

	return nil
}

func (r *mongoPatronRepository) FindByID(ctx context.Context, id string) (*domain.Patron, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", patronserrors.ErrInvalidID, id)
	}

	var patron domain.Patron
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&patron)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", patronserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find patron: %w", err)
	}
	return &patron, nil
}

func (r *mongoPatronRepository) FindByEmail(ctx context.Context, email string) (*domain.Patron, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var patron domain.Patron
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&patron)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: email %s", patronserrors.ErrNotFound, email)
		}
		return nil, fmt.Errorf("failed to find patron by email: %w", err)
	}
	return &patron, nil
}

func (r *mongoPatronRepository) FindAll(ctx context.Context, activeOnly bool, limit int, offset int64) ([]*domain.Patron, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{}
	if activeOnly {
		filter["is_active"] = true
	}

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query patrons: %w", err)
	}
	defer cursor.Close(ctx)

	var patrons []*domain.Patron
	if err = cursor.All(ctx, &patrons); err != nil {
		return nil, fmt.Errorf("failed to decode patrons: %w", err)
	}

	return patrons, nil
}

func (r *mongoPatronRepository) Update(ctx context.Context, patron *domain.Patron) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": patron.ID}
	update := bson.M{
		"$set": bson.M{
			"name":             patron.Name,
			"email":            patron.Email,
			"type":             patron.Type,
			"outstanding_fees": patron.OutstandingFees,
			"is_active":        patron.Active,
			"updated_at":       patron.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update patron: %w", err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", patronserrors.ErrNotFound, patron.ID)
	}

	return nil
}

func (r *mongoPatronRepository) Count(ctx context.Context, activeOnly bool) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{}
	if activeOnly {
		filter["is_active"] = true
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count patrons: %w", err)
	}
	return count, nil
}

func (r *mongoPatronRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
