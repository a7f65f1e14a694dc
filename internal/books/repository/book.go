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

	bookserrors "libris/internal/books/errors"
	"libris/internal/domain"
	"libris/pkg/config"
	mongotx "libris/pkg/db/mongo"
)

const (
	CollectionName = "Books"
)

type mongoBookRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type BookRepository interface {
	Create(ctx context.Context, book *domain.Book) error
	FindByID(ctx context.Context, id string) (*domain.Book, error)
	FindByISBN(ctx context.Context, isbn string) (*domain.Book, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*domain.Book, error)
	FindByStatus(ctx context.Context, status domain.BookStatus, limit int, offset int64) ([]*domain.Book, error)
	FindHeldByPatron(ctx context.Context, patronID string) ([]*domain.Book, error)
	Update(ctx context.Context, book *domain.Book) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, status domain.BookStatus) (int64, error)
	CountActiveForPatron(ctx context.Context, patronID string) (int64, error)

	EnsureIndexes(ctx context.Context) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoBookRepository(cfg *config.Config) BookRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout unless already inside a
// transaction; SessionContext cannot be wrapped without breaking
// transaction semantics.
func (r *mongoBookRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

// EnsureIndexes creates the unique ISBN index. The index, not the
// service-level pre-check, is what actually enforces uniqueness.
func (r *mongoBookRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "isbn", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "current_holder_id", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "current_borrower_id", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create book indexes: %w", err)
	}
	return nil
}

func (r *mongoBookRepository) Create(ctx context.Context, book *domain.Book) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := r.collection.InsertOne(ctx, book); err != nil {
		return fmt.Errorf("failed to create book: %w", err)
	}

	return nil
}

func (r *mongoBookRepository) FindByID(ctx context.Context, id string) (*domain.Book, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", bookserrors.ErrInvalidID, id)
	}

	var book domain.Book
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&book)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", bookserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find book: %w", err)
	}
	return &book, nil
}

func (r *mongoBookRepository) FindByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var book domain.Book
	err := r.collection.FindOne(ctx, bson.M{"isbn": isbn}).Decode(&book)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: isbn %s", bookserrors.ErrNotFound, isbn)
		}
		return nil, fmt.Errorf("failed to find book by isbn: %w", err)
	}
	return &book, nil
}

func (r *mongoBookRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*domain.Book, error) {
	return r.findByFilter(ctx, bson.M{}, limit, offset)
}

func (r *mongoBookRepository) FindByStatus(ctx context.Context, status domain.BookStatus, limit int, offset int64) ([]*domain.Book, error) {
	return r.findByFilter(ctx, bson.M{"status": status}, limit, offset)
}

func (r *mongoBookRepository) findByFilter(ctx context.Context, filter bson.M, limit int, offset int64) ([]*domain.Book, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "title", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}
	defer cursor.Close(ctx)

	var books []*domain.Book
	if err = cursor.All(ctx, &books); err != nil {
		return nil, fmt.Errorf("failed to decode books: %w", err)
	}

	return books, nil
}

// FindHeldByPatron returns the books the patron currently holds or has
// checked out.
func (r *mongoBookRepository) FindHeldByPatron(ctx context.Context, patronID string) ([]*domain.Book, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"$or": []bson.M{
			{"current_holder_id": patronID},
			{"current_borrower_id": patronID},
		},
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find books for patron [%s]: %w", patronID, err)
	}
	defer cursor.Close(ctx)

	var books []*domain.Book
	if err := cursor.All(ctx, &books); err != nil {
		return nil, fmt.Errorf("failed to decode books: %w", err)
	}

	return books, nil
}

func (r *mongoBookRepository) Update(ctx context.Context, book *domain.Book) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": book.ID}
	update := bson.M{
		"$set": bson.M{
			"title":                book.Title,
			"author":               book.Author,
			"isbn":                 book.ISBN,
			"status":               book.Status,
			"is_restricted_access": book.RestrictedAccess,
			"current_holder_id":    book.HolderID,
			"current_borrower_id":  book.BorrowerID,
			"hold_expiry_date":     book.HoldExpiresAt,
			"checkout_date":        book.CheckedOutAt,
			"due_date":             book.DueAt,
			"updated_at":           book.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update book: %w", err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", bookserrors.ErrNotFound, book.ID)
	}

	return nil
}

func (r *mongoBookRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", bookserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", bookserrors.ErrNotFound, id)
	}

	return nil
}

func (r *mongoBookRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count books: %w", err)
	}
	return count, nil
}

func (r *mongoBookRepository) CountByStatus(ctx context.Context, status domain.BookStatus) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"status": status})
	if err != nil {
		return 0, fmt.Errorf("failed to count books by status: %w", err)
	}
	return count, nil
}

// CountActiveForPatron counts books the patron currently holds or has
// checked out. Used to block deactivating patrons with open loans.
func (r *mongoBookRepository) CountActiveForPatron(ctx context.Context, patronID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"$or": []bson.M{
			{"current_holder_id": patronID},
			{"current_borrower_id": patronID},
		},
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count books for patron [%s]: %w", patronID, err)
	}
	return count, nil
}

func (r *mongoBookRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
