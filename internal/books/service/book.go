package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	bookserrors "libris/internal/books/errors"
	"libris/internal/books/repository"
	"libris/internal/books/validator"
	"libris/internal/domain"
	patronserrors "libris/internal/patrons/errors"
	patronsrepo "libris/internal/patrons/repository"
	"libris/pkg/config"
	apperrors "libris/pkg/errors"
	"libris/pkg/events"
	"libris/pkg/model"
)

type BookService interface {
	Create(ctx context.Context, req *model.BookCreate) (*domain.Book, error)
	GetByID(ctx context.Context, id string) (*domain.Book, error)
	GetByISBN(ctx context.Context, isbn string) (*domain.Book, error)
	GetAll(ctx context.Context, limit int, offset int64, availableOnly bool) ([]*domain.Book, int64, error)
	Update(ctx context.Context, id string, updates *model.BookUpdate) (*domain.Book, error)
	Delete(ctx context.Context, id string) error

	PlaceOnHold(ctx context.Context, bookID string, req *model.HoldRequest) (*domain.Book, error)
	CheckOut(ctx context.Context, bookID string, req *model.CheckoutRequest) (*domain.Book, error)
	Return(ctx context.Context, bookID string) (*domain.Book, error)
}

type bookService struct {
	repo      repository.BookRepository
	patrons   patronsrepo.PatronRepository
	validator *validator.BookValidator
	publisher events.Publisher
	policy    domain.HoldPolicy
	cfg       *config.Config
	now       func() time.Time
}

func NewBookService(
	repo repository.BookRepository,
	patrons patronsrepo.PatronRepository,
	validator *validator.BookValidator,
	publisher events.Publisher,
	cfg *config.Config,
) BookService {
	return &bookService{
		repo:      repo,
		patrons:   patrons,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func (s *bookService) Create(ctx context.Context, req *model.BookCreate) (*domain.Book, error) {
	if err := s.validator.ValidateCreate(req); err != nil {
		s.cfg.Log.Warn("Book validation failed",
			"title", req.Title,
			"isbn", req.ISBN,
			"error", err,
		)
		return nil, apperrors.Validation("Book validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	// Pre-check gives a clean error message; the unique index on isbn is
	// what actually enforces uniqueness under concurrent creates.
	if _, err := s.repo.FindByISBN(ctx, req.ISBN); err == nil {
		return nil, apperrors.AlreadyExists("Book", "ISBN")
	} else if !errors.Is(err, bookserrors.ErrNotFound) {
		s.cfg.Log.Error("Failed to check for duplicate ISBN", "isbn", req.ISBN, "error", err)
		return nil, apperrors.Internal("Failed to create book", err)
	}

	book := domain.NewBook(req.Title, req.Author, req.ISBN, req.RestrictedAccess, s.now())

	if err := s.repo.Create(ctx, book); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperrors.AlreadyExists("Book", "ISBN")
		}
		s.cfg.Log.Error("Failed to create book",
			"title", book.Title,
			"isbn", book.ISBN,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to create book", err)
	}

	s.cfg.Log.Info("Book created successfully",
		"id", book.ID,
		"title", book.Title,
		"isbn", book.ISBN,
	)

	return book, nil
}

func (s *bookService) GetByID(ctx context.Context, id string) (*domain.Book, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Book ID cannot be empty")
	}

	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}

	return book, nil
}

func (s *bookService) GetByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	if isbn == "" {
		return nil, apperrors.InvalidInput("ISBN cannot be empty")
	}

	book, err := s.repo.FindByISBN(ctx, isbn)
	if err != nil {
		if errors.Is(err, bookserrors.ErrNotFound) {
			return nil, apperrors.NotFound("Book").WithDetails(map[string]any{"isbn": isbn})
		}
		s.cfg.Log.Error("Failed to look up book by ISBN", "isbn", isbn, "error", err)
		return nil, apperrors.Internal("Failed to retrieve book", err)
	}

	return book, nil
}

func (s *bookService) GetAll(ctx context.Context, limit int, offset int64, availableOnly bool) ([]*domain.Book, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var books []*domain.Book
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		if availableOnly {
			count, err = s.repo.CountByStatus(ctx, domain.StatusAvailable)
		} else {
			count, err = s.repo.Count(ctx)
		}
		if err != nil {
			s.cfg.Log.Error("Failed to count books", "error", err)
			errCount = apperrors.Internal("Failed to count books", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		if availableOnly {
			books, err = s.repo.FindByStatus(ctx, domain.StatusAvailable, limit, offset)
		} else {
			books, err = s.repo.FindAll(ctx, limit, offset)
		}
		if err != nil {
			s.cfg.Log.Error("Failed to get books",
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve books", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return books, count, nil
}

func (s *bookService) Update(ctx context.Context, id string, updates *model.BookUpdate) (*domain.Book, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Book ID cannot be empty")
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Book update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Book validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}

	if updates.Title != nil {
		book.Title = *updates.Title
	}
	if updates.Author != nil {
		book.Author = *updates.Author
	}
	if updates.RestrictedAccess != nil {
		book.RestrictedAccess = *updates.RestrictedAccess
	}
	book.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, book); err != nil {
		s.cfg.Log.Error("Failed to update book", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to update book", err)
	}

	s.cfg.Log.Info("Book updated successfully", "id", id, "title", book.Title)

	return book, nil
}

// Delete removes a book from the catalog. Books that are on hold or
// checked out stay until their circulation state is resolved.
func (s *bookService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Book ID cannot be empty")
	}

	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return s.mapLookupError(err, id)
	}

	if book.Status != domain.StatusAvailable {
		return apperrors.Conflict("Only available books can be removed from the catalog")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, bookserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Book", id)
		}
		s.cfg.Log.Error("Failed to delete book", "id", id, "error", err)
		return apperrors.Internal("Failed to delete book", err)
	}

	s.cfg.Log.Info("Book deleted successfully", "id", id)

	return nil
}

func (s *bookService) PlaceOnHold(ctx context.Context, bookID string, req *model.HoldRequest) (*domain.Book, error) {
	if bookID == "" {
		return nil, apperrors.InvalidInput("Book ID cannot be empty")
	}

	if err := s.validator.ValidateHold(req); err != nil {
		s.cfg.Log.Warn("Hold request validation failed", "book_id", bookID, "error", err)
		return nil, apperrors.Validation("Hold request validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	duration := domain.StandardHold
	if req.Days == domain.ExtendedHold.Days {
		duration = domain.ExtendedHold
	}

	now := s.now()
	var book *domain.Book
	var event domain.BookPlacedOnHold

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		var err error
		book, err = s.repo.FindByID(sessCtx, bookID)
		if err != nil {
			return s.mapLookupError(err, bookID)
		}

		patron, err := s.patrons.FindByID(sessCtx, req.PatronID)
		if err != nil {
			return s.mapPatronLookupError(err, req.PatronID)
		}

		if !s.policy.CanPlaceOnHold(book, patron) {
			return apperrors.PolicyDenied(s.policy.RejectionReason(book, patron))
		}

		event, err = book.PlaceOnHold(patron.ID, duration, now)
		if err != nil {
			return apperrors.Conflict(err.Error())
		}

		return s.repo.Update(sessCtx, book)
	})

	if err != nil {
		s.cfg.Log.Error("Failed to place hold",
			"book_id", bookID,
			"patron_id", req.PatronID,
			"error", err,
		)
		return nil, err
	}

	s.publisher.Publish(ctx, event)

	s.cfg.Log.Info("Hold placed successfully",
		"book_id", book.ID,
		"patron_id", req.PatronID,
		"expires_at", event.ExpiresAt,
	)

	return book, nil
}

func (s *bookService) CheckOut(ctx context.Context, bookID string, req *model.CheckoutRequest) (*domain.Book, error) {
	if bookID == "" {
		return nil, apperrors.InvalidInput("Book ID cannot be empty")
	}

	if err := s.validator.ValidateCheckout(req); err != nil {
		s.cfg.Log.Warn("Checkout request validation failed", "book_id", bookID, "error", err)
		return nil, apperrors.Validation("Checkout request validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	now := s.now()
	var book *domain.Book
	var event domain.BookCheckedOut

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		var err error
		book, err = s.repo.FindByID(sessCtx, bookID)
		if err != nil {
			return s.mapLookupError(err, bookID)
		}

		patron, err := s.patrons.FindByID(sessCtx, req.PatronID)
		if err != nil {
			return s.mapPatronLookupError(err, req.PatronID)
		}

		if !patron.Active {
			return apperrors.PolicyDenied(domain.ReasonPatronInactive)
		}
		if patron.HasOutstandingFees() {
			return apperrors.PolicyDenied(domain.ReasonOutstandingFees)
		}

		event, err = book.CheckOut(patron.ID, now)
		if err != nil {
			return apperrors.Conflict(err.Error())
		}

		return s.repo.Update(sessCtx, book)
	})

	if err != nil {
		s.cfg.Log.Error("Failed to check out book",
			"book_id", bookID,
			"patron_id", req.PatronID,
			"error", err,
		)
		return nil, err
	}

	s.publisher.Publish(ctx, event)

	s.cfg.Log.Info("Book checked out successfully",
		"book_id", book.ID,
		"patron_id", req.PatronID,
		"due_at", event.DueAt,
	)

	return book, nil
}

// Return puts a checked-out book back into circulation. If the book is
// overdue, the accrued fee is added to the borrower's balance in the
// same transaction.
func (s *bookService) Return(ctx context.Context, bookID string) (*domain.Book, error) {
	if bookID == "" {
		return nil, apperrors.InvalidInput("Book ID cannot be empty")
	}

	now := s.now()
	var book *domain.Book
	var event domain.BookReturned
	var fee domain.Money

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		var err error
		book, err = s.repo.FindByID(sessCtx, bookID)
		if err != nil {
			return s.mapLookupError(err, bookID)
		}

		// Fee is derived from the due date, so compute before Return
		// clears it.
		fee = book.OverdueFee(now)

		event, err = book.Return(now)
		if err != nil {
			return apperrors.Conflict(err.Error())
		}

		if err := s.repo.Update(sessCtx, book); err != nil {
			return err
		}

		if fee.IsPositive() {
			patron, err := s.patrons.FindByID(sessCtx, event.PatronID)
			if err != nil {
				return s.mapPatronLookupError(err, event.PatronID)
			}
			if err := patron.AddFee(fee, now); err != nil {
				return apperrors.Internal("Failed to accrue overdue fee", err)
			}
			if err := s.patrons.Update(sessCtx, patron); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		s.cfg.Log.Error("Failed to return book", "book_id", bookID, "error", err)
		return nil, err
	}

	s.publisher.Publish(ctx, event)

	s.cfg.Log.Info("Book returned successfully",
		"book_id", book.ID,
		"patron_id", event.PatronID,
		"overdue_fee_cents", fee.Cents,
	)

	return book, nil
}

func (s *bookService) mapLookupError(err error, id string) error {
	if errors.Is(err, bookserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Book", id)
	}
	if errors.Is(err, bookserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid book ID format")
	}
	s.cfg.Log.Error("Failed to look up book", "id", id, "error", err)
	return apperrors.Internal("Failed to retrieve book", err)
}

func (s *bookService) mapPatronLookupError(err error, id string) error {
	if errors.Is(err, patronserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Patron", id)
	}
	if errors.Is(err, patronserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid patron ID format")
	}
	s.cfg.Log.Error("Failed to look up patron", "id", id, "error", err)
	return apperrors.Internal("Failed to retrieve patron", err)
}
