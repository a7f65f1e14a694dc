package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	booksrepo "libris/internal/books/repository"
	"libris/internal/domain"
	patronserrors "libris/internal/patrons/errors"
	"libris/internal/patrons/repository"
	"libris/internal/patrons/validator"
	"libris/pkg/config"
	apperrors "libris/pkg/errors"
	"libris/pkg/model"
)

type PatronService interface {
	Create(ctx context.Context, req *model.PatronCreate) (*domain.Patron, error)
	GetByID(ctx context.Context, id string) (*domain.Patron, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*domain.Patron, int64, error)
	Update(ctx context.Context, id string, updates *model.PatronUpdate) (*domain.Patron, error)
	Deactivate(ctx context.Context, id string) error

	GetHolds(ctx context.Context, id string) ([]*domain.Book, error)
	AddFee(ctx context.Context, id string, req *model.FeeRequest) (*domain.Patron, error)
	PayFee(ctx context.Context, id string, req *model.FeeRequest) (*domain.Patron, error)
}

type patronService struct {
	repo      repository.PatronRepository
	books     booksrepo.BookRepository
	validator *validator.PatronValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewPatronService(
	repo repository.PatronRepository,
	books booksrepo.BookRepository,
	validator *validator.PatronValidator,
	cfg *config.Config,
) PatronService {
	return &patronService{
		repo:      repo,
		books:     books,
		validator: validator,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func (s *patronService) Create(ctx context.Context, req *model.PatronCreate) (*domain.Patron, error) {
	if err := s.validator.ValidateCreate(req); err != nil {
		s.cfg.Log.Warn("Patron validation failed",
			"name", req.Name,
			"email", req.Email,
			"error", err,
		)
		return nil, apperrors.Validation("Patron validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	patronType, err := domain.ParsePatronType(req.Type)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	// Pre-check gives a clean error message; the unique index on email is
	// what actually enforces uniqueness under concurrent creates.
	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, apperrors.AlreadyExists("Patron", "email")
	} else if !errors.Is(err, patronserrors.ErrNotFound) {
		s.cfg.Log.Error("Failed to check for duplicate email", "email", req.Email, "error", err)
		return nil, apperrors.Internal("Failed to create patron", err)
	}

	patron := domain.NewPatron(req.Name, req.Email, patronType, s.now())

	if err := s.repo.Create(ctx, patron); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperrors.AlreadyExists("Patron", "email")
		}
		s.cfg.Log.Error("Failed to create patron",
			"name", patron.Name,
			"email", patron.Email,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to create patron", err)
	}

	s.cfg.Log.Info("Patron created successfully",
		"id", patron.ID,
		"name", patron.Name,
		"type", patron.Type,
	)

	return patron, nil
}

func (s *patronService) GetByID(ctx context.Context, id string) (*domain.Patron, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Patron ID cannot be empty")
	}

	patron, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}

	return patron, nil
}

func (s *patronService) GetAll(ctx context.Context, limit int, offset int64) ([]*domain.Patron, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var patrons []*domain.Patron
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		count, err = s.repo.Count(ctx, true)
		if err != nil {
			s.cfg.Log.Error("Failed to count patrons", "error", err)
			errCount = apperrors.Internal("Failed to count patrons", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		patrons, err = s.repo.FindAll(ctx, true, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to get patrons",
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve patrons", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return patrons, count, nil
}

func (s *patronService) Update(ctx context.Context, id string, updates *model.PatronUpdate) (*domain.Patron, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Patron ID cannot be empty")
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Patron update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Patron validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	patron, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}

	if updates.Name != nil {
		patron.Name = *updates.Name
	}
	if updates.Email != nil {
		patron.Email = *updates.Email
	}
	if updates.Type != nil {
		patronType, err := domain.ParsePatronType(*updates.Type)
		if err != nil {
			return nil, apperrors.InvalidInput(err.Error())
		}
		patron.Type = patronType
	}
	patron.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, patron); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperrors.AlreadyExists("Patron", "email")
		}
		s.cfg.Log.Error("Failed to update patron", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to update patron", err)
	}

	s.cfg.Log.Info("Patron updated successfully", "id", id, "name", patron.Name)

	return patron, nil
}

// Deactivate soft-deletes a patron. Patrons with outstanding fees or
// open holds and checkouts must settle them first.
func (s *patronService) Deactivate(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Patron ID cannot be empty")
	}

	now := s.now()

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		patron, err := s.repo.FindByID(sessCtx, id)
		if err != nil {
			return s.mapLookupError(err, id)
		}

		if !patron.Active {
			return apperrors.Conflict("Patron is already deactivated")
		}
		if patron.HasOutstandingFees() {
			return apperrors.Conflict("Patron has outstanding fees")
		}

		active, err := s.books.CountActiveForPatron(sessCtx, id)
		if err != nil {
			return apperrors.Internal("Failed to check patron loans", err)
		}
		if active > 0 {
			return apperrors.Conflict("Patron has active holds or checkouts")
		}

		patron.Deactivate(now)

		return s.repo.Update(sessCtx, patron)
	})

	if err != nil {
		s.cfg.Log.Error("Failed to deactivate patron", "id", id, "error", err)
		return err
	}

	s.cfg.Log.Info("Patron deactivated successfully", "id", id)

	return nil
}

func (s *patronService) GetHolds(ctx context.Context, id string) ([]*domain.Book, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Patron ID cannot be empty")
	}

	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, s.mapLookupError(err, id)
	}

	books, err := s.books.FindHeldByPatron(ctx, id)
	if err != nil {
		s.cfg.Log.Error("Failed to get patron holds", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve patron holds", err)
	}

	return books, nil
}

func (s *patronService) AddFee(ctx context.Context, id string, req *model.FeeRequest) (*domain.Patron, error) {
	return s.applyFee(ctx, id, req, "AddFee")
}

func (s *patronService) PayFee(ctx context.Context, id string, req *model.FeeRequest) (*domain.Patron, error) {
	return s.applyFee(ctx, id, req, "PayFee")
}

func (s *patronService) applyFee(ctx context.Context, id string, req *model.FeeRequest, op string) (*domain.Patron, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Patron ID cannot be empty")
	}

	if err := s.validator.ValidateFee(req); err != nil {
		s.cfg.Log.Warn("Fee request validation failed", "id", id, "operation", op, "error", err)
		return nil, apperrors.Validation("Fee request validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	amount := domain.NewMoney(req.AmountCents, req.Currency)
	now := s.now()
	var patron *domain.Patron

	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		var err error
		patron, err = s.repo.FindByID(sessCtx, id)
		if err != nil {
			return s.mapLookupError(err, id)
		}

		if op == "PayFee" {
			err = patron.PayFee(amount, now)
		} else {
			err = patron.AddFee(amount, now)
		}
		if err != nil {
			return s.mapFeeError(err)
		}

		return s.repo.Update(sessCtx, patron)
	})

	if err != nil {
		s.cfg.Log.Error("Failed to apply fee", "id", id, "operation", op, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Fee applied successfully",
		"id", id,
		"operation", op,
		"amount_cents", amount.Cents,
		"balance_cents", patron.OutstandingFees.Cents,
	)

	return patron, nil
}

func (s *patronService) mapFeeError(err error) error {
	switch {
	case errors.Is(err, domain.ErrPaymentNotPositive):
		return apperrors.InvalidInput(err.Error())
	case errors.Is(err, domain.ErrCurrencyMismatch):
		return apperrors.InvalidInput(err.Error())
	case errors.Is(err, domain.ErrPaymentExceedsFees):
		return apperrors.Conflict(err.Error())
	}
	return apperrors.Internal("Failed to apply fee", err)
}

func (s *patronService) mapLookupError(err error, id string) error {
	if errors.Is(err, patronserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Patron", id)
	}
	if errors.Is(err, patronserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid patron ID format")
	}
	s.cfg.Log.Error("Failed to look up patron", "id", id, "error", err)
	return apperrors.Internal("Failed to retrieve patron", err)
}
