package items

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/emekandu/kasuwa-backend/internal/credits"
	"github.com/emekandu/kasuwa-backend/pkg/config"
	"github.com/emekandu/kasuwa-backend/pkg/db/models"
	"github.com/emekandu/kasuwa-backend/pkg/enums"
	pkgerrors "github.com/emekandu/kasuwa-backend/pkg/errors"
	"github.com/emekandu/kasuwa-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type creditApplier interface {
	Apply(ctx context.Context, tx *gorm.DB, input credits.ApplyInput) (*models.CreditTransaction, error)
}

// Service defines listing operations.
type Service interface {
	Create(ctx context.Context, sellerID uuid.UUID, req CreateItemRequest) (*ItemSummary, error)
	Get(ctx context.Context, id uuid.UUID) (*ItemSummary, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*ItemList, error)
	Update(ctx context.Context, actorID uuid.UUID, id uuid.UUID, req UpdateItemRequest) (*ItemSummary, error)
	Delete(ctx context.Context, actorID uuid.UUID, actorRole enums.MemberRole, id uuid.UUID) error
}

type service struct {
	repo    Repository
	tx      txRunner
	credits creditApplier
	fees    config.FeesConfig
}

// NewService builds an items service with the required dependencies.
func NewService(repo Repository, tx txRunner, creditSvc creditApplier, fees config.FeesConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("items repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if creditSvc == nil {
		return nil, fmt.Errorf("credits service required")
	}
	return &service{repo: repo, tx: tx, credits: creditSvc, fees: fees}, nil
}

// Create opens a listing and debits the flat listing fee from the seller's
// platform credit in the same transaction.
func (s *service) Create(ctx context.Context, sellerID uuid.UUID, req CreateItemRequest) (*ItemSummary, error) {
	if sellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	condition, err := enums.ParseItemCondition(req.Condition)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}
	if req.PriceKobo <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}

	item := &models.Item{
		SellerID:    sellerID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Condition:   condition,
		PriceKobo:   req.PriceKobo,
		Status:      enums.ItemStatusAvailable,
		ImageURLs:   req.ImageURLs,
		Location:    req.Location,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.repo.WithTx(tx).Create(ctx, item)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create listing")
		}
		item = created

		if s.fees.ListingFeeKobo > 0 {
			itemID := item.ID
			_, err := s.credits.Apply(ctx, tx, credits.ApplyInput{
				UserID:     sellerID,
				Type:       enums.CreditTransactionTypeListingFee,
				AmountKobo: -s.fees.ListingFeeKobo,
				ItemID:     &itemID,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	summary := FromModel(item)
	return &summary, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*ItemSummary, error) {
	item, err := s.findItem(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	summary := FromModel(item)
	return &summary, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters ListFilters) (*ItemList, error) {
	rows, next, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list items")
	}
	out := make([]ItemSummary, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return &ItemList{Items: out, NextCursor: next}, nil
}

func (s *service) Update(ctx context.Context, actorID uuid.UUID, id uuid.UUID, req UpdateItemRequest) (*ItemSummary, error) {
	var updated *models.Item
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := s.findItem(ctx, repo, id)
		if err != nil {
			return err
		}
		if item.SellerID != actorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "listing does not belong to user")
		}
		if item.Status != enums.ItemStatusAvailable {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "listing can only be edited while available")
		}

		updates := map[string]any{}
		if req.Title != nil {
			updates["title"] = *req.Title
		}
		if req.Description != nil {
			updates["description"] = *req.Description
		}
		if req.Category != nil {
			updates["category"] = *req.Category
		}
		if req.Condition != nil {
			condition, err := enums.ParseItemCondition(*req.Condition)
			if err != nil {
				return pkgerrors.New(pkgerrors.CodeValidation, err.Error())
			}
			updates["condition"] = condition
		}
		if req.PriceKobo != nil {
			if *req.PriceKobo <= 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
			}
			updates["price_kobo"] = *req.PriceKobo
		}
		if req.ImageURLs != nil {
			updates["image_urls"] = req.ImageURLs
		}
		if req.Location != nil {
			updates["location"] = *req.Location
		}
		if len(updates) == 0 {
			updated = item
			return nil
		}

		if err := repo.Update(ctx, item.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update listing")
		}
		updated, err = repo.FindByID(ctx, item.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload listing")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	summary := FromModel(updated)
	return &summary, nil
}

// Delete removes an available listing. Admins may remove any listing;
// sellers only their own. Listings tied to an in-flight order stay put.
func (s *service) Delete(ctx context.Context, actorID uuid.UUID, actorRole enums.MemberRole, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := s.findItem(ctx, repo, id)
		if err != nil {
			return err
		}
		if actorRole != enums.MemberRoleAdmin && item.SellerID != actorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "listing does not belong to user")
		}
		if item.Status != enums.ItemStatusAvailable {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "listing cannot be removed while a purchase is in flight")
		}
		if err := repo.Delete(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete listing")
		}
		return nil
	})
}

func (s *service) findItem(ctx context.Context, repo Repository, id uuid.UUID) (*models.Item, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	item, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.NotFound("item")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
	}
	return item, nil
}
