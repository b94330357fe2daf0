package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockflowhq/stockflow-backend/pkg/db/models"
	pkgerrors "github.com/stockflowhq/stockflow-backend/pkg/errors"
)

// Repository answers the catalog lookups order creation depends on. The
// catalog itself is managed elsewhere; this service only validates against it.
type Repository interface {
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
	FindLocation(ctx context.Context, id uuid.UUID) (*models.Location, error)
	ValidateOrderKey(ctx context.Context, productID, variantID, locationID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return &product, nil
}

func (r *repository) FindVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&variant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product variant")
	}
	return &variant, nil
}

func (r *repository) FindLocation(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	var location models.Location
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&location).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "location not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load location")
	}
	return &location, nil
}

// ValidateOrderKey confirms the product/variant/location triple an order line
// references exists and is active. VariantID uuid.Nil means no variant.
func (r *repository) ValidateOrderKey(ctx context.Context, productID, variantID, locationID uuid.UUID) error {
	product, err := r.FindProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !product.Active {
		return pkgerrors.New(pkgerrors.CodeValidation, "product is inactive").
			WithDetails(map[string]any{"product_id": productID.String()})
	}

	if variantID != uuid.Nil {
		variant, err := r.FindVariant(ctx, variantID)
		if err != nil {
			return err
		}
		if variant.ProductID != productID {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant does not belong to product").
				WithDetails(map[string]any{
					"product_id": productID.String(),
					"variant_id": variantID.String(),
				})
		}
	}

	location, err := r.FindLocation(ctx, locationID)
	if err != nil {
		return err
	}
	if !location.Active {
		return pkgerrors.New(pkgerrors.CodeValidation, "location is inactive").
			WithDetails(map[string]any{"location_id": locationID.String()})
	}
	return nil
}
