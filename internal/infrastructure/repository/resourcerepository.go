package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/orris-inc/storefront/internal/domain/catalog"
	"github.com/orris-inc/storefront/internal/domain/shared"
	"github.com/orris-inc/storefront/internal/infrastructure/persistence/mappers"
	"github.com/orris-inc/storefront/internal/infrastructure/persistence/models"
	"github.com/orris-inc/storefront/internal/shared/db"
	apperrors "github.com/orris-inc/storefront/internal/shared/errors"
	"github.com/orris-inc/storefront/internal/shared/id"
	"github.com/orris-inc/storefront/internal/shared/logger"
)

// ResourceRepositoryImpl implements the catalog.Repository interface.
type ResourceRepositoryImpl struct {
	db     *gorm.DB
	txMgr  *db.TransactionManager
	mapper mappers.ResourceMapper
	logger logger.Interface
	now    func() time.Time
}

// NewResourceRepository creates a new resource repository instance.
func NewResourceRepository(gdb *gorm.DB, logger logger.Interface) *ResourceRepositoryImpl {
	return &ResourceRepositoryImpl{
		db:     gdb,
		txMgr:  db.NewTransactionManager(gdb),
		mapper: mappers.NewResourceMapper(),
		logger: logger,
		now:    time.Now,
	}
}

// Create inserts a resource under a fresh SID. The name check and insert run
// in one transaction.
func (r *ResourceRepositoryImpl) Create(ctx context.Context, merchantID string, d catalog.Draft) (*catalog.Resource, error) {
	sid, err := id.NewResourceID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate resource ID: %w", err)
	}
	entity, err := catalog.NewResource(sid, merchantID, d, r.now().UTC())
	if err != nil {
		return nil, err
	}
	model, err := r.mapper.ToModel(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to map resource entity: %w", err)
	}

	err = r.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		taken, err := r.nameTaken(ctx, merchantID, model.NormalizedName, "")
		if err != nil {
			return err
		}
		if taken {
			return shared.ErrNameConflict
		}
		return db.GetTxFromContext(ctx, r.db).Create(model).Error
	})
	if err != nil {
		if errors.Is(err, shared.ErrNameConflict) || apperrors.IsDuplicateError(err) {
			return nil, shared.ErrNameConflict
		}
		r.logger.Errorw("failed to create resource in database", "merchant_id", merchantID, "error", err)
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	r.logger.Infow("resource created successfully", "id", model.ID, "sid", model.SID, "name", model.Name)
	return r.mapper.ToEntity(model)
}

// Update applies p with optimistic locking on the version column.
func (r *ResourceRepositoryImpl) Update(ctx context.Context, merchantID, sid string, p catalog.Patch) (*catalog.Resource, error) {
	var updated *models.ResourceModel

	err := r.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		tx := db.GetTxFromContext(ctx, r.db)

		var model models.ResourceModel
		if err := tx.Scopes(db.ForMerchant(merchantID)).Where("sid = ?", sid).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}

		current, err := r.mapper.ToEntity(&model)
		if err != nil {
			return err
		}
		next, err := current.Apply(p, r.now().UTC())
		if err != nil {
			return err
		}
		nextModel, err := r.mapper.ToModel(next)
		if err != nil {
			return err
		}

		if nextModel.NormalizedName != model.NormalizedName {
			taken, err := r.nameTaken(ctx, merchantID, nextModel.NormalizedName, sid)
			if err != nil {
				return err
			}
			if taken {
				return shared.ErrNameConflict
			}
		}

		result := tx.Model(&models.ResourceModel{}).
			Where("id = ? AND version = ?", model.ID, model.Version).
			Updates(map[string]any{
				"name":            nextModel.Name,
				"normalized_name": nextModel.NormalizedName,
				"link":            nextModel.Link,
				"origin_kind":     nextModel.OriginKind,
				"value_category":  nextModel.ValueCategory,
				"promo_code":      nextModel.PromoCode,
				"description":     nextModel.Description,
				"updated_at":      nextModel.UpdatedAt,
				"version":         model.Version + 1,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("resource %s was modified concurrently", sid)
		}

		nextModel.ID = model.ID
		nextModel.CreatedAt = model.CreatedAt
		nextModel.Version = model.Version + 1
		updated = nextModel
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrNotFound), errors.Is(err, shared.ErrNameConflict):
			return nil, err
		case apperrors.IsDuplicateError(err):
			return nil, shared.ErrNameConflict
		}
		if _, ok := shared.AsOperationError(err); ok {
			return nil, err
		}
		r.logger.Errorw("failed to update resource", "sid", sid, "error", err)
		return nil, fmt.Errorf("failed to update resource: %w", err)
	}

	r.logger.Infow("resource updated successfully", "sid", sid, "version", updated.Version)
	return r.mapper.ToEntity(updated)
}

// Delete soft deletes a resource and drops any assignment rows still pointing at it.
func (r *ResourceRepositoryImpl) Delete(ctx context.Context, merchantID, sid string) error {
	err := r.txMgr.RunInTransaction(ctx, func(ctx context.Context) error {
		tx := db.GetTxFromContext(ctx, r.db)

		var model models.ResourceModel
		if err := tx.Scopes(db.ForMerchant(merchantID)).Where("sid = ?", sid).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}
		if err := tx.Where("resource_id = ?", model.ID).Delete(&models.FunnelResourceModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model).Error
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return err
		}
		r.logger.Errorw("failed to delete resource", "sid", sid, "error", err)
		return fmt.Errorf("failed to delete resource: %w", err)
	}

	r.logger.Infow("resource deleted successfully", "sid", sid)
	return nil
}

// ListByMerchant returns the merchant's resources in creation order.
func (r *ResourceRepositoryImpl) ListByMerchant(ctx context.Context, merchantID string) ([]*catalog.Resource, error) {
	var modelList []*models.ResourceModel

	if err := db.GetTxFromContext(ctx, r.db).
		Scopes(db.ForMerchant(merchantID)).
		Order("id ASC").
		Find(&modelList).Error; err != nil {
		r.logger.Errorw("failed to list resources", "merchant_id", merchantID, "error", err)
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}

	entities, err := r.mapper.ToEntities(modelList)
	if err != nil {
		return nil, fmt.Errorf("failed to map resources: %w", err)
	}
	return entities, nil
}

func (r *ResourceRepositoryImpl) nameTaken(ctx context.Context, merchantID, normalized, excludingSID string) (bool, error) {
	query := db.GetTxFromContext(ctx, r.db).Model(&models.ResourceModel{}).
		Scopes(db.ForMerchant(merchantID)).
		Where("normalized_name = ?", normalized)
	if excludingSID != "" {
		query = query.Where("sid <> ?", excludingSID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check resource name: %w", err)
	}
	return count > 0, nil
}
