package repository

import (
	"context"

	"github.com/bazaar-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceRepository 计数器行数据访问接口
type SequenceRepository interface {
	Next(ctx context.Context, name string, seed func(ctx context.Context) (int64, error)) (int64, error)
}

// GormSequenceRepository GORM 实现
type GormSequenceRepository struct {
	db *gorm.DB
}

// NewSequenceRepository 创建计数器仓库
func NewSequenceRepository(db *gorm.DB) *GormSequenceRepository {
	return &GormSequenceRepository{db: db}
}

// Next 原子自增并返回新值。计数器行不存在时先用 seed 的结果初始化。
// UPDATE 持有行锁直到事务结束，同一事务内读到的值即本次分配结果。
func (r *GormSequenceRepository) Next(ctx context.Context, name string, seed func(ctx context.Context) (int64, error)) (int64, error) {
	var exists int64
	if err := r.db.WithContext(ctx).Model(&models.OrderSequence{}).Where("name = ?", name).Count(&exists).Error; err != nil {
		return 0, err
	}
	if exists == 0 {
		var start int64
		if seed != nil {
			value, err := seed(ctx)
			if err != nil {
				return 0, err
			}
			start = value
		}
		row := models.OrderSequence{Name: name, Value: start}
		if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return 0, err
		}
	}

	var next int64
	if dbDialectName(r.db) == "postgres" {
		// postgres 单条 UPDATE ... RETURNING 即可拿到新值
		var row models.OrderSequence
		result := r.db.WithContext(ctx).Model(&row).
			Clauses(clause.Returning{Columns: []clause.Column{{Name: "value"}}}).
			Where("name = ?", name).
			Update("value", gorm.Expr("value + 1"))
		if result.Error != nil {
			return 0, result.Error
		}
		if result.RowsAffected != 1 {
			return 0, gorm.ErrRecordNotFound
		}
		return row.Value, nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.OrderSequence{}).
			Where("name = ?", name).
			Update("value", gorm.Expr("value + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return gorm.ErrRecordNotFound
		}
		var row models.OrderSequence
		if err := tx.Where("name = ?", name).Take(&row).Error; err != nil {
			return err
		}
		next = row.Value
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}
