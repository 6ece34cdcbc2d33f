package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"nexuszip/pkg/nexus"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrArchiveNotFound = errors.New("archive not found in catalog")

// Repository 封装所有对目录数据库的操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// NewEntry 把文件概要投影为一条归档记录及其字段记录
// 记录以 file_name 的基名为键
func NewEntry(location string, s *nexus.Summary) (*ArchiveRecord, []FieldRecord, error) {
	attrsJSON, err := json.Marshal(s.Attrs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal root attributes: %w", err)
	}

	name := filepath.Base(s.FileName)
	rec := &ArchiveRecord{
		Name:       name,
		Location:   location,
		Creator:    s.Creator,
		FileTime:   s.FileTime,
		Version:    s.Version,
		Attrs:      datatypes.JSON(attrsJSON),
		GroupCount: s.Groups,
		FieldCount: len(s.Fields),
		Bytes:      s.Bytes,
	}

	fields := make([]FieldRecord, 0, len(s.Fields))
	for _, fs := range s.Fields {
		shape, err := json.Marshal(fs.Shape)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal shape of %s: %w", fs.Path, err)
		}
		fields = append(fields, FieldRecord{
			Archive: name,
			Path:    fs.Path,
			DType:   fs.DType,
			Format:  fs.Format,
			Shape:   datatypes.JSON(shape),
			Binary:  fs.Binary,
			Target:  fs.Target,
			Bytes:   fs.Bytes,
		})
	}
	return rec, fields, nil
}

// Record 登记 (或重新登记) 一个归档
// 归档记录按主键 upsert，字段记录在同一事务内整体替换，重复登记是幂等的。
func (r *Repository) Record(ctx context.Context, location string, s *nexus.Summary) error {
	rec, fields, err := NewEntry(location, s)
	if err != nil {
		return err
	}
	if s.FileName == "" {
		return fmt.Errorf("archive %s has no file_name", location)
	}

	err = r.db.GetConn().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Upsert 归档记录
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"location", "creator", "file_time", "version", "attrs",
				"group_count", "field_count", "bytes", "updated_at",
			}),
		}).Create(rec).Error
		if err != nil {
			return fmt.Errorf("failed to upsert archive: %w", err)
		}

		// 2. 替换字段记录
		if err := tx.Where("archive = ?", rec.Name).Delete(&FieldRecord{}).Error; err != nil {
			return fmt.Errorf("failed to clear fields: %w", err)
		}
		if len(fields) == 0 {
			return nil
		}
		if err := tx.Create(&fields).Error; err != nil {
			return fmt.Errorf("failed to insert fields: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"archive": rec.Name,
		"fields":  len(fields),
	}).Info("recorded archive")
	return nil
}

func (r *Repository) Get(ctx context.Context, name string) (*ArchiveRecord, error) {
	var rec ArchiveRecord
	err := r.db.GetConn().WithContext(ctx).
		Where("name = ?", name).
		First(&rec).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrArchiveNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List 按文件时间倒序列出归档，limit <= 0 表示不限制
func (r *Repository) List(ctx context.Context, limit int) ([]ArchiveRecord, error) {
	var recs []ArchiveRecord
	q := r.db.GetConn().WithContext(ctx).Order("file_time DESC").Order("name")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&recs).Error
	return recs, err
}

func (r *Repository) FindByCreator(ctx context.Context, creator string, limit int) ([]ArchiveRecord, error) {
	var recs []ArchiveRecord
	q := r.db.GetConn().WithContext(ctx).
		Where("creator = ?", creator).
		Order("file_time DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&recs).Error
	return recs, err
}

// Fields 返回归档的字段记录，按路径排序
func (r *Repository) Fields(ctx context.Context, name string) ([]FieldRecord, error) {
	if _, err := r.Get(ctx, name); err != nil {
		return nil, err
	}
	var fields []FieldRecord
	err := r.db.GetConn().WithContext(ctx).
		Where("archive = ?", name).
		Order("path").
		Find(&fields).Error
	return fields, err
}

// Delete 删除归档及其字段记录
func (r *Repository) Delete(ctx context.Context, name string) error {
	return r.db.GetConn().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("name = ?", name).Delete(&ArchiveRecord{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrArchiveNotFound
		}
		return tx.Where("archive = ?", name).Delete(&FieldRecord{}).Error
	})
}
