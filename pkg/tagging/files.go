package tagging

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/m4bforge/m4bforge/pkg/jobs"
)

// FileStore provides database operations for tracked artifacts.
type FileStore struct {
	db *gorm.DB
}

// NewFileStore creates a FileStore on the given database.
func NewFileStore(db *gorm.DB) *FileStore {
	return &FileStore{db: db}
}

// AutoMigrate creates or updates the tagged_files table.
func (s *FileStore) AutoMigrate() error {
	return s.db.AutoMigrate(&TaggedFile{})
}

// RegisterPath records a converted artifact as untagged. Registering a path
// that is already tracked returns the existing record unchanged.
func (s *FileStore) RegisterPath(path string) (*TaggedFile, error) {
	if existing, err := s.GetByPath(path); err == nil {
		return existing, nil
	} else if !errors.Is(err, jobs.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	file := &TaggedFile{
		ID:        uuid.New().String(),
		FilePath:  path,
		IsTagged:  false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.Create(file).Error; err != nil {
		// A concurrent registration may have won the unique index race.
		if existing, getErr := s.GetByPath(path); getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("register file: %w: %v", jobs.ErrStoreUnavailable, err)
	}
	return file, nil
}

// GetByID retrieves a tracked file by ID.
func (s *FileStore) GetByID(id string) (*TaggedFile, error) {
	var file TaggedFile
	if err := s.db.First(&file, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("file %s: %w", id, jobs.ErrNotFound)
		}
		return nil, fmt.Errorf("get file: %w: %v", jobs.ErrStoreUnavailable, err)
	}
	return &file, nil
}

// GetByPath retrieves a tracked file by its path.
func (s *FileStore) GetByPath(path string) (*TaggedFile, error) {
	var file TaggedFile
	if err := s.db.First(&file, "file_path = ?", path).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("file %s: %w", path, jobs.ErrNotFound)
		}
		return nil, fmt.Errorf("get file: %w: %v", jobs.ErrStoreUnavailable, err)
	}
	return &file, nil
}

// ListUntagged returns tracked files that have not been tagged yet, oldest
// first.
func (s *FileStore) ListUntagged(limit, offset int) ([]TaggedFile, error) {
	if limit <= 0 {
		limit = 50
	}
	var files []TaggedFile
	err := s.db.
		Where("is_tagged = ?", false).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("list untagged files: %w: %v", jobs.ErrStoreUnavailable, err)
	}
	return files, nil
}

// MarkTagged records the applied metadata, the file's new location, and flips
// is_tagged in a single update.
func (s *FileStore) MarkTagged(id string, meta *Metadata, newPath, coverPath string) (*TaggedFile, error) {
	if _, err := s.GetByID(id); err != nil {
		return nil, err
	}

	updates := map[string]any{
		"file_path":   newPath,
		"asin":        meta.ASIN,
		"title":       meta.Title,
		"author":      meta.Author,
		"narrator":    meta.Narrator,
		"series":      meta.Series,
		"series_part": meta.SeriesPart,
		"description": meta.Description,
		"cover_url":   meta.CoverURL,
		"cover_path":  coverPath,
		"is_tagged":   true,
		"updated_at":  time.Now().UTC(),
	}
	if err := s.db.Model(&TaggedFile{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("mark file tagged: %w: %v", jobs.ErrStoreUnavailable, err)
	}
	return s.GetByID(id)
}

// Delete removes a tracked file record and reports whether it existed.
func (s *FileStore) Delete(id string) (bool, error) {
	result := s.db.Where("id = ?", id).Delete(&TaggedFile{})
	if result.Error != nil {
		return false, fmt.Errorf("delete file: %w: %v", jobs.ErrStoreUnavailable, result.Error)
	}
	return result.RowsAffected > 0, nil
}
