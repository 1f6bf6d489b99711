package repo

import (
	"context"

	"aieditor/internal/domain"
	"aieditor/internal/infra"
	"aieditor/internal/sqlinline"
)

const defaultImageHistoryLimit = 100

// ImageRepositoryPG implements domain.ImageRepository.
type ImageRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewImageRepository creates a new image history repository.
func NewImageRepository(sql infra.SQLExecutor) *ImageRepositoryPG {
	return &ImageRepositoryPG{sql: sql}
}

// Save inserts a history row and fills in its generated id and timestamp.
func (r *ImageRepositoryPG) Save(ctx context.Context, img *domain.UserImage) error {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertUserImage,
		img.UserID,
		img.OriginalURL,
		img.ProcessedURL,
		string(img.Operation),
		img.FileName,
		img.FileSize,
	)
	return row.Scan(&img.ID, &img.CreatedAt)
}

// ListByUser returns the most recent history rows first.
func (r *ImageRepositoryPG) ListByUser(ctx context.Context, userID string) ([]domain.UserImage, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectUserImages, userID, defaultImageHistoryLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := []domain.UserImage{}
	for rows.Next() {
		var (
			img domain.UserImage
			op  string
		)
		if err := rows.Scan(&img.ID, &img.UserID, &img.OriginalURL, &img.ProcessedURL, &op, &img.FileName, &img.FileSize, &img.CreatedAt); err != nil {
			return nil, err
		}
		img.Operation = domain.ImageOperation(op)
		images = append(images, img)
	}
	return images, rows.Err()
}
