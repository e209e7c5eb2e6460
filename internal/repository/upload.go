package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smsgate/internal/logger"
	"github.com/smsgate/internal/model"
)

type UploadRepository struct {
	db DB
}

func NewUploadRepository(db DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// Record inserts u, filling ID and CreatedAt when empty.
func (r *UploadRepository) Record(ctx context.Context, u *model.Upload) error {
	defer logger.DeferLogDuration("upload.Record", time.Now())()
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO uploads (id, username, file_name, size, location, remote_ip, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Username, u.FileName, u.Size, u.Location, u.RemoteIP, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("uploadRepo.Record: %w", err)
	}
	return nil
}
