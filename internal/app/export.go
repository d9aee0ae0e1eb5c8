package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/contact-harvester/internal/export"
	"github.com/JakeFAU/contact-harvester/internal/storage/gcs"
	"github.com/JakeFAU/contact-harvester/internal/storage/local"
)

// ExportDestination opens the blob destination for exports: the GCS bucket
// when one is given (or configured), otherwise dir (or the configured export
// directory). The returned func releases it.
func (a *App) ExportDestination(ctx context.Context, bucket, dir string) (export.Destination, func(), error) {
	if bucket == "" {
		bucket = a.cfg.Export.GCSBucket
	}
	if bucket != "" {
		store, err := gcs.Dial(ctx, gcs.Config{Bucket: bucket})
		if err != nil {
			return nil, nil, fmt.Errorf("gcs export destination: %w", err)
		}
		a.logger.Debug("exporting to GCS", zap.String("bucket", bucket))
		return store, func() {
			if err := store.Close(); err != nil {
				a.logger.Warn("gcs client close failed", zap.Error(err))
			}
		}, nil
	}
	if dir == "" {
		dir = a.cfg.Export.Dir
	}
	store, err := local.New(local.Config{BaseDir: dir})
	if err != nil {
		return nil, nil, fmt.Errorf("local export destination: %w", err)
	}
	a.logger.Debug("exporting to local directory", zap.String("dir", dir))
	return store, func() {}, nil
}
