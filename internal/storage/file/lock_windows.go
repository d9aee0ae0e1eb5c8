//go:build windows

package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

const lockRetryWait = 25 * time.Millisecond

func withLockFile(ctx context.Context, lockPath string, fn func() error) error {
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, filePerm)
		if err == nil {
			defer func() {
				_ = f.Close()
				_ = os.Remove(lockPath)
			}()
			return fn()
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("open lock %s: %w", lockPath, err)
		}
		timer := time.NewTimer(lockRetryWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("wait for lock %s: %w", lockPath, ctx.Err())
		case <-timer.C:
		}
	}
}
