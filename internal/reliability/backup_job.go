package reliability

import (
	"context"
	"time"
)

// BackupJob runs the backup and rotation on a schedule.
type BackupJob struct {
	service *BackupService
	timeout time.Duration
}

// NewBackupJob creates a scheduled backup job.
func NewBackupJob(service *BackupService) *BackupJob {
	return &BackupJob{
		service: service,
		timeout: 10 * time.Minute,
	}
}

// Name identifies the job in scheduler logs.
func (j *BackupJob) Name() string { return "s3_backup" }

// Run creates and uploads a backup, then prunes old ones.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := j.service.CreateAndUploadBackup(ctx); err != nil {
		return err
	}
	return j.service.RotateOldBackups(ctx)
}
