package models

import "time"

// BackupRecord describes one backup of the configuration file. Records are
// reconstructed by rescanning the backup directory; the directory itself is
// the durable store.
type BackupRecord struct {
	// ID is the timestamp portion of the backup filename and is stable
	// across rescans.
	ID         string
	SourcePath string
	Path       string
	CreatedAt  time.Time
	Checksum   string
	SizeBytes  int64
	// Valid is false when the stored checksum no longer matches the file
	// content. Invalid backups are listed but refused for restore.
	Valid bool
}
