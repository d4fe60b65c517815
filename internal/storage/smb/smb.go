// Package smb provides an SMB/CIFS network share storage backend.
// The SMB share must be pre-mounted on the OS (via mount.cifs or fstab).
// This backend delegates to the local filesystem backend at the mount path.
package smb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/captain108/FileToLink-cap/internal/storage/local"
)

// Config holds SMB backend settings.
// Server is informational; reads go through MountPath.
type Config struct {
	Server    string `json:"server"`     // SMB server path (e.g., //server/share)
	MountPath string `json:"mount_path"` // Local mount point where share is mounted
}

// SMBBackend wraps a LocalBackend at the SMB mount point.
type SMBBackend struct {
	*local.LocalBackend
	config Config
}

// New creates a new SMB backend from the given config. The mount must already
// exist; an absent mount point usually means the share is not mounted.
func New(cfg Config) (*SMBBackend, error) {
	if cfg.MountPath == "" {
		return nil, fmt.Errorf("mount_path is required")
	}

	lb, err := local.New(local.Config{RootPath: cfg.MountPath})
	if err != nil {
		return nil, fmt.Errorf("smb backend %s at %s: %w", cfg.Server, cfg.MountPath, err)
	}

	return &SMBBackend{
		LocalBackend: lb,
		config:       cfg,
	}, nil
}

// NewFromJSON creates an SMBBackend from raw JSON config.
func NewFromJSON(raw json.RawMessage) (*SMBBackend, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse smb config: %w", err)
	}
	return New(cfg)
}

// Ping reports a stale or unmounted share.
func (b *SMBBackend) Ping(ctx context.Context) error {
	if err := b.LocalBackend.Ping(ctx); err != nil {
		return fmt.Errorf("smb share %s: %w", b.config.Server, err)
	}
	return nil
}

// Type returns "smb".
func (b *SMBBackend) Type() string { return "smb" }
