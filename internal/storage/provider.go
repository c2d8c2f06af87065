// Package storage defines the read-only file-system abstraction the sync loop
// loads documents through.
package storage

import "github.com/starford/orgsync/internal/models"

// Provider is the interface for monitored file access.
type Provider interface {
	// List returns metadata for every relevant org file under root. A file root
	// yields just that file.
	List(root string) ([]models.FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
}
