package filestorage

import (
	"mime/multipart"
)

// Storage stores uploaded images and hands back a reference relative to the
// storage root, e.g. "images/3f2a....jpg"
type Storage interface {
	// SaveFile validates and stores the upload under subDir
	SaveFile(fileHeader *multipart.FileHeader, subDir string) (string, error)

	// DeleteFile removes a stored file; missing files are not an error
	DeleteFile(ref string) error

	// GetFullPath returns the filesystem path of a reference
	GetFullPath(ref string) string
}
