package library

import "errors"

// Library domain errors.
var (
	ErrLibraryNotFound        = errors.New("library not found")
	ErrFolderNotFound         = errors.New("library folder not found")
	ErrLibraryDatasetNotFound = errors.New("library dataset not found")
	ErrLDDANotFound           = errors.New("library dataset version not found")
	ErrLibraryNameExists      = errors.New("library name already exists")
	ErrTemplateNotFound       = errors.New("metadata template not found")
)
