package catalog

import "errors"

var (
	ErrInvalidCatalog    = errors.New("invalid catalog")
	ErrFailedToLoad      = errors.New("failed to load catalog")
	ErrFailedToParse     = errors.New("failed to parse catalog")
	ErrPathNotProvided   = errors.New("catalog path not provided")
	ErrCatalogNotDefined = errors.New("catalog not defined")
)
