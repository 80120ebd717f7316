package registry

import "errors"

var (
	ErrSymbolExists   = errors.New("symbol already registered")
	ErrSymbolNotFound = errors.New("symbol not registered")
)
