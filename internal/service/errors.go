package service

import "errors"

var (
	ErrNotFound       = errors.New("error not found")
	ErrWrongEventKind = errors.New("error event has a different kind")
	ErrStockArchived  = errors.New("error stock is archived")
)
