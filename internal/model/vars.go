package model

import "github.com/zeromicro/go-zero/core/stores/sqlx"

// ErrNotFound mirrors the sqlx sentinel so callers do not import the store
// package just to match it.
var ErrNotFound = sqlx.ErrNotFound
