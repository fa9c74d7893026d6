package store

import "errors"

// Sentinel errors, one per wire-visible outcome. internal/session maps each
// to its response token via errors.Is; no Go error string ever reaches a
// client.
var (
	ErrLogin       = errors.New("store: login failed")
	ErrUserExists  = errors.New("store: user already exists")
	ErrNoUser      = errors.New("store: no such user")
	ErrNoData      = errors.New("store: user content is empty")
	ErrKey         = errors.New("store: key already exists or is missing")
	ErrQuotaReq    = errors.New("store: request quota exceeded")
	ErrQuotaUp     = errors.New("store: upload quota exceeded")
	ErrQuotaDown   = errors.New("store: download quota exceeded")
	ErrNotAdmin    = errors.New("store: operation requires the admin user")
	ErrFuncExists  = errors.New("store: map/reduce function name already registered")
	ErrFuncMissing = errors.New("store: no such map/reduce function")
	ErrSOLoad      = errors.New("store: plugin failed to load or validate")
	ErrServer      = errors.New("store: map/reduce child process failed")
)
