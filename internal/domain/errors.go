package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrNoChains        = errors.New("no chains configured")
	ErrChainUnknown    = errors.New("unknown chain")
	ErrNotDeployed     = errors.New("adapter not deployed")
	ErrReadUnavailable = errors.New("chain read unavailable")
	ErrStaleSnapshot   = errors.New("snapshot exceeds freshness bound")
	ErrLockHeld        = errors.New("lock already held")
)
