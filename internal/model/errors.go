package model

import "errors"

var (
	// ErrNoBars is returned by a dataset that has no history for a symbol.
	ErrNoBars = errors.New("no bars for symbol")

	// ErrUnknownUniverse is returned when a universe selector names no
	// known group.
	ErrUnknownUniverse = errors.New("unknown universe")
)

// UniverseAll selects every symbol a dataset holds.
const UniverseAll = "all"
