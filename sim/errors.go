// sim/errors.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"errors"
)

var (
	ErrInvalidConfig      = errors.New("Invalid simulation configuration")
	ErrTerminalAircraft   = errors.New("Aircraft has already landed or diverted")
	ErrTickOutOfOrder     = errors.New("Ticks must be stepped in increasing order")
	ErrUnknownAircraft    = errors.New("Unknown aircraft")
	ErrUnknownController  = errors.New("Unknown separation controller")
	ErrUnknownOrdering    = errors.New("Unknown queue ordering")
	ErrUnknownReinsertion = errors.New("Unknown reinsertion policy")
	ErrWrongLane          = errors.New("Aircraft is not in the expected lane")
)
