// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package scout

import (
	"net/netip"

	"grimm.is/sockwatch/internal/errors"
	"grimm.is/sockwatch/internal/logging"
)

// NewConntrackSource is unavailable off Linux.
func NewConntrackSource(mode AFMode, isLocal func(netip.Addr) bool, log *logging.Logger) (Source, error) {
	return nil, errors.New(errors.KindUnavailable, "conntrack source requires Linux")
}
