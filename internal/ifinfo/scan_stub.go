// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build !linux

package ifinfo

// Refresh is a no-op off Linux; the table stays empty, so connections
// render without interface names.
func (t *Table) Refresh() error {
	t.log.Debug("interface scanning not supported on this platform")
	return nil
}
