// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package conn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/sockwatch/internal/errors"
)

func TestParseGrouping(t *testing.T) {
	cases := map[string]Policy{
		"address":    GroupByAddr,
		"addr":       GroupByAddr,
		"port":       GroupByPort,
		"state":      GroupByState,
		"interface":  GroupByIface,
		"if":         GroupByIface,
		"cloud":      GroupByCloud,
		"cloud+port": GroupByCloudPort,
		"cloudport":  GroupByCloudPort,
	}
	for in, want := range cases {
		got, err := ParseGrouping(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseGrouping("color")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestGroupingCycle(t *testing.T) {
	seen := map[Policy]bool{}
	p := GroupByAddr
	for i := 0; i < len(groupingOrder); i++ {
		assert.False(t, seen[p], "cycle revisited %s early", GroupingName(p))
		seen[p] = true
		p = NextGrouping(p)
	}
	assert.Equal(t, GroupByAddr, p, "cycle wraps around")
}

func TestGroupingName(t *testing.T) {
	assert.Equal(t, "address", GroupingName(GroupByAddr))
	assert.Equal(t, "cloud+port", GroupingName(GroupByCloudPort))
}

func TestParseState(t *testing.T) {
	st, err := ParseState("ESTABLISHED")
	require.NoError(t, err)
	assert.Equal(t, Established, st)

	st, err = ParseState("TIME_WAIT")
	require.NoError(t, err)
	assert.Equal(t, TimeWait, st)

	_, err = ParseState("LOITERING")
	assert.Error(t, err)
}

func TestStateFromLinux(t *testing.T) {
	assert.Equal(t, Established, StateFromLinux(1))
	assert.Equal(t, Listen, StateFromLinux(10))
	assert.Equal(t, SynRecv, StateFromLinux(12), "NEW_SYN_RECV folds into SYN_RECV")
	assert.Equal(t, Close, StateFromLinux(99))
}
