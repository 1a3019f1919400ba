package relevance

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestFilter() *Filter {
	return New(
		[]string{"asus", "華碩"},
		[]string{"router", "firmware", "rt-ax", "路由器"},
		[]string{"security", "cve", "vulnerability", "資安", "漏洞"},
	)
}

func TestIsRelevantBrandPlusTopic(t *testing.T) {
	t.Parallel()
	f := newTestFilter()

	require.True(t, f.IsRelevant("ASUS Router RT-AX88U firmware patch fixes CVE", ""))
	require.True(t, f.IsRelevant("華碩路由器爆出漏洞", ""))
	require.True(t, f.IsRelevant("New exploit campaign", "targets ASUS router owners"),
		"snippet terms count toward the match")
}

func TestIsRelevantBrandAloneIsInsufficient(t *testing.T) {
	t.Parallel()
	f := newTestFilter()

	require.False(t, f.IsRelevant("ASUS laptop review", ""))
	require.False(t, f.IsRelevant("華碩發表新筆電", ""))
}

func TestIsRelevantBrandIsMandatory(t *testing.T) {
	t.Parallel()
	f := newTestFilter()

	require.False(t, f.IsRelevant("Router CVE disclosed by vendor", "critical vulnerability"))
}

func TestIsRelevantCaseInsensitive(t *testing.T) {
	t.Parallel()
	f := newTestFilter()

	require.True(t, f.IsRelevant("asus ROUTER flaw", ""))
	require.True(t, f.IsRelevant("Asus Firmware Update", ""))
}

func TestIsRelevantPermissiveOr(t *testing.T) {
	t.Parallel()
	f := newTestFilter()

	// Product term without any security term still passes.
	require.True(t, f.IsRelevant("ASUS firmware release notes", ""))
	// Security term without any product term still passes.
	require.True(t, f.IsRelevant("ASUS fixes critical CVE", ""))
}
