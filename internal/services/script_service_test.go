// internal/services/script_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScriptService(t *testing.T) *ScriptService {
	t.Helper()
	svc, err := NewScriptService(t.TempDir())
	require.NoError(t, err)
	return svc
}

func TestSplitLinesFiltersBlankLines(t *testing.T) {
	raw := "[scene 001]\r\n\r\nHello\n   \n[k]\n"

	lines := SplitLines(raw)
	assert.Equal(t, []string{"[scene 001]", "Hello", "[k]"}, lines)
}

func TestScriptServiceRoundTrip(t *testing.T) {
	svc := newTestScriptService(t)

	require.NoError(t, svc.SaveScript("0100000110", "＠マシュ\n先輩！\n[k]\n[end]"))

	require.True(t, svc.ScriptExists("0100000110"))

	raw, err := svc.LoadRaw("0100000110")
	require.NoError(t, err)
	assert.Contains(t, raw, "＠マシュ")

	lines, err := svc.LoadLines("0100000110")
	require.NoError(t, err)
	assert.Len(t, lines, 4)
}

func TestScriptServiceMissingScript(t *testing.T) {
	svc := newTestScriptService(t)

	_, err := svc.LoadRaw("nope")
	assert.ErrorIs(t, err, ErrScriptNotFound)

	_, err = svc.LoadLines("nope")
	assert.ErrorIs(t, err, ErrScriptNotFound)
}

func TestListScriptsUsesSidecarMetadata(t *testing.T) {
	svc := newTestScriptService(t)

	require.NoError(t, svc.SaveScript("0100000110", "[end]"))
	require.NoError(t, svc.FileStorage.SaveJSONFile("scripts", "0100000110.meta.json",
		scriptMeta{Title: "特異点F 序章", Region: "JP"}))
	require.NoError(t, svc.SaveScript("plain", "Hello\n[end]"))

	infos, err := svc.ListScripts()
	require.NoError(t, err)
	require.Len(t, infos, 2)

	assert.Equal(t, "0100000110", infos[0].ID)
	assert.Equal(t, "特異点F 序章", infos[0].Title)
	assert.Equal(t, 1, infos[0].LineCount)

	// 无元数据时文件名即标题
	assert.Equal(t, "plain", infos[1].Title)
	assert.Equal(t, 2, infos[1].LineCount)
}
