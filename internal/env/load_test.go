package env

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	vars, err := Parse(strings.NewReader(`
# streaming overrides
HLOD_MODE=manual
export HLOD_MANUAL_LEVEL = 2
HLOD_NAME="quoted value"
HLOD_SINGLE='x'
HLOD_EMPTY=
`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"HLOD_MODE":         "manual",
		"HLOD_MANUAL_LEVEL": "2",
		"HLOD_NAME":         "quoted value",
		"HLOD_SINGLE":       "x",
		"HLOD_EMPTY":        "",
	}, vars)

	_, err = Parse(strings.NewReader("NOT A PAIR\n"))
	assert.Error(t, err)
}

func TestLoadKeepsExistingVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("HLOD_TEST_A=file\nHLOD_TEST_B=file\n"), 0644))
	t.Setenv("HLOD_TEST_A", "real")
	t.Setenv("HLOD_TEST_B", "")
	require.NoError(t, os.Unsetenv("HLOD_TEST_B"))

	set, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"HLOD_TEST_B"}, set)
	assert.Equal(t, "real", os.Getenv("HLOD_TEST_A"))
	assert.Equal(t, "file", os.Getenv("HLOD_TEST_B"))
}

func TestLoadMissingFile(t *testing.T) {
	set, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
	assert.Empty(t, set)
}
