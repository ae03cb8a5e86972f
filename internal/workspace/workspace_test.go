package workspace

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KhaineVulpana/loco-core/internal/errs"
)

func TestResolvePathWithinRoot(t *testing.T) {
	resolved, err := ResolvePath("/workspace/ws1", "src/main.go")
	require.NoError(t, err)
	assert.Equal(t, "/workspace/ws1/src/main.go", resolved)
}

func TestResolvePathRejectsEscape(t *testing.T) {
	_, err := ResolvePath("/workspace/ws1", "../../etc/passwd")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrPolicyViolation))
}

func TestResolvePathRejectsEmpty(t *testing.T) {
	_, err := ResolvePath("/workspace/ws1", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation))
}

func TestResolvePathAllowsRootItself(t *testing.T) {
	resolved, err := ResolvePath("/workspace/ws1", ".")
	require.NoError(t, err)
	assert.Equal(t, "/workspace/ws1", resolved)
}
