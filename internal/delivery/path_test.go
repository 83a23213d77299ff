package delivery

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckTrustedPathRejectsTraversal(t *testing.T) {
	err := CheckTrustedPath("/tmp/../etc/passwd", []string{"/tmp"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrPathTraversal))
}

func TestCheckTrustedPathRejectsOutsideRoots(t *testing.T) {
	err := CheckTrustedPath("/etc/passwd", []string{"/tmp"})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUntrustedPath))
}

func TestCheckTrustedPathAcceptsWithinRoot(t *testing.T) {
	dir := t.TempDir()
	err := CheckTrustedPath(dir+"/report.pdf", []string{dir})
	require.NoError(t, err)
}
