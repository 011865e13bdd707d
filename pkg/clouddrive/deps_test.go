package clouddrive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloud-drive-tools/cdt/pkg/types"
)

func installFakeBinary(t *testing.T, dir string, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0755))
	return path
}

func TestCheckDependencies(t *testing.T) {
	dir := t.TempDir()
	for _, name := range requiredBinaries {
		installFakeBinary(t, dir, name)
	}
	rclone := installFakeBinary(t, dir, "rclone")
	t.Setenv("PATH", dir)

	assert.NoError(t, CheckDependencies(&types.AppConfig{Rclone: rclone}))
}

func TestCheckDependenciesMissingBinary(t *testing.T) {
	dir := t.TempDir()
	rclone := installFakeBinary(t, dir, "rclone")
	installFakeBinary(t, dir, "encfs")
	installFakeBinary(t, dir, "encfsctl")
	installFakeBinary(t, dir, "fusermount")
	t.Setenv("PATH", dir)

	err := CheckDependencies(&types.AppConfig{Rclone: rclone})
	require.Error(t, err)
	assert.True(t, (&types.ErrDependencyMissing{}).From(err))
	assert.Contains(t, err.Error(), "unionfs-fuse")
}

func TestCheckDependenciesMissingRclone(t *testing.T) {
	dir := t.TempDir()
	for _, name := range requiredBinaries {
		installFakeBinary(t, dir, name)
	}
	t.Setenv("PATH", dir)

	err := CheckDependencies(&types.AppConfig{Rclone: "rclone"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rclone")
}
