// internal/storage/file_storage_test.go
package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorageSaveLoadJSON(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	type profile struct {
		Name   string `json:"name"`
		Region string `json:"region"`
	}

	require.NoError(t, fs.SaveJSONFile("profiles", "u1.json", profile{Name: "ぐだ子", Region: "JP"}))

	var got profile
	require.NoError(t, fs.LoadJSONFile("profiles", "u1.json", &got))
	assert.Equal(t, "ぐだ子", got.Name)
	assert.Equal(t, "JP", got.Region)
}

func TestFileStorageListFilesByExtension(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, fs.SaveTextFile("scripts", "0100000110.txt", []byte("；test")))
	require.NoError(t, fs.SaveTextFile("scripts", "0100000120.txt", []byte("；test")))
	require.NoError(t, fs.SaveTextFile("scripts", "notes.md", []byte("x")))

	files, err := fs.ListFiles("scripts", ".txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"0100000110.txt", "0100000120.txt"}, files)
}

func TestFileStorageDeleteMissingFile(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, fs.DeleteFile("scripts", "nope.txt"))
	assert.False(t, fs.FileExists("scripts", "nope.txt"))
}
