package filestorage

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yigit/libris/internal/pkg/apperrors"
)

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["image"][0]
}

func TestLocalStorage_SaveAndDelete(t *testing.T) {
	root := t.TempDir()
	ls, err := NewLocalStorage(root)
	require.NoError(t, err)

	ref, err := ls.SaveFile(fileHeader(t, "cover.PNG", []byte("png-bytes")), "images")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "images/"))
	assert.True(t, strings.HasSuffix(ref, ".png"))

	data, err := os.ReadFile(filepath.Join(root, "images", filepath.Base(ref)))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, ls.DeleteFile(ref))
	require.NoError(t, ls.DeleteFile(ref), "deleting twice is fine")
}

func TestLocalStorage_RejectsNonImages(t *testing.T) {
	ls, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = ls.SaveFile(fileHeader(t, "script.sh", []byte("#!/bin/sh")), "images")
	assert.ErrorIs(t, err, apperrors.ErrValidationFailed)
	assert.Equal(t, "image", apperrors.FieldOf(err))
}

func TestLocalStorage_GetFullPathStaysInRoot(t *testing.T) {
	ls, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(ls.BasePath(), "etc", "passwd"), ls.GetFullPath("../../etc/passwd"))
	assert.Empty(t, ls.GetFullPath(".."))
}
