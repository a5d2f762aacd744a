package kang

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meigma/kang/core/testutil"
)

const testHeader = `{"__metadata__":{"format":"pt"},` +
	`"b":{"dtype":"F16","shape":[4],"data_offsets":[400,408]},` +
	`"a":{"dtype":"F32","shape":[10,10],"data_offsets":[0,400]}}`

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func writeSource(t *testing.T, path string, seed int64) []byte {
	t.Helper()
	data := testutil.SourceBytes([]byte(testHeader), testutil.Random(5000, seed))
	writeFile(t, path, data)
	return data
}
