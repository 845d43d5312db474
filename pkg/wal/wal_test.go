package wal

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Seq  int    `json:"seq"`
	Note string `json:"note"`
}

func TestWriteAndReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")

	w, err := NewWAL(path)
	require.NoError(t, err)
	defer w.Close()

	for i := 1; i <= 3; i++ {
		require.NoError(t, w.Write(record{Seq: i, Note: "n"}))
	}

	var got []record
	err = w.ReadAll(func(raw []byte) error {
		var r record
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		got = append(got, r)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 1, got[0].Seq)
	assert.Equal(t, 3, got[2].Seq)
}

// 關檔重開後紀錄仍在，且能接著 append
func TestReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wal.log")

	w, err := NewWAL(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(record{Seq: 1}))
	require.NoError(t, w.Close())

	w2, err := NewWAL(path)
	require.NoError(t, err)
	defer w2.Close()
	require.NoError(t, w2.Write(record{Seq: 2}))

	count := 0
	last := record{}
	err = w2.ReadAll(func(raw []byte) error {
		count++
		return json.Unmarshal(raw, &last)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, last.Seq)
}

func TestReadAllEmptyFile(t *testing.T) {
	w, err := NewWAL(filepath.Join(t.TempDir(), "wal.log"))
	require.NoError(t, err)
	defer w.Close()

	err = w.ReadAll(func([]byte) error {
		t.Fatal("callback must not fire on an empty log")
		return nil
	})
	assert.NoError(t, err)
}
