package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), time.Hour)
	require.NoError(t, err)
	return s
}

func TestNewRequiresDirectory(t *testing.T) {
	_, err := New("", time.Hour)
	assert.Error(t, err)

	_, err = New("   ", time.Hour)
	assert.Error(t, err)
}

func TestNewDefaultsRetention(t *testing.T) {
	s, err := New(t.TempDir(), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultRetention, s.Retention())
}

func TestPutAndRead(t *testing.T) {
	s := newTestStore(t)

	id, err := s.Put([]byte("png bytes"), "output", "png")
	require.NoError(t, err)
	assert.Contains(t, id, "_output.png")

	data, err := s.Read(id)
	require.NoError(t, err)
	assert.Equal(t, []byte("png bytes"), data)
}

func TestPutEmptyData(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Put(nil, "output", "png")
	assert.Error(t, err)
}

func TestPutUniqueIDs(t *testing.T) {
	s := newTestStore(t)

	a, err := s.Put([]byte("a"), "", "png")
	require.NoError(t, err)
	b, err := s.Put([]byte("b"), "", "png")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestReadUnknownID(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Read("00000000-0000-0000-0000-000000000000.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPathRejectsTraversal(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{
		"../etc/passwd",
		"..%2Fsecret.png",
		"foo/bar.png",
		"",
		"no-extension",
	} {
		_, err := s.Path(id)
		assert.Error(t, err, "id %q", id)
		assert.NotErrorIs(t, err, ErrNotFound, "id %q should be rejected before stat", id)
	}
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	s := newTestStore(t)

	oldID, err := s.Put([]byte("old"), "", "png")
	require.NoError(t, err)
	freshID, err := s.Put([]byte("fresh"), "", "png")
	require.NoError(t, err)

	// Age the first artifact past the retention window.
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(s.Dir(), oldID), past, past))

	deleted, err := s.Sweep(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = s.Read(oldID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Read(freshID)
	assert.NoError(t, err)
}

func TestSweepEmptyStore(t *testing.T) {
	s := newTestStore(t)
	deleted, err := s.Sweep(time.Now())
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
