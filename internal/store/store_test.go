package store

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kedge-tech/lessonlens/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestSaveAndReadText(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveFile("t1", "input.txt", []byte("0.0s - 4.0s: 同学们好")))

	content, err := s.ReadText("t1", "input.txt")
	require.NoError(t, err)
	assert.Equal(t, "0.0s - 4.0s: 同学们好", content)

	_, err = s.ReadText("t1", "missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	_, ok := s.ReadTextSafe("t1", "missing.txt")
	assert.False(t, ok)
}

func TestSaveAndReadJSON(t *testing.T) {
	s := newTestStore(t)

	in := map[string]any{"subject": "物理", "confidence": 0.6}
	require.NoError(t, s.SaveJSON("t1", "class_info.json", in))

	var out map[string]any
	require.NoError(t, s.ReadJSON("t1", "class_info.json", &out))
	assert.Equal(t, "物理", out["subject"])

	// Indented output is what humans inspect in the task folder.
	raw, err := s.ReadText("t1", "class_info.json")
	require.NoError(t, err)
	assert.True(t, strings.Contains(raw, "\n  "))

	require.NoError(t, s.SaveFile("t1", "broken.json", []byte("{not json")))
	assert.False(t, s.ReadJSONSafe("t1", "broken.json", &out))
}

func TestExistsAndListFiles(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveFile("t1", "chunk_1.json", []byte("[]")))
	require.NoError(t, s.SaveFile("t1", "input.txt", []byte("x")))
	require.NoError(t, s.SaveFile("t1", ".hidden", []byte("x")))

	assert.True(t, s.Exists("t1", "chunk_1.json"))
	assert.False(t, s.Exists("t1", "chunk_2.json"))

	names, err := s.ListFiles("t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"chunk_1.json", "input.txt"}, names)
}

func TestProgressRoundTrip(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveProgress("t1", models.Progress{
		Stage:    models.StagePreprocess,
		Progress: 0.2,
		Message:  "Started",
	}))

	p, err := s.ReadProgress("t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", p.TaskID)
	assert.Equal(t, models.StagePreprocess, p.Stage)
	assert.Equal(t, models.StatusProcessing, p.Status)
	assert.False(t, p.UpdatedAt.IsZero())
	assert.False(t, p.Terminal())

	require.NoError(t, s.SaveProgress("t1", models.Progress{
		Stage:    models.StageError,
		Status:   models.StatusFailed,
		Progress: 1,
		Message:  "chunk 2 failed",
	}))

	p, err = s.ReadProgress("t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, p.Status)
	assert.True(t, p.Terminal())

	_, err = s.ReadProgress("never-submitted")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendLog(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.AppendLog("t1", "task queued"))
	require.NoError(t, s.AppendLog("t1", "task completed"))

	content, err := s.ReadText("t1", "task.log")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "task queued")
	assert.Contains(t, lines[1], "task completed")
	assert.True(t, strings.HasPrefix(lines[0], "["))
}

func TestWriteArchive(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveFile("t1", "input.txt", []byte("hello")))
	require.NoError(t, s.SaveJSON("t1", "plan.json", []string{"report_generation"}))

	var buf bytes.Buffer
	require.NoError(t, s.WriteArchive("t1", &buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	assert.True(t, names["input.txt"])
	assert.True(t, names["plan.json"])
}
