package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSafeFileKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/about", "example.com_about"},
		{"http://example.com/", "example.com"},
		{"https://example.com/a/b?q=1&r=2", "example.com_a_b_q_1_r_2"},
		{"https://example.com//double//slash", "example.com_double_slash"},
		{"https://example.com:8080/x", "example.com_8080_x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SafeFileKey(tt.in), "input %q", tt.in)
	}
}

func newSinkForTest(t *testing.T) (*FileSystemSink, string) {
	t.Helper()
	dir := t.TempDir()
	sink, err := NewFileSystemSink(dir, zap.NewNop())
	require.NoError(t, err)
	return sink, dir
}

func TestSinkSaveDetailAndSummary(t *testing.T) {
	sink, dir := newSinkForTest(t)

	rec := PageRecord{
		RunID:     "run-1",
		URL:       "https://example.com/about",
		Timestamp: time.Now().UTC(),
		Axe:       &AxeResult{Violations: 2},
	}
	rec.Scores = Score(rec)

	detailPath, err := sink.SaveDetail(rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "detail", "example.com_about.json"), detailPath)

	var loaded PageRecord
	raw, err := os.ReadFile(detailPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &loaded))
	assert.Equal(t, rec.URL, loaded.URL)
	require.NotNil(t, loaded.Axe)
	assert.Equal(t, 2, loaded.Axe.Violations)
	require.NotNil(t, loaded.Scores.Axe)
	assert.Equal(t, 80, *loaded.Scores.Axe)

	sumPath, err := sink.SaveSummary(Summarize(rec))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "summary", "example.com_about.json"), sumPath)

	var sum PageSummary
	raw, err = os.ReadFile(sumPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &sum))
	assert.Equal(t, rec.URL, sum.URL)
}

func TestSinkSaveReport(t *testing.T) {
	sink, dir := newSinkForTest(t)

	path, err := sink.SaveReport("https://example.com/x", []byte(`{"metrics":{}}`))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "reports", "example.com_x-perf.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"metrics":{}}`, string(raw))
}

func TestSinkSaveManifest(t *testing.T) {
	sink, dir := newSinkForTest(t)

	manifest := RunManifest{
		RunID:       "abc123",
		EntryURL:    "https://example.com",
		Pages:       3,
		MeanOverall: 81,
	}
	path, err := sink.SaveManifest(manifest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run-abc123.json"), path)

	var loaded RunManifest
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &loaded))
	assert.Equal(t, manifest.RunID, loaded.RunID)
	assert.Equal(t, 3, loaded.Pages)
	assert.Equal(t, 81, loaded.MeanOverall)
}

func TestSinkAbsentSubScoresOmittedFromJSON(t *testing.T) {
	sink, _ := newSinkForTest(t)

	rec := PageRecord{URL: "https://example.com/partial"}
	rec.Scores = Score(rec)

	path, err := sink.SaveDetail(rec)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "axe_score")
	assert.Contains(t, string(raw), "combined_overall")
}
