package gateway

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gradegrid/domain/grid"
	apperrors "gradegrid/internal/errors"
	"gradegrid/internal/staging"
)

type MockDecoder struct {
	mock.Mock
}

func (m *MockDecoder) Decode(ctx context.Context, path string) (grid.Grid, error) {
	args := m.Called(ctx, path)
	g, _ := args.Get(0).(grid.Grid)
	return g, args.Error(1)
}

type MockEncoder struct {
	mock.Mock
}

func (m *MockEncoder) Encode(ctx context.Context, table *grid.Table, path string) error {
	args := m.Called(ctx, table, path)
	if args.Error(0) == nil {
		if err := os.WriteFile(path, []byte("xlsx"), 0o644); err != nil {
			return err
		}
	}
	return args.Error(0)
}

func algebraGrid(grades ...string) grid.Grid {
	rows := [][]string{
		{"", "", "", "Algebra", "", "", "", "", "TOTAL CREDIT"},
		{"", "", "", "CS101"},
		{},
		{"", "", "", "4"},
		{},
	}
	for i, g := range grades {
		rows = append(rows, []string{"", "S00" + string(rune('1'+i)), "", "", "", "", g})
	}
	return grid.FromStrings(rows)
}

func newTestService(t *testing.T, dec Decoder, enc Encoder) (*Service, *staging.StorageConfig) {
	t.Helper()
	root := t.TempDir()
	cfg := &staging.StorageConfig{
		UploadsDir:   filepath.Join(root, "uploads"),
		DownloadsDir: filepath.Join(root, "downloads"),
	}
	return NewService(staging.NewStager(cfg), dec, enc, Config{PreviewRows: 2}), cfg
}

func dirEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}

func TestProcess_Success(t *testing.T) {
	dec := new(MockDecoder)
	enc := new(MockEncoder)
	svc, cfg := newTestService(t, dec, enc)

	dec.On("Decode", mock.Anything, mock.MatchedBy(func(p string) bool {
		return filepath.Dir(p) == cfg.UploadsDir && strings.HasSuffix(p, ".xlsx")
	})).Return(algebraGrid("A", ""), nil)
	enc.On("Encode", mock.Anything, mock.MatchedBy(func(tbl *grid.Table) bool {
		return tbl.Len() == 1
	}), mock.Anything).Return(nil)

	artifact, err := svc.Process(context.Background(), Upload{Filename: "sem1.xlsx", Body: strings.NewReader("bytes")})
	require.NoError(t, err)

	assert.Equal(t, DefaultDownloadName, artifact.DownloadName)
	assert.Equal(t, DefaultContentType, artifact.ContentType)
	assert.Equal(t, 1, artifact.Summary.Rows)
	assert.FileExists(t, artifact.Path)
	assert.Len(t, dirEntries(t, cfg.UploadsDir), 1)

	require.NoError(t, artifact.Release())
	assert.Empty(t, dirEntries(t, cfg.UploadsDir))
	assert.Empty(t, dirEntries(t, cfg.DownloadsDir))

	dec.AssertExpectations(t)
	enc.AssertExpectations(t)
}

func TestProcess_FailuresLeaveNothingStaged(t *testing.T) {
	tests := []struct {
		name     string
		decoded  grid.Grid
		decErr   error
		encErr   error
		wantCode string
	}{
		{
			name:     "decode failure",
			decErr:   errors.New("zip: not a valid zip file"),
			wantCode: apperrors.CodeDecodeError,
		},
		{
			name:     "reshape failure",
			decoded:  grid.FromStrings([][]string{{"no marker"}, {}, {}, {}, {}}),
			wantCode: apperrors.CodeMalformedGrid,
		},
		{
			name:     "encode failure",
			decoded:  algebraGrid("A"),
			encErr:   errors.New("disk full"),
			wantCode: apperrors.CodeEncodeError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := new(MockDecoder)
			enc := new(MockEncoder)
			svc, cfg := newTestService(t, dec, enc)

			dec.On("Decode", mock.Anything, mock.Anything).Return(tt.decoded, tt.decErr)
			enc.On("Encode", mock.Anything, mock.Anything, mock.Anything).Return(tt.encErr)

			artifact, err := svc.Process(context.Background(), Upload{Filename: "sem1.xlsx", Body: strings.NewReader("bytes")})
			require.Error(t, err)
			assert.Nil(t, artifact)
			assert.Equal(t, tt.wantCode, apperrors.GetCode(err))

			assert.Empty(t, dirEntries(t, cfg.UploadsDir))
			assert.Empty(t, dirEntries(t, cfg.DownloadsDir))
		})
	}
}

func TestProcess_NoBody(t *testing.T) {
	svc, _ := newTestService(t, new(MockDecoder), new(MockEncoder))

	_, err := svc.Process(context.Background(), Upload{Filename: "x.xlsx"})
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetCode(err))
}

func TestPreview(t *testing.T) {
	dec := new(MockDecoder)
	svc, cfg := newTestService(t, dec, new(MockEncoder))

	dec.On("Decode", mock.Anything, mock.Anything).Return(algebraGrid("A", "B", "", "C"), nil)

	preview, err := svc.Preview(context.Background(), Upload{Filename: "sem1.csv", Body: strings.NewReader("bytes")})
	require.NoError(t, err)

	assert.Equal(t, grid.Header, preview.Header)
	assert.Equal(t, [][]string{
		{"S001", "4", "CS101", "Algebra"},
		{"S002", "4", "CS101", "Algebra"},
	}, preview.Rows)
	assert.True(t, preview.Truncated)
	assert.Equal(t, 3, preview.Summary.Rows)
	assert.Equal(t, 3, preview.Summary.Students)

	assert.Empty(t, dirEntries(t, cfg.UploadsDir))
}

func TestReleaseNil(t *testing.T) {
	var a *Artifact
	assert.NoError(t, a.Release())
}
