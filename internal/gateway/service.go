// Package gateway runs one uploaded grade sheet through staging, decoding,
// reshaping and encoding, and hands back the staged result for download.
package gateway

import (
	"context"
	"io"
	"log"
	"time"

	"gradegrid/domain/grid"
	apperrors "gradegrid/internal/errors"
	"gradegrid/internal/reshape"
	"gradegrid/internal/staging"
)

// Defaults for the download handed back to the client.
const (
	DefaultDownloadName = "transformed_data.xls"
	DefaultContentType  = "application/vnd.ms-excel"
	DefaultPreviewRows  = 25
)

// Decoder reads the first sheet of a staged workbook
type Decoder interface {
	Decode(ctx context.Context, path string) (grid.Grid, error)
}

// Encoder writes a transformed table as a workbook at path
type Encoder interface {
	Encode(ctx context.Context, table *grid.Table, path string) error
}

// Upload is one file received from a client
type Upload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// Config controls what the gateway hands back
type Config struct {
	DownloadName string
	ContentType  string
	PreviewRows  int
}

func (c Config) withDefaults() Config {
	if c.DownloadName == "" {
		c.DownloadName = DefaultDownloadName
	}
	if c.ContentType == "" {
		c.ContentType = DefaultContentType
	}
	if c.PreviewRows <= 0 {
		c.PreviewRows = DefaultPreviewRows
	}
	return c
}

// Artifact is a staged, transformed workbook ready to stream. Release must
// be called once the response has been written.
type Artifact struct {
	Path         string
	DownloadName string
	ContentType  string
	Summary      reshape.Summary

	arena *staging.Arena
}

// Release deletes the staged upload and output
func (a *Artifact) Release() error {
	if a == nil || a.arena == nil {
		return nil
	}
	return a.arena.Cleanup()
}

// Preview is the first rows of a transformed table plus its summary
type Preview struct {
	Summary   reshape.Summary `json:"summary"`
	Header    []string        `json:"header"`
	Rows      [][]string      `json:"rows"`
	Truncated bool            `json:"truncated"`
}

// Service is the upload/download pipeline
type Service struct {
	stager  *staging.Stager
	decoder Decoder
	encoder Encoder
	config  Config
}

// NewService wires the pipeline
func NewService(stager *staging.Stager, decoder Decoder, encoder Encoder, config Config) *Service {
	return &Service{
		stager:  stager,
		decoder: decoder,
		encoder: encoder,
		config:  config.withDefaults(),
	}
}

// Process stages, decodes, reshapes and encodes the upload. On error
// nothing is left on disk. On success the caller owns the Artifact and must
// Release it.
func (s *Service) Process(ctx context.Context, up Upload) (artifact *Artifact, err error) {
	start := time.Now()

	arena, err := s.stager.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if cleanupErr := arena.Cleanup(); cleanupErr != nil {
				log.Printf("[Gateway] %s cleanup after failure: %v", arena.Key(), cleanupErr)
			}
		}
	}()

	table, err := s.transform(ctx, arena, up)
	if err != nil {
		return nil, err
	}

	if err := s.encoder.Encode(ctx, table, arena.OutputPath()); err != nil {
		return nil, apperrors.Wrap(apperrors.WithCode(apperrors.CodeEncodeError, err), "failed to encode transformed table")
	}

	summary := reshape.Summarize(table)
	log.Printf("[Gateway] %s transformed %q in %v: %d rows, %d students, %d courses",
		arena.Key(), up.Filename, time.Since(start).Round(time.Millisecond), summary.Rows, summary.Students, summary.Courses)

	return &Artifact{
		Path:         arena.OutputPath(),
		DownloadName: s.config.DownloadName,
		ContentType:  s.config.ContentType,
		Summary:      summary,
		arena:        arena,
	}, nil
}

// Preview runs the pipeline up to the reshape and returns the leading rows.
// Nothing is encoded and the staged upload is removed before returning.
func (s *Service) Preview(ctx context.Context, up Upload) (*Preview, error) {
	arena, err := s.stager.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cleanupErr := arena.Cleanup(); cleanupErr != nil {
			log.Printf("[Gateway] %s preview cleanup: %v", arena.Key(), cleanupErr)
		}
	}()

	table, err := s.transform(ctx, arena, up)
	if err != nil {
		return nil, err
	}

	rows := table.Grid().Strings()[1:]
	preview := &Preview{
		Summary: reshape.Summarize(table),
		Header:  append([]string(nil), grid.Header...),
		Rows:    rows,
	}
	if len(rows) > s.config.PreviewRows {
		preview.Rows = rows[:s.config.PreviewRows]
		preview.Truncated = true
	}
	return preview, nil
}

func (s *Service) transform(ctx context.Context, arena *staging.Arena, up Upload) (*grid.Table, error) {
	if up.Body == nil {
		return nil, apperrors.InvalidInput("no file uploaded")
	}

	path, err := arena.StageUpload(up.Body, up.Filename)
	if err != nil {
		return nil, err
	}

	g, err := s.decoder.Decode(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, apperrors.Wrap(apperrors.WithCode(apperrors.CodeDecodeError, err), "failed to decode upload")
	}

	table, err := reshape.Reshape(g)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to reshape grade sheet")
	}
	return table, nil
}
