// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildlog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/bureau/lib/outputgroup"
)

// Writer persists grouping-pipeline batches as compressed log segments
// under dir, one file per batch. Segments are named by the BLAKE3 digest
// of their rendered content, so two batches with identical text collapse
// onto the same file instead of colliding — no central sequence counter
// is needed even when several groups flush concurrently.
//
// Writer implements [outputgroup.Downstream]. It is safe for concurrent
// use: each Batch call renders and writes independently, and the shared
// zstd encoder is safe for concurrent use per its own documentation.
type Writer struct {
	dir     string
	logger  *slog.Logger
	encoder *zstd.Encoder

	segmentCount atomic.Int64
	forwardCount atomic.Int64
}

// NewWriter creates a Writer that stores segments under dir, creating it
// if necessary.
func NewWriter(dir string, logger *slog.Logger) (*Writer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating build log directory: %w", err)
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("initializing zstd encoder: %w", err)
	}
	return &Writer{dir: dir, logger: logger, encoder: encoder}, nil
}

// Close releases the writer's zstd encoder.
func (w *Writer) Close() error {
	return w.encoder.Close()
}

// SegmentCount returns how many batches have been persisted so far.
func (w *Writer) SegmentCount() int64 { return w.segmentCount.Load() }

// Forward handles a single event the pipeline did not buffer into any
// group. The file logger only persists whole batches; a lone forwarded
// event is logged instead of written as its own segment.
func (w *Writer) Forward(event outputgroup.Event) {
	w.forwardCount.Add(1)
	if line, ok := renderLine(event); ok && line != "" {
		w.logger.Debug("build output", "message", line)
	}
}

// Batch renders events to plain text, compresses the result, and writes it
// to a content-addressed segment file under the writer's directory.
func (w *Writer) Batch(events []outputgroup.Event) {
	content := renderBatch(events)
	if len(content) == 0 {
		return
	}

	digest := blake3.Sum256(content)
	name := fmt.Sprintf("segment-%x.log.zst", digest)
	finalPath := filepath.Join(w.dir, name)

	if _, err := os.Stat(finalPath); err == nil {
		// Identical content already persisted under this name.
		w.segmentCount.Add(1)
		return
	}

	compressed := w.encoder.EncodeAll(content, nil)

	tmpPath := finalPath + ".tmp"
	if err := os.WriteFile(tmpPath, compressed, 0o644); err != nil {
		w.logger.Warn("writing build log segment", "path", tmpPath, "error", err)
		return
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		w.logger.Warn("renaming build log segment into place", "path", finalPath, "error", err)
		os.Remove(tmpPath)
		return
	}

	w.segmentCount.Add(1)
}

// renderBatch joins every renderable line in events with newlines. Progress
// bookkeeping events (start/complete/progress) contribute nothing — their
// content is already represented by the synthetic header line the
// grouping pipeline prepends.
func renderBatch(events []outputgroup.Event) []byte {
	var lines []string
	for _, event := range events {
		if line, ok := renderLine(event); ok {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}

func renderLine(event outputgroup.Event) (string, bool) {
	switch e := event.(type) {
	case outputgroup.LogEvent:
		return e.Message, true
	case outputgroup.StyledTextOutputEvent:
		var text strings.Builder
		for _, span := range e.Spans {
			text.WriteString(span.Text)
		}
		return text.String(), true
	default:
		return "", false
	}
}
