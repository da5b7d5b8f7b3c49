// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package correspond

import (
	"context"
	"hash"
	"io"
	"os"
	"strings"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/bgzf"
	"github.com/klauspost/compress/gzip"
)

// Writer writes tuples as tab-separated lines.  Thread compatible.
type Writer struct {
	tsv     *tsv.Writer
	digest  hash.Hash64
	n       int64
	closers []func() error
}

// NewWriter creates a Writer on w.  The caller must call Flush (or Close) once
// done.
func NewWriter(w io.Writer) *Writer {
	h := seahash.New()
	return &Writer{tsv: tsv.NewWriter(io.MultiWriter(w, h)), digest: h}
}

// Create creates a Writer for path.  "-" and "" denote standard output.  A
// path ending in ".bgz" is BGZF-compressed, one ending in ".gz" is gzipped,
// anything else is plain text.  parallelism is the number of BGZF compression
// goroutines.
func Create(ctx context.Context, path string, parallelism int) (*Writer, error) {
	if path == "" || path == "-" {
		return NewWriter(os.Stdout), nil
	}
	out, err := file.Create(ctx, path)
	if err != nil {
		return nil, errors.E(err, "create", path)
	}
	var (
		dst     = out.Writer(ctx)
		closers = []func() error{func() error { return out.Close(ctx) }}
	)
	switch {
	case strings.HasSuffix(path, ".bgz"):
		if parallelism < 1 {
			parallelism = 1
		}
		bw := bgzf.NewWriter(dst, parallelism)
		closers = append(closers, bw.Close)
		dst = bw
	case strings.HasSuffix(path, ".gz"):
		zw := gzip.NewWriter(dst)
		closers = append(closers, zw.Close)
		dst = zw
	}
	w := NewWriter(dst)
	w.closers = closers
	return w, nil
}

// Write writes one line for t.
func (w *Writer) Write(t Tuple) error {
	w.tsv.WriteString(t.RefName)
	w.tsv.WriteInt64(int64(t.RefPos))
	w.tsv.WriteString(t.QueryName)
	w.tsv.WriteInt64(int64(t.QueryPos))
	if t.Reverse {
		w.tsv.WriteInt64(1)
	} else {
		w.tsv.WriteInt64(0)
	}
	w.n++
	return w.tsv.EndLine()
}

// Count returns the number of tuples written.
func (w *Writer) Count() int64 { return w.n }

// Flush writes buffered lines to the underlying writer.
func (w *Writer) Flush() error { return w.tsv.Flush() }

// Digest returns the seahash of the uncompressed bytes flushed so far.  Equal
// inputs produce equal digests.
func (w *Writer) Digest() uint64 { return w.digest.Sum64() }

// Close flushes the Writer and closes whatever Create opened.  The first
// error is returned.
func (w *Writer) Close() error {
	err := w.Flush()
	for i := len(w.closers) - 1; i >= 0; i-- {
		if e := w.closers[i](); e != nil && err == nil {
			err = e
		}
	}
	w.closers = nil
	return err
}
