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
	"fmt"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"golang.org/x/sync/errgroup"

	"github.com/grailbio/sam2tsv/encoding/alignment"
	"github.com/grailbio/sam2tsv/encoding/fasta"
)

// Opts holds the commandline options of bio-sam2tsv.
type Opts struct {
	// SAMPath is the SAM or BAM input; "-" reads standard input.
	SAMPath string
	// ReferencePath is the FASTA reference.
	ReferencePath string
	// ReferenceIndexPath, if set, is a .fai index of ReferencePath.  The
	// reference is then read on demand instead of being loaded into memory.
	ReferenceIndexPath string
	// GenerateIndex writes the index of ReferencePath before the run, to
	// ReferenceIndexPath or, if that is empty, to ReferencePath + ".fai".
	GenerateIndex bool
	// OutPath is the TSV output; "-" writes standard output.
	OutPath string
	// FileType forces the encoding of SAMPath.  Unknown guesses it from the
	// path.
	FileType alignment.FileType
	// FlagExclude drops records whose FLAG intersects this value.
	FlagExclude int
	// IgnoreCase compares bases without regard to case.
	IgnoreCase bool
	// Parallelism is the number of extraction goroutines.  Values below 2
	// process one record at a time.
	Parallelism int
	// BatchSize is the number of records handed to the extraction goroutines
	// at once when Parallelism > 1.
	BatchSize int
	// MaxLoggedErrors bounds the number of malformed records logged
	// individually.
	MaxLoggedErrors int
}

// DefaultOpts is the default Opts.
var DefaultOpts = Opts{
	OutPath:         "-",
	Parallelism:     1,
	BatchSize:       4096,
	MaxLoggedErrors: 10,
}

// Stats summarizes a conversion.
type Stats struct {
	// Source holds the tallies of the alignment input.
	Source alignment.Counts
	// Records is the number of records passed to Extract.
	Records int
	// Truncated is the number of records whose aligned pairs ran outside
	// their query sequence or contig.  Their remaining pairs were dropped.
	Truncated int
	// Tuples is the number of lines written.
	Tuples int64
	// Digest is the seahash of the uncompressed output.
	Digest uint64
}

// Skipped returns the number of malformed records, whether they failed to
// parse or failed during extraction.
func (s Stats) Skipped() int { return s.Source.Skipped + s.Truncated }

// String implements fmt.Stringer.
func (s Stats) String() string {
	return fmt.Sprintf("%v; %d records extracted, %d truncated, %d skipped in total; %d tuples written (seahash %016x)",
		s.Source, s.Records, s.Truncated, s.Skipped(), s.Tuples, s.Digest)
}

// Run converts opts.SAMPath into opts.OutPath.
func Run(ctx context.Context, opts Opts) (stats Stats, err error) {
	if opts.GenerateIndex {
		if opts.ReferenceIndexPath == "" {
			opts.ReferenceIndexPath = opts.ReferencePath + ".fai"
		}
		if err = fasta.WriteIndex(ctx, opts.ReferencePath, opts.ReferenceIndexPath); err != nil {
			return stats, err
		}
	}
	ref, closeRef, err := fasta.Load(ctx, opts.ReferencePath, opts.ReferenceIndexPath)
	if err != nil {
		return stats, err
	}
	defer func() {
		if e := closeRef(); e != nil && err == nil {
			err = e
		}
	}()
	log.Printf("loaded reference %s: %d contigs", opts.ReferencePath, len(ref.SeqNames()))

	src, err := alignment.Open(ctx, opts.SAMPath, alignment.Opts{
		FileType:        opts.FileType,
		FlagExclude:     opts.FlagExclude,
		MaxLoggedErrors: opts.MaxLoggedErrors,
	})
	if err != nil {
		return stats, err
	}
	defer func() {
		if e := src.Close(); e != nil && err == nil {
			err = e
		}
	}()

	w, err := Create(ctx, opts.OutPath, opts.Parallelism)
	if err != nil {
		return stats, err
	}
	stats, err = Convert(ctx, src, ref, w, opts)
	if e := w.Close(); e != nil && err == nil {
		err = e
	}
	stats.Digest = w.Digest()
	if err == nil {
		log.Printf("%s: %v", opts.SAMPath, stats)
	}
	return stats, err
}

// Convert writes the tuples of every record of src to w, in src order, and
// flushes w.  Malformed records are counted and skipped; an unknown contig or
// a write error stops the conversion.
func Convert(ctx context.Context, src alignment.Source, ref fasta.Fasta, w *Writer, opts Opts) (Stats, error) {
	c := converter{ref: ref, opts: opts, extractOpts: ExtractOpts{IgnoreCase: opts.IgnoreCase}}
	var err error
	if opts.Parallelism > 1 {
		err = c.runParallel(ctx, src, w)
	} else {
		err = c.runSequential(ctx, src, w)
	}
	if e := w.Flush(); e != nil && err == nil {
		err = e
	}
	c.stats.Source = src.Counts()
	c.stats.Tuples = w.Count()
	c.stats.Digest = w.Digest()
	return c.stats, err
}

type converter struct {
	ref         fasta.Fasta
	opts        Opts
	extractOpts ExtractOpts
	stats       Stats
	logged      int
}

// truncated accounts for a record whose extraction stopped early.
func (c *converter) truncated(err *alignment.MalformedAlignmentError) {
	c.stats.Truncated++
	if c.logged < c.opts.MaxLoggedErrors {
		log.Error.Printf("skipping rest of record: %v", err)
	}
	c.logged++
}

// finish classifies the error of a finished Iterator.  Only fatal errors are
// returned.
func (c *converter) finish(err error) error {
	c.stats.Records++
	if err == nil {
		return nil
	}
	if merr, ok := err.(*alignment.MalformedAlignmentError); ok {
		c.truncated(merr)
		return nil
	}
	return err
}

func (c *converter) runSequential(ctx context.Context, src alignment.Source, w *Writer) error {
	for src.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		it := Extract(src.Record(), c.ref, c.extractOpts)
		for it.Scan() {
			if err := w.Write(it.Tuple()); err != nil {
				return err
			}
		}
		if err := c.finish(it.Err()); err != nil {
			return err
		}
	}
	return src.Err()
}

// extraction is the complete output of one record.
type extraction struct {
	tuples []Tuple
	err    error
}

func (c *converter) runParallel(ctx context.Context, src alignment.Source, w *Writer) error {
	var (
		g, gctx   = errgroup.WithContext(ctx)
		batches   = make(chan []*alignment.Record, 1)
		batchSize = c.opts.BatchSize
	)
	if batchSize < 1 {
		batchSize = 1
	}
	g.Go(func() error {
		defer close(batches)
		send := func(recs []*alignment.Record) error {
			select {
			case batches <- recs:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		recs := make([]*alignment.Record, 0, batchSize)
		for src.Scan() {
			recs = append(recs, src.Record())
			if len(recs) >= batchSize {
				if err := send(recs); err != nil {
					return err
				}
				recs = make([]*alignment.Record, 0, batchSize)
			}
		}
		if err := src.Err(); err != nil {
			return err
		}
		if len(recs) > 0 {
			return send(recs)
		}
		return nil
	})
	g.Go(func() error {
		parallelism := c.opts.Parallelism
		for recs := range batches {
			results := make([]extraction, len(recs))
			_ = traverse.Each(parallelism, func(jobIdx int) error {
				startIdx := (jobIdx * len(recs)) / parallelism
				endIdx := ((jobIdx + 1) * len(recs)) / parallelism
				for i := startIdx; i < endIdx; i++ {
					it := Extract(recs[i], c.ref, c.extractOpts)
					for it.Scan() {
						results[i].tuples = append(results[i].tuples, it.Tuple())
					}
					results[i].err = it.Err()
				}
				return nil
			})
			for _, res := range results {
				for _, t := range res.tuples {
					if err := w.Write(t); err != nil {
						return err
					}
				}
				if err := c.finish(res.err); err != nil {
					return err
				}
			}
			if err := gctx.Err(); err != nil {
				return err
			}
		}
		return nil
	})
	return g.Wait()
}
