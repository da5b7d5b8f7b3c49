package fasta

import (
	"context"
	"io"
	"os"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// Load reads the FASTA file at path.  If indexPath is empty, the whole
// reference is decompressed (gzip, bzip2 and zstd are detected from the
// content) and held in memory.  Otherwise indexPath names a samtools .fai
// index for the uncompressed file at path, and sequences are read on demand.
//
// The returned closer must be called once the Fasta is no longer in use.
func Load(ctx context.Context, path, indexPath string) (fa Fasta, closer func() error, err error) {
	if indexPath == "" {
		fa, err = loadAll(ctx, path)
		return fa, func() error { return nil }, err
	}
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, errors.E(err, "open reference", path)
	}
	idx, err := file.Open(ctx, indexPath)
	if err != nil {
		_ = in.Close(ctx)
		return nil, nil, errors.E(err, "open reference index", indexPath)
	}
	fa, err = NewIndexed(in.Reader(ctx), idx.Reader(ctx))
	if e := idx.Close(ctx); e != nil && err == nil {
		err = errors.E(e, "close reference index", indexPath)
	}
	if err != nil {
		_ = in.Close(ctx)
		return nil, nil, err
	}
	log.Debug.Printf("fasta.Load: %s: %d sequences indexed by %s", path, len(fa.SeqNames()), indexPath)
	return fa, func() error { return in.Close(ctx) }, nil
}

func loadAll(ctx context.Context, path string) (fa Fasta, err error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		var in file.File
		if in, err = file.Open(ctx, path); err != nil {
			return nil, errors.E(err, "open reference", path)
		}
		defer file.CloseAndReport(ctx, in, &err)
		r = in.Reader(ctx)
	}
	reader, _ := compress.NewReader(r)
	defer func() {
		if e := reader.Close(); e != nil && err == nil {
			err = e
		}
	}()
	if fa, err = New(reader); err != nil {
		return nil, err
	}
	log.Debug.Printf("fasta.Load: %s: %d sequences loaded", path, len(fa.SeqNames()))
	return fa, nil
}

// WriteIndex generates the .fai index of the uncompressed FASTA file at path
// and stores it at indexPath.
func WriteIndex(ctx context.Context, path, indexPath string) (err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return errors.E(err, "open reference", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	out, err := file.Create(ctx, indexPath)
	if err != nil {
		return errors.E(err, "create reference index", indexPath)
	}
	defer file.CloseAndReport(ctx, out, &err)
	if err = GenerateIndex(out.Writer(ctx), in.Reader(ctx)); err != nil {
		return err
	}
	log.Printf("wrote index of %s to %s", path, indexPath)
	return nil
}
