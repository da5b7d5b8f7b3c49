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
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"

	"github.com/grailbio/sam2tsv/correspond"
	"github.com/grailbio/sam2tsv/encoding/alignment"
)

var (
	samIn           = flag.String("sam-in", "", "Input SAM or BAM path; \"-\" reads SAM from stdin. Required")
	reference       = flag.String("reference", "", "Reference FASTA path. Required")
	tsvOut          = flag.String("tsv-out", correspond.DefaultOpts.OutPath, "Output TSV path; \"-\" writes to stdout. Paths ending in .gz are gzipped, .bgz are BGZF-compressed")
	referenceIndex  = flag.String("reference-index", "", "Optional .fai index of -reference. When set, contigs are read on demand instead of being loaded into memory")
	generateIndex   = flag.Bool("generate-index", false, "Write the index of -reference (to -reference-index, or -reference + .fai) before converting. The reference must be uncompressed")
	format          = flag.String("format", "auto", "Input format; 'auto', 'sam' and 'bam' supported. 'auto' guesses from the -sam-in extension")
	flagExclude     = flag.Int("flag-exclude", correspond.DefaultOpts.FlagExclude, "Reads with a FLAG bit intersecting this value are skipped")
	ignoreCase      = flag.Bool("ignore-case", correspond.DefaultOpts.IgnoreCase, "Compare bases without regard to case, so soft-masked reference bases can match")
	parallelism     = flag.Int("parallelism", correspond.DefaultOpts.Parallelism, "Number of goroutines extracting correspondences; output order does not depend on it")
	batchSize       = flag.Int("batch-size", correspond.DefaultOpts.BatchSize, "Number of records handed to the extraction goroutines at once when -parallelism > 1")
	maxLoggedErrors = flag.Int("max-logged-errors", correspond.DefaultOpts.MaxLoggedErrors, "Number of malformed records that are logged individually; all of them are counted")
)

func bioSAM2TSVUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s -sam-in {s,b}ampath -reference fapath [OPTIONS]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
}

func usageError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	flag.Usage()
	os.Exit(1)
}

func parseOpts() correspond.Opts {
	if *samIn == "" {
		usageError("-sam-in is required")
	}
	if *reference == "" {
		usageError("-reference is required")
	}
	if flag.NArg() > 0 {
		usageError("unexpected positional arguments %v; please check flag syntax", flag.Args())
	}
	fileType := alignment.ParseFileType(*format)
	if fileType == alignment.Unknown && *format != "auto" {
		usageError("unknown -format %q", *format)
	}
	return correspond.Opts{
		SAMPath:            *samIn,
		ReferencePath:      *reference,
		ReferenceIndexPath: *referenceIndex,
		GenerateIndex:      *generateIndex,
		OutPath:            *tsvOut,
		FileType:           fileType,
		FlagExclude:        *flagExclude,
		IgnoreCase:         *ignoreCase,
		Parallelism:        *parallelism,
		BatchSize:          *batchSize,
		MaxLoggedErrors:    *maxLoggedErrors,
	}
}

func main() {
	flag.Usage = bioSAM2TSVUsage
	shutdown := grail.Init()
	defer shutdown()

	opts := parseOpts()
	ctx := vcontext.Background()
	if _, err := correspond.Run(ctx, opts); err != nil {
		log.Fatalf("bio-sam2tsv: %v", err)
	}
	log.Debug.Printf("exiting")
}
