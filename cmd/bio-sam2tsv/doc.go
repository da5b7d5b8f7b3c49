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

/*
bio-sam2tsv lists, for every aligned read base that matches the reference,
the reference position and the read position it is aligned to.  The input is
a SAM or BAM file and the FASTA reference it was aligned against.

Each output line has five tab-separated columns: reference contig, 0-based
reference position, read name, 0-based position in the read sequence as
stored in the record, and 1 if the read is reverse-complemented, else 0.
Inserted, deleted, clipped and mismatched bases are omitted.  There is no
header line.

Malformed records are skipped and counted.  A record aligned to a contig
that is missing from the reference stops the run.

Sample usage:
bio-sam2tsv \
    -sam-in my.bam \
    -reference ref.fa \
    -tsv-out my.tsv.gz
*/
package main
