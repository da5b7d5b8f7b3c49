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
Package correspond turns alignment records into exact per-base
correspondences between a reference and the reads aligned to it.

For each aligned pair of a record whose query and reference positions are
both defined, and whose query base equals the reference base, Extract yields
one Tuple.  Insertions, deletions, skips, clips and mismatches yield nothing.

Writer serializes tuples as headerless tab-separated lines:

  <reference name> <reference pos> <query name> <query pos> <0|1>

Positions are 0-based; the last column is 1 for reverse-strand reads.

Run drives the whole conversion: it loads the reference, streams records from
a SAM or BAM input, and writes the table, optionally fanning extraction out to
several goroutines while keeping the output in input order.
*/
package correspond
