// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// pdb is a standalone command line driver for the BM25 index: it builds a
// single-file index from newline-delimited JSON, then runs match queries
// and pushed-down group-by aggregates against it directly (no host
// planner or custom-scan callback involved), to exercise the index and
// exec packages end to end outside of a database process.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/paradedb/paradedb-go/config"
)

var (
	dashv           bool
	noCustomScan    bool
	noFastFieldExec bool
	workMemMB       int64
)

func init() {
	flag.BoolVar(&dashv, "v", false, "verbose logging")
	flag.BoolVar(&noCustomScan, "no-custom-scan", false, "disable the custom scan exec path entirely (GUC enable_custom_scan=off)")
	flag.BoolVar(&noFastFieldExec, "no-fastfield-exec", false, "disable fast-field-only exec methods, always fetching rows from the heap")
	flag.Int64Var(&workMemMB, "work-mem", 64, "work_mem budget in MiB for sort/merge steps")
}

// settings builds this run's config.Settings from the parsed flags,
// mirroring how a host database turns session GUCs into the planner
// bridge's view of what it may do.
func settings() config.Settings {
	return config.New(
		config.WithCustomScan(!noCustomScan),
		config.WithFastFieldExec(!noFastFieldExec),
		config.WithMixedFastFieldExec(!noFastFieldExec),
		config.WithWorkMem(workMemMB<<20),
	)
}

func exitf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, f+"\n", args...)
	os.Exit(1)
}

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}
	cfg := settings()

	switch args[0] {
	case "create":
		if len(args) != 4 {
			exitf("usage: create <index-file> <schema.json> <docs.ndjson>")
		}
		create(args[1], args[2], args[3])
	case "search":
		if len(args) != 4 {
			exitf("usage: search <index-file> <field> <query-text>")
		}
		search(cfg, args[1], args[2], args[3])
	case "aggregate":
		if len(args) != 5 {
			exitf("usage: aggregate <index-file> <group-field> <agg-field> <count|sum|min|max|avg|sumsq>")
		}
		aggregate(args[1], args[2], args[3], args[4])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "    %s create <index-file> <schema.json> <docs.ndjson>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "        build a new index from newline-delimited JSON documents\n")
	fmt.Fprintf(os.Stderr, "    %s search <index-file> <field> <query-text>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "        run a match query against field and print the scored hits\n")
	fmt.Fprintf(os.Stderr, "    %s aggregate <index-file> <group-field> <agg-field> <op>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "        group every document by group-field and fold agg-field with op\n")
}
