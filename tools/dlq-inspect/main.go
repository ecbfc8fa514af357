// Command dlq-inspect prints every poisoned train recorded in one or more
// dead-letter files, following the teacher's tools/archive-manager
// convention of small standalone maintenance binaries.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/data-tracks/DataTracks/internal/deadletter"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s <engine-N.dlq> [...]\n", os.Args[0])
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	for _, path := range flag.Args() {
		records, err := deadletter.ReadAll(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			os.Exit(1)
		}
		for i, r := range records {
			fmt.Printf("%s#%d reason=%q origin_line=%d wagons=%d\n", path, i, r.Reason, r.Train.OriginLine, r.Train.Len())
		}
	}
}
