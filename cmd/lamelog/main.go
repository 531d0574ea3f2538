// Command lamelog is a log-parsing utility for the structured log stream
// lame emits: it reads that stream (JSON lines from the stumpy-backed
// logiface adapter, or the legacy bracketed [LAME][BUNDLE]/[LAME][sched]
// text lines) and reports, per worker, LAME count, switch rate, XSAVE
// rate, and the number of BUNDLE snapshots seen.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"regexp"
	"sort"
)

type workerStats struct {
	lames      int
	switches   int
	xsaveLames int
	snapshots  []string
}

var bundleLineRE = regexp.MustCompile(`^\[LAME\]\[BUNDLE\]\[kthread:(\d+)\]`)
var schedLineRE = regexp.MustCompile(`^\[LAME\]\[sched (ON|OFF)\]\[func:(\w+)\]\[kthread:(\d+)\] uthread \S+ switched:(true|false) xsave:(true|false)`)

func main() {
	path := flag.String("in", "", "path to a log file (defaults to stdin)")
	flag.Parse()

	var r *bufio.Scanner
	if *path == "" {
		r = bufio.NewScanner(os.Stdin)
	} else {
		f, err := os.Open(*path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "lamelog: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		r = bufio.NewScanner(f)
	}

	stats := map[int]*workerStats{}
	get := func(id int) *workerStats {
		s, ok := stats[id]
		if !ok {
			s = &workerStats{}
			stats[id] = s
		}
		return s
	}

	for r.Scan() {
		line := r.Text()
		if line == "" {
			continue
		}
		if m := bundleLineRE.FindStringSubmatch(line); m != nil {
			id := atoiOrZero(m[1])
			s := get(id)
			s.snapshots = append(s.snapshots, line)
			continue
		}
		if m := schedLineRE.FindStringSubmatch(line); m != nil {
			id := atoiOrZero(m[3])
			s := get(id)
			s.lames++
			if m[4] == "true" {
				s.switches++
			}
			if m[5] == "true" {
				s.xsaveLames++
			}
			continue
		}
		// Fall back to JSON: stumpy's default field names are
		// lvl/msg/err plus our category/worker_id fields. The sched
		// category's msg is still a schedLogLine-rendered string, so
		// the same regexp pulls the switched/xsave flags out of it.
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		id := intField(rec["worker_id"])
		category, _ := rec["category"].(string)
		msg, _ := rec["msg"].(string)
		s := get(id)
		switch category {
		case "bundle":
			s.snapshots = append(s.snapshots, msg)
		case "sched":
			s.lames++
			if m := schedLineRE.FindStringSubmatch(msg); m != nil {
				if m[4] == "true" {
					s.switches++
				}
				if m[5] == "true" {
					s.xsaveLames++
				}
			}
		}
	}

	ids := make([]int, 0, len(stats))
	for id := range stats {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		s := stats[id]
		xsaveRate, switchRate := 0.0, 0.0
		if s.lames > 0 {
			xsaveRate = float64(s.xsaveLames) / float64(s.lames)
			switchRate = float64(s.switches) / float64(s.lames)
		}
		fmt.Printf("kthread:%d lames:%d switch_rate:%.4f xsave_rate:%.4f snapshots:%d\n",
			id, s.lames, switchRate, xsaveRate, len(s.snapshots))
	}
}

func atoiOrZero(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return n
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func intField(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case int:
		return x
	default:
		return 0
	}
}
