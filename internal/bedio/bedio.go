// Package bedio parses the chrom.sizes and BED inputs feeding the
// simulation core. The core itself only ever sees the parsed records.
package bedio

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dakristia/modleFork/internal/genome"
)

// ReadChromSizes parses a chrom.sizes file (name and size per line) into
// chromosome records spanning the full chromosome.
func ReadChromSizes(r io.Reader) ([]genome.ChromRecord, error) {
	var out []genome.ChromRecord
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("chrom.sizes line %d: expected at least 2 fields, found %d", lineno, len(fields))
		}
		size, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("chrom.sizes line %d: invalid size %q", lineno, fields[1])
		}
		out = append(out, genome.ChromRecord{Name: fields[0], Start: 0, End: size, Size: size})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ApplySubranges restricts chromosome records to the BED3 intervals read
// from r. Chromosomes without a subrange are left untouched.
func ApplySubranges(chroms []genome.ChromRecord, r io.Reader) ([]genome.ChromRecord, error) {
	ranges := make(map[string][2]uint64)
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if len(fields) < 3 {
			return nil, fmt.Errorf("subrange line %d: expected at least 3 fields, found %d", lineno, len(fields))
		}
		start, err1 := strconv.ParseUint(fields[1], 10, 64)
		end, err2 := strconv.ParseUint(fields[2], 10, 64)
		if err1 != nil || err2 != nil || start >= end {
			return nil, fmt.Errorf("subrange line %d: invalid interval [%s, %s)", lineno, fields[1], fields[2])
		}
		ranges[fields[0]] = [2]uint64{start, end}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	out := make([]genome.ChromRecord, 0, len(chroms))
	for _, rec := range chroms {
		if rng, ok := ranges[rec.Name]; ok {
			rec.Start = rng[0]
			rec.End = rng[1]
		}
		out = append(out, rec)
	}
	return out, nil
}

// ReadBarriers parses extrusion barriers from a BED6 file. The score column
// carries the occupancy probability; the strand column carries the major
// blocking direction. Records keep whatever strand the file declares:
// genome.New rejects anything other than '+' or '-'.
func ReadBarriers(r io.Reader) ([]genome.BarrierRecord, error) {
	var out []genome.BarrierRecord
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") || fields[0] == "track" {
			continue
		}
		if len(fields) < 6 {
			return nil, fmt.Errorf("barrier line %d: expected a BED6 record, found %d fields", lineno, len(fields))
		}
		start, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("barrier line %d: invalid start %q", lineno, fields[1])
		}
		end, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil || end <= start {
			return nil, fmt.Errorf("barrier line %d: invalid end %q", lineno, fields[2])
		}
		score, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, fmt.Errorf("barrier line %d: invalid score %q", lineno, fields[4])
		}
		if len(fields[5]) != 1 {
			return nil, fmt.Errorf("barrier line %d: invalid strand %q", lineno, fields[5])
		}
		out = append(out, genome.BarrierRecord{
			Chrom:     fields[0],
			Pos:       (start + end) / 2,
			Strand:    fields[5][0],
			Occupancy: score,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadFeatures parses a BED3+ file into feature intervals grouped by
// chromosome name.
func ReadFeatures(r io.Reader) (map[string][]genome.Interval, error) {
	out := make(map[string][]genome.Interval)
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") || fields[0] == "track" {
			continue
		}
		if len(fields) < 3 {
			return nil, fmt.Errorf("feature line %d: expected at least 3 fields, found %d", lineno, len(fields))
		}
		start, err1 := strconv.ParseUint(fields[1], 10, 64)
		end, err2 := strconv.ParseUint(fields[2], 10, 64)
		if err1 != nil || err2 != nil || start >= end {
			return nil, fmt.Errorf("feature line %d: invalid interval [%s, %s)", lineno, fields[1], fields[2])
		}
		feat := genome.Interval{Start: start, End: end}
		if len(fields) > 3 {
			feat.Name = fields[3]
		}
		out[fields[0]] = append(out[fields[0]], feat)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
