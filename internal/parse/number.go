package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// 101, 1203: floor digits followed by a two-digit position.
	floorSeqRe = regexp.MustCompile(`^(\d{1,3})(\d{2})$`)
	// A-01, B 2, C03: section letters followed by a position.
	sectionSeqRe = regexp.MustCompile(`(?i)^([a-z]+)\s*[-#]?\s*(\d+)$`)
)

// ParsedNumber holds the structured data parsed from a locker number.
type ParsedNumber struct {
	Section string
	Floor   int
	Seq     int
}

// Location returns the default location label implied by the number.
func (p ParsedNumber) Location() string {
	if p.Section != "" {
		return "Section " + p.Section
	}
	return fmt.Sprintf("Floor %d", p.Floor)
}

// ParseNumber extracts floor or section and position from a locker number.
func ParseNumber(raw string) (ParsedNumber, error) {
	s := strings.TrimSpace(raw)
	s = regexp.MustCompile(`\s+`).ReplaceAllString(s, " ")

	if m := floorSeqRe.FindStringSubmatch(s); m != nil {
		floor, _ := strconv.Atoi(m[1])
		seq, _ := strconv.Atoi(m[2])
		if floor > 0 {
			return ParsedNumber{Floor: floor, Seq: seq}, nil
		}
	}

	if m := sectionSeqRe.FindStringSubmatch(s); m != nil {
		seq, err := strconv.Atoi(m[2])
		if err == nil {
			return ParsedNumber{Section: strings.ToUpper(m[1]), Seq: seq}, nil
		}
	}

	return ParsedNumber{}, fmt.Errorf("unable to parse locker number: %q", raw)
}
