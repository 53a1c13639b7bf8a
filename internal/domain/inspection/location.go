package inspection

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidLocation is returned for location strings that are not of the
// form "line:col" or "line:col-line:col".
var ErrInvalidLocation = errors.New("invalid alarm location")

// Location is a 1-based range as reported by the remote service.
type Location struct {
	StartLine int
	StartCh   int
	EndLine   int
	EndCh     int
}

// ParseLocation parses "L1:C1-L2:C2". Without an end token the end equals
// the start. A position without a column has column 0.
func ParseLocation(s string) (Location, error) {
	startTok, endTok, hasEnd := strings.Cut(strings.TrimSpace(s), "-")

	startLine, startCh, err := parsePosition(startTok)
	if err != nil {
		return Location{}, fmt.Errorf("%w %q: %w", ErrInvalidLocation, s, err)
	}
	loc := Location{StartLine: startLine, StartCh: startCh, EndLine: startLine, EndCh: startCh}
	if !hasEnd {
		return loc, nil
	}

	loc.EndLine, loc.EndCh, err = parsePosition(endTok)
	if err != nil {
		return Location{}, fmt.Errorf("%w %q: %w", ErrInvalidLocation, s, err)
	}
	return loc, nil
}

func parsePosition(tok string) (line, col int, err error) {
	lineTok, colTok, hasCol := strings.Cut(tok, ":")
	line, err = strconv.Atoi(strings.TrimSpace(lineTok))
	if err != nil {
		return 0, 0, fmt.Errorf("line: %w", err)
	}
	if !hasCol {
		return line, 0, nil
	}
	col, err = strconv.Atoi(strings.TrimSpace(colTok))
	if err != nil {
		return 0, 0, fmt.Errorf("column: %w", err)
	}
	return line, col, nil
}
