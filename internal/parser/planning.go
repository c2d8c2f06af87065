package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/orgsync/internal/models"
)

const datePattern = `(\d{4})-(\d{2})-(\d{2})(?:\s+([^\s\d>\]+.\-]+))?(?:\s+(\d{1,2}):(\d{2})(?:-(\d{1,2}):(\d{2}))?)?`

var (
	planningEntryRe = regexp.MustCompile(`(SCHEDULED|DEADLINE|CLOSED):\s*(<%%\([^)]*\)>|[<\[][^>\]]*[>\]](?:--[<\[][^>\]]*[>\]])?)`)
	diaryRe         = regexp.MustCompile(`^<%%\((.*)\)>$`)
	rangeRe         = regexp.MustCompile(`^([<\[][^>\]]*[>\]])--([<\[][^>\]]*[>\]])$`)
	pointRe         = regexp.MustCompile(`^([<\[])` + datePattern + `((?:\s+(?:\.\+|\+\+|\+)\d+[hdwmy](?:/\d+[hdwmy])?)?)((?:\s+--?\d+[hdwmy])?)\s*[>\]]$`)
)

// splitPlanning removes the planning line from a headline body and parses it.
// Only the first body line can be a planning line, and it must hold nothing but
// SCHEDULED / DEADLINE / CLOSED entries. A line with an unparseable entry stays
// in the body.
func splitPlanning(body string) (string, *models.Planning) {
	if body == "" {
		return "", nil
	}
	first, rest, _ := strings.Cut(body, "\n")
	planning, ok := parsePlanningLine(first)
	if !ok {
		return body, nil
	}
	return strings.Trim(rest, "\n"), planning
}

func parsePlanningLine(line string) (*models.Planning, bool) {
	matches := planningEntryRe.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 || strings.TrimSpace(planningEntryRe.ReplaceAllString(line, "")) != "" {
		return nil, false
	}
	var planning models.Planning
	for _, m := range matches {
		ts, ok := ParseTimestamp(m[2])
		if !ok {
			return nil, false
		}
		switch m[1] {
		case "SCHEDULED":
			planning.Scheduled = ts
		case "DEADLINE":
			planning.Deadline = ts
		case "CLOSED":
			planning.Closed = ts
		}
	}
	return &planning, true
}

// ParseTimestamp parses a single org timestamp such as "<2023-05-10 Wed 14:30 +1w>",
// "[2023-05-10 Wed]", an in-day range "<2023-05-10 Wed 14:30-15:30>", a range
// "<..>--<..>" or a diary sexp "<%%(expr)>".
func ParseTimestamp(s string) (*models.Timestamp, bool) {
	s = strings.TrimSpace(s)
	if m := diaryRe.FindStringSubmatch(s); m != nil {
		return &models.Timestamp{Kind: models.TimestampDiary, Diary: m[1]}, true
	}
	if m := rangeRe.FindStringSubmatch(s); m != nil {
		start, ok := ParseTimestamp(m[1])
		if !ok {
			return nil, false
		}
		end, ok := ParseTimestamp(m[2])
		if !ok {
			return nil, false
		}
		kind := models.TimestampActiveRange
		if start.Kind == models.TimestampInactive {
			kind = models.TimestampInactiveRange
		}
		return &models.Timestamp{
			Kind:     kind,
			Start:    start.Start,
			End:      end.Start,
			Repeater: start.Repeater,
			Delay:    start.Delay,
		}, true
	}
	m := pointRe.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}
	kind := models.TimestampActive
	if m[1] == "[" {
		kind = models.TimestampInactive
	}
	dt := &models.Datetime{
		Year:    atoi(m[2]),
		Month:   atoi(m[3]),
		Day:     atoi(m[4]),
		Dayname: m[5],
	}
	ts := &models.Timestamp{
		Kind:     kind,
		Start:    dt,
		Repeater: strings.TrimSpace(m[10]),
		Delay:    strings.TrimSpace(m[11]),
	}
	if m[6] != "" {
		hour, minute := atoi(m[6]), atoi(m[7])
		dt.Hour, dt.Minute = &hour, &minute
	}
	if m[8] != "" {
		end := *dt
		hour, minute := atoi(m[8]), atoi(m[9])
		end.Hour, end.Minute = &hour, &minute
		ts.End = &end
		ts.Kind = models.TimestampActiveRange
		if kind == models.TimestampInactive {
			ts.Kind = models.TimestampInactiveRange
		}
	}
	return ts, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
