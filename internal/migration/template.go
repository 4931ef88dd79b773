package migration

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// NumberKind is the ordering scheme of migration identifiers
type NumberKind int

const (
	Counter NumberKind = iota
	EpochSeconds
	EpochMillis
	EpochMicros
	EpochNanos
	DateTime
	SemVer
)

var kindNames = map[NumberKind]string{
	Counter:      "counter",
	EpochSeconds: "epoch seconds",
	EpochMillis:  "epoch milliseconds",
	EpochMicros:  "epoch microseconds",
	EpochNanos:   "epoch nanoseconds",
	DateTime:     "datetime",
	SemVer:       "semver",
}

func (k NumberKind) String() string {
	return kindNames[k]
}

// ErrUnrecognizedName is returned for migration paths that follow no known convention
var ErrUnrecognizedName = errors.New("unrecognized migration name")

// Template is the naming convention of a migrations directory, learned from
// the path of its newest migration.
type Template struct {
	Prefix string
	Kind   NumberKind
	// Last is the identifier number of the migration the template was read from
	Last string
	// Layout is the time layout of DateTime identifiers
	Layout    string
	Separator string
	// UpDown is ".up" or ".do" when up scripts carry a marker
	UpDown string
	// Dir is set for the <ident>/up.sql layout
	Dir bool
}

// DefaultTemplate is <epoch seconds>_<name>.sql
func DefaultTemplate() Template {
	return Template{Kind: EpochSeconds, Separator: "_"}
}

var (
	identRe  = regexp.MustCompile(`^([A-Za-z]*)(\d(?:[\d.\-T]*\d)?)([_.\-]+)(.*)$`)
	fileRe   = regexp.MustCompile(`^([^/]+?)(\.up|\.do)?\.sql$`)
	dirRe    = regexp.MustCompile(`^([^/]+)/up\.sql$`)
	semverRe = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)$`)
	digitsRe = regexp.MustCompile(`^\d+$`)
)

var dateLayouts = []string{
	"20060102150405",
	"200601021504",
	"20060102",
	"2006-01-02-15-04-05",
	"2006-01-02T150405",
	"2006-01-02",
}

var (
	minDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	maxDate = time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC)
)

// ParseTemplate learns a template from a migration path relative to the
// migrations directory, using forward slashes.
func ParseTemplate(rel string) (Template, error) {
	var t Template
	ident := ""
	if m := dirRe.FindStringSubmatch(rel); m != nil {
		t.Dir = true
		ident = m[1]
	} else if m := fileRe.FindStringSubmatch(rel); m != nil {
		ident = m[1]
		t.UpDown = m[2]
	} else {
		return Template{}, fmt.Errorf("%w: %s", ErrUnrecognizedName, rel)
	}

	m := identRe.FindStringSubmatch(ident)
	if m == nil {
		return Template{}, fmt.Errorf("%w: %s", ErrUnrecognizedName, rel)
	}
	t.Prefix, t.Last, t.Separator = m[1], m[2], m[3]

	kind, layout, ok := classify(t.Last)
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrUnrecognizedName, rel)
	}
	t.Kind, t.Layout = kind, layout
	return t, nil
}

func classify(number string) (NumberKind, string, bool) {
	if semverRe.MatchString(number) {
		return SemVer, "", true
	}
	for _, layout := range dateLayouts {
		if len(layout) != len(number) {
			continue
		}
		ts, err := time.Parse(layout, number)
		if err == nil && inRange(ts) {
			return DateTime, layout, true
		}
	}
	if !digitsRe.MatchString(number) {
		return 0, "", false
	}
	if n, err := strconv.ParseInt(number, 10, 64); err == nil && number[0] != '0' {
		for _, kind := range []NumberKind{EpochSeconds, EpochMillis, EpochMicros, EpochNanos} {
			if inRange(epochTime(kind, n)) && len(number) == len(strconv.FormatInt(epoch(kind, maxDate), 10)) {
				return kind, "", true
			}
		}
	}
	return Counter, "", true
}

func inRange(ts time.Time) bool {
	return !ts.Before(minDate) && ts.Before(maxDate)
}

func epoch(kind NumberKind, ts time.Time) int64 {
	switch kind {
	case EpochMillis:
		return ts.UnixMilli()
	case EpochMicros:
		return ts.UnixMicro()
	case EpochNanos:
		return ts.UnixNano()
	default:
		return ts.Unix()
	}
}

func epochTime(kind NumberKind, n int64) time.Time {
	switch kind {
	case EpochMillis:
		return time.UnixMilli(n).UTC()
	case EpochMicros:
		return time.UnixMicro(n).UTC()
	case EpochNanos:
		return time.Unix(0, n).UTC()
	default:
		return time.Unix(n, 0).UTC()
	}
}

// Paths are migration file paths relative to the migrations directory
type Paths struct {
	Up   string
	Down string
}

// Resolve returns the paths of a new migration called name that sorts after
// the migration the template was learned from. Down is empty unless
// withDown is set.
func (t Template) Resolve(name string, now time.Time, withDown bool) Paths {
	ident := t.Prefix + t.next(now) + t.Separator + slug(name)
	if t.Dir {
		p := Paths{Up: ident + "/up.sql"}
		if withDown {
			p.Down = ident + "/down.sql"
		}
		return p
	}
	if !withDown {
		return Paths{Up: ident + ".sql"}
	}
	up, down := ".up", ".down"
	if t.UpDown == ".do" {
		up, down = ".do", ".undo"
	}
	return Paths{Up: ident + up + ".sql", Down: ident + down + ".sql"}
}

func (t Template) next(now time.Time) string {
	switch t.Kind {
	case SemVer:
		m := semverRe.FindStringSubmatch(t.Last)
		major, _ := strconv.Atoi(m[1])
		minor, _ := strconv.Atoi(m[2])
		return fmt.Sprintf("%d.%d.0", major, minor+1)
	case DateTime:
		next := now.UTC().Format(t.Layout)
		if next > t.Last {
			return next
		}
		last, _ := time.Parse(t.Layout, t.Last)
		for _, step := range []time.Duration{time.Second, time.Minute, time.Hour, 24 * time.Hour} {
			if next := last.Add(step).Format(t.Layout); next > t.Last {
				return next
			}
		}
		return next
	case EpochSeconds, EpochMillis, EpochMicros, EpochNanos:
		next := epoch(t.Kind, now)
		if last, err := strconv.ParseInt(t.Last, 10, 64); err == nil && next <= last {
			next = last + 1
		}
		return strconv.FormatInt(next, 10)
	default:
		n, _ := strconv.ParseUint(t.Last, 10, 64)
		return fmt.Sprintf("%0*d", len(t.Last), n+1)
	}
}

// slug lower-cases name and replaces anything outside [a-z0-9_] with "_"
func slug(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
			return r
		}
		return '_'
	}, name)
}
