package timeframe

import (
	"sort"
	"strings"
	"time"

	"ohlcv-watch/internal/model"
)

// Timeframe describes one bar period: canonical code, nominal duration and
// the terminal's native timeframe id.
type Timeframe struct {
	Code     string
	Duration time.Duration
	Native   int
	// Variable marks calendar-based periods (MN1). Duration is nominal only.
	Variable bool
}

const (
	hourFlag  = 0x4000
	weekFlag  = 0x8000
	monthFlag = 0xC000
	day       = 24 * time.Hour
)

var table = map[string]Timeframe{
	"M1":  {Code: "M1", Duration: time.Minute, Native: 1},
	"M2":  {Code: "M2", Duration: 2 * time.Minute, Native: 2},
	"M3":  {Code: "M3", Duration: 3 * time.Minute, Native: 3},
	"M4":  {Code: "M4", Duration: 4 * time.Minute, Native: 4},
	"M5":  {Code: "M5", Duration: 5 * time.Minute, Native: 5},
	"M6":  {Code: "M6", Duration: 6 * time.Minute, Native: 6},
	"M10": {Code: "M10", Duration: 10 * time.Minute, Native: 10},
	"M12": {Code: "M12", Duration: 12 * time.Minute, Native: 12},
	"M15": {Code: "M15", Duration: 15 * time.Minute, Native: 15},
	"M20": {Code: "M20", Duration: 20 * time.Minute, Native: 20},
	"M30": {Code: "M30", Duration: 30 * time.Minute, Native: 30},
	"H1":  {Code: "H1", Duration: time.Hour, Native: hourFlag | 1},
	"H2":  {Code: "H2", Duration: 2 * time.Hour, Native: hourFlag | 2},
	"H3":  {Code: "H3", Duration: 3 * time.Hour, Native: hourFlag | 3},
	"H4":  {Code: "H4", Duration: 4 * time.Hour, Native: hourFlag | 4},
	"H6":  {Code: "H6", Duration: 6 * time.Hour, Native: hourFlag | 6},
	"H8":  {Code: "H8", Duration: 8 * time.Hour, Native: hourFlag | 8},
	"H12": {Code: "H12", Duration: 12 * time.Hour, Native: hourFlag | 12},
	"D1":  {Code: "D1", Duration: day, Native: hourFlag | 24},
	"W1":  {Code: "W1", Duration: 7 * day, Native: weekFlag | 1},
	"MN1": {Code: "MN1", Duration: 30 * day, Native: monthFlag | 1, Variable: true},
}

// aliases maps reversed spellings (1M, 4H, 1MN, ...) onto canonical codes.
var aliases = map[string]string{
	"60M": "H1",
	"1MN": "MN1",
}

func init() {
	for code := range table {
		if code == "MN1" {
			continue
		}
		aliases[code[1:]+code[:1]] = code
	}
}

// Parse resolves a timeframe code. Lookup is case-insensitive.
func Parse(input string) (Timeframe, error) {
	key := strings.ToUpper(strings.TrimSpace(input))
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	tf, ok := table[key]
	if !ok {
		return Timeframe{}, &model.ConfigError{
			Field:  "timeframe",
			Value:  input,
			Reason: "unsupported timeframe, use one of " + strings.Join(Codes(), ", "),
		}
	}
	return tf, nil
}

// ParseList resolves every code, dropping duplicates while keeping order.
func ParseList(inputs []string) ([]Timeframe, error) {
	out := make([]Timeframe, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		tf, err := Parse(in)
		if err != nil {
			return nil, err
		}
		if seen[tf.Code] {
			continue
		}
		seen[tf.Code] = true
		out = append(out, tf)
	}
	return out, nil
}

// Codes returns canonical codes ordered by duration.
func Codes() []string {
	tfs := make([]Timeframe, 0, len(table))
	for _, tf := range table {
		tfs = append(tfs, tf)
	}
	sort.Slice(tfs, func(i, j int) bool { return tfs[i].Duration < tfs[j].Duration })
	codes := make([]string, len(tfs))
	for i, tf := range tfs {
		codes[i] = tf.Code
	}
	return codes
}

func (tf Timeframe) String() string { return tf.Code }
