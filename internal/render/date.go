package render

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goodsign/monday"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// fallbackDateLayout is used when a supported locale has no short date
// format registered.
const fallbackDateLayout = "01/02/06"

// dateFormatter renders the abbreviated weekday plus the locale's short
// date, capitalized like a sentence.
type dateFormatter struct {
	locale monday.Locale
	layout string
	lower  cases.Caser
	upper  cases.Caser
}

// newDateFormatter validates name (e.g. "ru_RU") against the locales known
// to the formatter.
func newDateFormatter(name string) (*dateFormatter, error) {
	loc := monday.Locale(name)
	supported := false
	for _, l := range monday.ListLocales() {
		if l == loc {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fmt.Errorf("render: unsupported locale %q", name)
	}

	layout, ok := monday.ShortFormatsByLocale[loc]
	if !ok || layout == "" {
		layout = fallbackDateLayout
	}

	tag := language.Make(strings.ReplaceAll(name, "_", "-"))
	return &dateFormatter{
		locale: loc,
		layout: "Mon " + layout,
		lower:  cases.Lower(tag),
		upper:  cases.Upper(tag),
	}, nil
}

func (d *dateFormatter) format(t time.Time) string {
	return capitalize(monday.Format(t, d.layout, d.locale), d.lower, d.upper)
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string, lower, upper cases.Caser) string {
	if s == "" {
		return s
	}
	s = lower.String(s)
	r, size := utf8.DecodeRuneInString(s)
	return upper.String(string(r)) + s[size:]
}
