package dates

import (
	"regexp"
	"strings"
)

const fallbackMonthCode = "01"

var monthCodes = map[string]string{
	"января":   "01",
	"февраля":  "02",
	"марта":    "03",
	"апреля":   "04",
	"мая":      "05",
	"июня":     "06",
	"июля":     "07",
	"августа":  "08",
	"сентября": "09",
	"октября":  "10",
	"ноября":   "11",
	"декабря":  "12",
}

// Separators include non-breaking and other Unicode spaces.
var (
	singleDatePattern = regexp.MustCompile(`([0-9]{1,2})[\s\p{Zs}]+([а-яА-ЯёЁ]+?)[\s\p{Zs}]+([0-9]{4})`)
	rangeDatePattern  = regexp.MustCompile(`с[\s\p{Zs}]+([0-9]{1,2})[\s\p{Zs}]+по[\s\p{Zs}]+([0-9]{1,2})[\s\p{Zs}]+([а-яА-ЯёЁ]+?)[\s\p{Zs}]+([0-9]{4})`)
)

// Normalize rewrites Russian calendar phrases ("28 ноября 2025") into ISO
// dates ("2025-11-28"). The single-date pass runs before the range pass, so
// in "с 1 по 5 ноября 2025" only the second day is rewritten.
func Normalize(text string) string {
	text = singleDatePattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := singleDatePattern.FindStringSubmatch(match)
		code, _ := MonthCode(groups[2])
		return isoDate(groups[3], code, groups[1])
	})

	text = rangeDatePattern.ReplaceAllStringFunc(text, func(match string) string {
		groups := rangeDatePattern.FindStringSubmatch(match)
		code, _ := MonthCode(groups[3])
		return "с " + isoDate(groups[4], code, groups[1]) + " по " + isoDate(groups[4], code, groups[2])
	})

	return text
}

// MonthCode maps a genitive month name to its two-digit code. Unknown names
// map to "01" with known=false.
func MonthCode(name string) (code string, known bool) {
	code, known = monthCodes[strings.ToLower(name)]
	if !known {
		return fallbackMonthCode, false
	}
	return code, true
}

func isoDate(year, month, day string) string {
	if len(day) < 2 {
		day = "0" + day
	}
	return year + "-" + month + "-" + day
}
