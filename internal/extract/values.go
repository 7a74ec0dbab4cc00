package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"January 2, 2006",
	"Jan 2, 2006",
	"02/01/2006",
	"02/01/06",
	"02-01-2006",
	"20060102",
}

var errNoDate = errors.New("not a recognized date")

// ParseDate accepts the date spellings found on partner documents, month-first
// before day-first. Spreadsheet serial day numbers are accepted too.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errNoDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 20000 && serial < 80000 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, errNoDate
}

var moneyStripper = strings.NewReplacer("$", "", "£", "", "€", "", ",", "", " ", "", "\u00a0", "")

// ParseDecimal reads a number after removing currency symbols, thousands
// separators and a trailing percent sign. Parentheses mean negative.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, errors.New("empty number")
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = moneyStripper.Replace(s)
	s = strings.TrimSuffix(s, "%")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number: %q", s)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

var reFloatSuffix = regexp.MustCompile(`^(\d+)\.0+$`)

// CleanCode trims an identifier and drops the ".0" spreadsheets append to numeric codes.
func CleanCode(s string) string {
	s = strings.TrimSpace(s)
	if m := reFloatSuffix.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}
