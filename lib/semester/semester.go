package semester

import (
	"fmt"
	"strconv"
	"time"
	"vtaccess/lib/timezone"
	"vtaccess/lib/vterr"
)

type Term string

const (
	Spring   Term = "01"
	SummerI  Term = "05"
	SummerII Term = "07"
	Fall     Term = "09"
)

// terms in the order they occur within a calendar year
var terms = []Term{Spring, SummerI, SummerII, Fall}

func (t Term) Valid() bool {
	for _, v := range terms {
		if t == v {
			return true
		}
	}
	return false
}

func (t Term) Name() string {
	switch t {
	case Spring:
		return "Spring"
	case SummerI:
		return "Summer I"
	case SummerII:
		return "Summer II"
	case Fall:
		return "Fall"
	}
	return "Unknown"
}

func (t Term) index() int {
	for i, v := range terms {
		if t == v {
			return i
		}
	}
	return -1
}

// Code is a term identifier of the form YYYYTT.
type Code string

func Valid(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	year, _ := strconv.Atoi(s[:4])
	if year <= 2000 {
		return false
	}
	return Term(s[4:]).Valid()
}

func Parse(s string) (Code, error) {
	if !Valid(s) {
		return "", vterr.Newf(vterr.InvalidInput, "semester: parse", "%q is not a semester code", s)
	}
	return Code(s), nil
}

func New(year int, term Term) Code {
	return Code(fmt.Sprintf("%04d%s", year, term))
}

// Year is 0 for a code shorter than four characters.
func (c Code) Year() int {
	if len(c) < 4 {
		return 0
	}
	year, _ := strconv.Atoi(string(c)[:4])
	return year
}

// Term is empty for a code shorter than six characters.
func (c Code) Term() Term {
	if len(c) < 6 {
		return ""
	}
	return Term(string(c)[4:])
}

func (c Code) String() string {
	return string(c)
}

func (c Code) Name() string {
	return fmt.Sprintf("%s %d", c.Term().Name(), c.Year())
}

// Next and Previous return an invalid code unchanged.
func (c Code) Next() Code {
	if !Valid(string(c)) {
		return c
	}
	i := c.Term().index()
	if i == len(terms)-1 {
		return New(c.Year()+1, terms[0])
	}
	return New(c.Year(), terms[i+1])
}

func (c Code) Previous() Code {
	if !Valid(string(c)) {
		return c
	}
	i := c.Term().index()
	if i == 0 {
		return New(c.Year()-1, terms[len(terms)-1])
	}
	return New(c.Year(), terms[i-1])
}

// Window returns n consecutive codes beginning at start.
func Window(start Code, n int) []Code {
	out := make([]Code, 0, n)
	current := start
	for range n {
		out = append(out, current)
		current = current.Next()
	}
	return out
}

// For returns the term that registration pages treat as current on
// the given day.
func For(t time.Time) Code {
	t = t.In(timezone.Location)
	year := t.Year()
	day := t.Day()

	switch t.Month() {
	case time.January, time.February, time.March, time.April:
		return New(year, Spring)
	case time.May:
		if day > 20 {
			return New(year, SummerI)
		}
		return New(year, Spring)
	case time.June:
		return New(year, SummerI)
	case time.July:
		if day > 8 {
			return New(year, SummerII)
		}
		return New(year, SummerI)
	case time.August:
		if day > 19 {
			return New(year, Fall)
		}
		return New(year, SummerII)
	}
	return New(year, Fall)
}

func Current() Code {
	return For(timezone.Now())
}
