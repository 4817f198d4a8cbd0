package semester

import (
	"testing"
	"time"
	"vtaccess/lib/timezone"
	"vtaccess/lib/vterr"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestNextPrevious(t *testing.T) {
	cases := []struct {
		code     Code
		next     Code
		previous Code
	}{
		{code: "200909", next: "201001", previous: "200907"},
		{code: "201001", next: "201005", previous: "200909"},
		{code: "201005", next: "201007", previous: "201001"},
		{code: "201007", next: "201009", previous: "201005"},
	}

	for _, test := range cases {
		t.Run(string(test.code), func(t *testing.T) {
			require.Equal(t, test.next, test.code.Next())
			require.Equal(t, test.previous, test.code.Previous())
			require.Equal(t, test.code, test.code.Next().Previous())
			require.Equal(t, test.code, test.code.Previous().Next())
		})
	}
}

func TestMalformedCodes(t *testing.T) {
	for _, code := range []Code{"200902", "2009", "", "abcdef", "20090"} {
		t.Run(string(code), func(t *testing.T) {
			require.Equal(t, code, code.Next())
			require.Equal(t, code, code.Previous())
			require.NotPanics(t, func() { code.Name() })
		})
	}
	require.Equal(t, 0, Code("20").Year())
	require.Equal(t, Term(""), Code("2009").Term())
}

func TestRoundTripOverManyYears(t *testing.T) {
	c := New(2001, Spring)
	for range 200 {
		require.True(t, Valid(string(c)))
		require.Equal(t, c, c.Next().Previous())
		require.Equal(t, c, c.Previous().Next())
		c = c.Next()
	}
	require.Equal(t, New(2051, Spring), c)
}

func TestValid(t *testing.T) {
	cases := []struct {
		input string
		valid bool
	}{
		{"201001", true},
		{"201005", true},
		{"201007", true},
		{"201009", true},
		{"201002", false},
		{"201000", false},
		{"200009", false},
		{"199909", false},
		{"20109", false},
		{"2010099", false},
		{"2010a9", false},
		{"", false},
		{" 20109", false},
	}

	for _, test := range cases {
		require.Equal(t, test.valid, Valid(test.input), test.input)
	}
}

func TestParse(t *testing.T) {
	code, err := Parse("201309")
	require.NoError(t, err)
	require.Equal(t, 2013, code.Year())
	require.Equal(t, Fall, code.Term())
	require.Equal(t, "Fall 2013", code.Name())

	_, err = Parse("201308")
	require.ErrorIs(t, err, vterr.ErrInvalidInput)
}

func TestWindow(t *testing.T) {
	diff := cmp.Diff(
		[]Code{"201307", "201309", "201401", "201405"},
		Window("201307", 4),
	)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestFor(t *testing.T) {
	cases := []struct {
		month  time.Month
		day    int
		expect Code
	}{
		{time.January, 10, "202401"},
		{time.April, 30, "202401"},
		{time.May, 20, "202401"},
		{time.May, 21, "202405"},
		{time.June, 1, "202405"},
		{time.July, 8, "202405"},
		{time.July, 9, "202407"},
		{time.August, 19, "202407"},
		{time.August, 20, "202409"},
		{time.December, 31, "202409"},
	}

	for _, test := range cases {
		require.Equal(t, test.expect, For(timezone.Date(2024, test.month, test.day)), "%s %d", test.month, test.day)
	}
}
