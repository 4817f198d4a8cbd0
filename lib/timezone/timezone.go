package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
}

// term boundaries are Blacksburg dates, a machine running in another
// zone must not move the cutover by a day
func Now() time.Time {
	return time.Now().In(Location)
}

// Date builds a midnight timestamp in the campus zone.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, Location)
}
