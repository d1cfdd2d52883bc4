package timezone

import (
	"os"
	"time"
)

var Location *time.Location

func init() {
	Location = time.Local
	// containers frequently run in UTC with the real zone only present
	// in the TZ env var
	if tz := os.Getenv("TZ"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err == nil {
			Location = loc
		}
	}
}

func Now() time.Time {
	return time.Now().In(Location)
}

// the IANA name of the zone contacts are stamped with when no timezone
// was found on the page
func Name() string {
	name := Location.String()
	if name == "Local" || name == "" {
		name, _ = time.Now().Zone()
	}
	return name
}
