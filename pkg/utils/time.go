package utils

import "time"

// Now is the clock used for record timestamps. Tests replace it.
var Now = func() time.Time { return time.Now().UTC() }
