package aprsfc

/*------------------------------------------------------------------
 *
 * Purpose:   	Time helpers.
 *
 *---------------------------------------------------------------*/

import "time"

const US_PER_S = 1000000

// Current time as microseconds since the epoch.
func dtime_now_us() uint64 {
	return uint64(time.Now().UnixMicro())
}

// Sleep until an absolute instant rather than for a relative
// duration, so a repeating schedule does not drift.
func sleep_until(t time.Time) {
	time.Sleep(time.Until(t))
}
