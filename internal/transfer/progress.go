package transfer

import "time"

// Progress is a point-in-time view of one transfer.
type Progress struct {
	Transferred int64
	Total       int64
	Elapsed     time.Duration

	// Fraction is Transferred/Total, 1 for an empty file.
	Fraction float64

	// Throughput is bytes per second averaged since the transfer began.
	Throughput float64
}

func newProgress(done, total int64, elapsed time.Duration) Progress {
	p := Progress{Transferred: done, Total: total, Elapsed: elapsed, Fraction: 1}
	if total > 0 {
		p.Fraction = float64(done) / float64(total)
	}
	if secs := elapsed.Seconds(); secs > 0 {
		p.Throughput = float64(done) / secs
	}
	return p
}

// Percent returns Fraction scaled to 0..100.
func (p Progress) Percent() float64 {
	return p.Fraction * 100
}
