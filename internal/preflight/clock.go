// Package preflight holds checks that run before any cloud resource is
// touched.
package preflight

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/beevik/ntp"
)

const (
	defaultNTPPool = "pool.ntp.org"
	// maxClockSkew is 4m: AWS request signing rejects clocks more than five
	// minutes off, so fail a little before the hard limit.
	maxClockSkew = 4 * time.Minute
)

// ClockCheck verifies local clock skew against an NTP pool.
type ClockCheck struct {
	Pool string

	// query is swappable for tests.
	query func(pool string) (time.Duration, error)
}

func queryOffset(pool string) (time.Duration, error) {
	resp, err := ntp.Query(pool)
	if err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}

// Run queries the pool once. A skew large enough to break request signing is
// an error; an unreachable pool is only logged — offline dev machines must
// still be able to deploy through proxies with correct local clocks.
func (c ClockCheck) Run() error {
	pool := c.Pool
	if pool == "" {
		pool = defaultNTPPool
	}
	query := c.query
	if query == nil {
		query = queryOffset
	}

	offset, err := query(pool)
	if err != nil {
		slog.Warn("clock skew check skipped", "pool", pool, "err", err)
		return nil
	}

	skew := offset
	if skew < 0 {
		skew = -skew
	}
	if skew > maxClockSkew {
		return fmt.Errorf("local clock is %s off NTP time; AWS request signing will fail, sync the clock first", offset.Round(time.Second))
	}
	slog.Debug("clock skew ok", "offset", offset)
	return nil
}
