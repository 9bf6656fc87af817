package weather

import (
	"time"

	"github.com/vanboompow/efb-212-sub001/internal/model"
)

// Tier is the staleness class of a cached observation, measured from its
// local fetch time.
type Tier int

const (
	TierFresh Tier = iota // under 30 minutes
	TierAging             // 30 to under 60 minutes
	TierOld               // 60 to 120 minutes inclusive
	TierStale             // over 120 minutes
)

const (
	agingAfter = 30 * time.Minute
	oldAfter   = 60 * time.Minute
	staleAfter = 120 * time.Minute
)

func (t Tier) String() string {
	switch t {
	case TierFresh:
		return "fresh"
	case TierAging:
		return "aging"
	case TierOld:
		return "old"
	case TierStale:
		return "stale"
	default:
		return "unknown"
	}
}

// MarshalText renders the tier name in JSON.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// TierFor classifies an age. Negative ages (fetch time ahead of the local
// clock) count as fresh.
func TierFor(age time.Duration) Tier {
	switch {
	case age < agingAfter:
		return TierFresh
	case age < oldAfter:
		return TierAging
	case age <= staleAfter:
		return TierOld
	default:
		return TierStale
	}
}

// Age returns now minus the observation's fetch time, floored at zero.
func Age(obs model.WeatherObservation, now time.Time) time.Duration {
	age := now.Sub(obs.FetchedAt)
	if age < 0 {
		return 0
	}
	return age
}
