package update

import "relcheck/internal/debug"

var logger = debug.Scope("update")

// Select returns the first candidate, in the given order, whose version is
// strictly greater than current. Unless channel is ChannelAll only candidates
// of that channel are considered. Candidates with an unparseable version are
// skipped. ok is false when nothing is newer.
func Select(candidates []Candidate, channel Channel, current Version) (Candidate, bool) {
	for _, c := range candidates {
		if channel != ChannelAll && c.Channel != channel {
			continue
		}
		v, err := ParseVersion(c.VersionName)
		if err != nil {
			logger.Logf("skipping candidate %s: %v", c.AssetName, err)
			continue
		}
		if v.GreaterThan(current) {
			return c, true
		}
	}
	return Candidate{}, false
}
