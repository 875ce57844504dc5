package reactions

// Linear memory estimate. These are rough per-object overheads (map slot,
// struct header, slice header, time.Time) plus string payload bytes; the
// result is for dashboards, not accounting.
const (
	messageOverheadBytes = 96
	entryOverheadBytes   = 120
	userOverheadBytes    = 32
)

// MemoryEstimate approximates the bytes held by s.
func MemoryEstimate(s State) int64 {
	var total int64
	for id, m := range s {
		total += messageOverheadBytes + int64(len(id))
		for emoji, e := range m.Reactions {
			total += entryOverheadBytes + int64(len(emoji))
			for _, u := range e.Users {
				total += userOverheadBytes + int64(len(u.ID)+len(u.Name))
			}
		}
	}
	return total
}
