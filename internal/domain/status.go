package domain

// StatusKey names a tracker status the desk transitions issues into.
type StatusKey string

const (
	StatusPresent    StatusKey = "present"
	StatusAbsent     StatusKey = "absent"
	StatusProcessing StatusKey = "processing"
	StatusCompleted  StatusKey = "completed"
	StatusReturned   StatusKey = "returned"
)

// StatusKeys lists every key a StatusIDMap must resolve.
var StatusKeys = []StatusKey{StatusPresent, StatusAbsent, StatusProcessing, StatusCompleted, StatusReturned}

// StatusNames maps tracker status display names to keys. Matching is exact.
var StatusNames = map[string]StatusKey{
	"在席":  StatusPresent,
	"不在":  StatusAbsent,
	"処理中": StatusProcessing,
	"完了":  StatusCompleted,
	"差戻":  StatusReturned,
}

// PlaceholderStatusIDs is the last fallback tier. These are NOT real tracker
// ids; they only keep a transition addressable when both the tracker and the
// configuration failed to provide one.
var PlaceholderStatusIDs = map[StatusKey]int64{
	StatusPresent:    3,
	StatusAbsent:     4,
	StatusProcessing: 2,
	StatusCompleted:  3,
	StatusReturned:   4,
}

// StatusIDMap maps keys to tracker status ids.
type StatusIDMap map[StatusKey]int64

// ID returns the id for key, or 0 when unresolved.
func (m StatusIDMap) ID(key StatusKey) int64 {
	if m == nil {
		return 0
	}
	return m[key]
}

// Complete reports whether every key resolved to a positive id.
func (m StatusIDMap) Complete() bool {
	for _, key := range StatusKeys {
		if m.ID(key) <= 0 {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (m StatusIDMap) Clone() StatusIDMap {
	out := make(StatusIDMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// PresenceKey returns the status key for a presence value.
func PresenceKey(isPresent bool) StatusKey {
	if isPresent {
		return StatusPresent
	}
	return StatusAbsent
}
