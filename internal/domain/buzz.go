package domain

// BuzzEntry is one ranked arrival in a resolved buzz window.
type BuzzEntry struct {
	Rank       int    `json:"rank"`
	MemberID   string `json:"memberId"`
	ServerTime int64  `json:"serverTime"`
	IsFirst    bool   `json:"isFirst"`
}

// Resolution is the final outcome of a buzz window: the qualifying
// arrivals ranked by server arrival time. It is computed at most once
// per window and cached; an empty Entries slice means nobody buzzed
// inside the window.
type Resolution struct {
	SessionID  int64       `json:"sessionId"`
	QuestionID int64       `json:"questionId"`
	Entries    []BuzzEntry `json:"results"`
}

// First returns the winning entry, if any.
func (r *Resolution) First() (BuzzEntry, bool) {
	if len(r.Entries) == 0 {
		return BuzzEntry{}, false
	}
	return r.Entries[0], true
}

// BuzzRecord is the durable audit row written for every arrival that
// made it into a resolution.
type BuzzRecord struct {
	SessionID   int64
	QuestionID  int64
	Participant Participant
	ServerTime  int64
	Rank        int
	IsFirst     bool
}

// BuzzAck is the synchronous reply to a single buzz attempt.
type BuzzAck struct {
	Accepted   bool   `json:"success"`
	Message    string `json:"message"`
	MemberID   string `json:"memberId,omitempty"`
	ServerTime int64  `json:"serverTime"`
}
