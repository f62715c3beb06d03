package campaign

type Tally struct {
	Success   int `json:"success"`
	Failure   int `json:"failure"`
	Duplicate int `json:"duplicate"`
}

func (t Tally) Total() int { return t.Success + t.Failure + t.Duplicate }

type AckResult int

const (
	AckIgnored AckResult = iota
	AckAlreadyAcknowledged
	AckRecorded
)

func (r AckResult) String() string {
	switch r {
	case AckIgnored:
		return "ignored"
	case AckAlreadyAcknowledged:
		return "already_acknowledged"
	case AckRecorded:
		return "recorded"
	}
	return "unknown"
}

type Stats struct {
	Total        int `json:"total"`
	Pending      int `json:"pending"`
	Sent         int `json:"sent"`
	Failed       int `json:"failed"`
	Duplicate    int `json:"duplicate"`
	Acknowledged int `json:"acknowledged"`
}

func (s *Stats) add(r RecipientDetails) {
	s.Total++
	switch {
	case r.Notified():
		s.Sent++
	case r.FailureMessage == FailureDuplicate:
		s.Duplicate++
	case r.FailureMessage != "":
		s.Failed++
	default:
		s.Pending++
	}
	if r.IsAcknowledged {
		s.Acknowledged++
	}
}

// Failure is a per-recipient reason surfaced on request.
type Failure struct {
	Kind     string `json:"kind"`
	ParentID string `json:"parent_id"`
	ID       string `json:"id"`
	Reason   string `json:"reason"`
}

func (c *Campaign) Stats() Stats {
	var s Stats
	for _, g := range c.Recipients.Groups {
		for _, u := range g.Users {
			s.add(u)
		}
	}
	for _, ch := range c.Recipients.Channels {
		s.add(ch.Channel)
	}
	return s
}

func (c *Campaign) Failures() []Failure {
	var out []Failure
	for _, g := range c.Recipients.Groups {
		for _, u := range g.Users {
			if u.FailureMessage != "" {
				out = append(out, Failure{Kind: "user", ParentID: g.GroupID, ID: u.ID, Reason: u.FailureMessage})
			}
		}
	}
	for _, ch := range c.Recipients.Channels {
		if ch.Channel.FailureMessage != "" {
			out = append(out, Failure{Kind: "channel", ParentID: ch.TeamID, ID: ch.Channel.ID, Reason: ch.Channel.FailureMessage})
		}
	}
	return out
}
