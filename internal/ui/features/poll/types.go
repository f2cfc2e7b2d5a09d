package poll

// VoteSignals are the signals the questions form sends on submit.
type VoteSignals struct {
	Selection map[string][]string `json:"selection"`
}
