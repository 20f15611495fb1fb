// Package genstatus defines the fixed status vocabulary for song generation
// tasks. Raw provider payloads are normalized onto these values; everything
// downstream (store, live channel, client reconciler) branches on them only.
package genstatus

type Status string

const (
	Pending             Status = "PENDING"
	TextSuccess         Status = "TEXT_SUCCESS"
	FirstSuccess        Status = "FIRST_SUCCESS"
	Success             Status = "SUCCESS"
	Failed              Status = "FAILED"
	GenerateAudioFailed Status = "GENERATE_AUDIO_FAILED"
)

// Parse maps a raw provider status string onto the vocabulary.
func Parse(s string) (Status, bool) {
	switch Status(s) {
	case Pending, TextSuccess, FirstSuccess, Success, Failed, GenerateAudioFailed:
		return Status(s), true
	}
	return "", false
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	switch s {
	case Success, Failed, GenerateAudioFailed:
		return true
	}
	return false
}

// Rank orders statuses along the happy path. Terminal statuses share the top
// rank so that a late FAILED can never be overwritten by a replayed
// FIRST_SUCCESS, and vice versa.
func (s Status) Rank() int {
	switch s {
	case Pending:
		return 0
	case TextSuccess:
		return 1
	case FirstSuccess:
		return 2
	case Success, Failed, GenerateAudioFailed:
		return 3
	}
	return -1
}

func (s Status) String() string { return string(s) }
