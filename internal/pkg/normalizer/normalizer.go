// Package normalizer converts raw music-provider payloads into the fixed
// snapshot shape used by the status store and the live channel. The provider
// has shipped several field-name variants for the same concept over time, so
// every URL extraction goes through an explicit fallback chain, documented on
// the extractor itself instead of being re-implemented at call sites.
package normalizer

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/spivanka/spivanka/pkg/genstatus"
)

// Snapshot is the normalized view of one generation task at a point in time.
type Snapshot struct {
	TaskID         string           `json:"task_id"`
	Status         genstatus.Status `json:"status"`
	Text           string           `json:"text,omitempty"`
	MusicURL       string           `json:"music_url,omitempty"`
	SecondMusicURL string           `json:"second_music_url,omitempty"`
	CoverURL       string           `json:"cover_url,omitempty"`
}

// RawTrack carries one candidate audio track from the provider. Field names
// follow the provider's wire format; historical variants are kept so old
// payloads still decode.
type RawTrack struct {
	ID                   string `json:"id"`
	AudioURL             string `json:"audioUrl"`
	SourceAudioURL       string `json:"sourceAudioUrl"`
	StreamAudioURL       string `json:"streamAudioUrl"`
	SourceStreamAudioURL string `json:"sourceStreamAudioUrl"`
	ImageURL             string `json:"imageUrl"`
	SourceImageURL       string `json:"sourceImageUrl"`
	Prompt               string `json:"prompt"`
	Title                string `json:"title"`
}

// RawResponse nests the track list. Newer payloads use sunoData, older ones
// a plain data array.
type RawResponse struct {
	SunoData []RawTrack `json:"sunoData"`
	Data     []RawTrack `json:"data"`
}

// RawTask is the provider's record for one task id.
type RawTask struct {
	TaskID   string      `json:"taskId"`
	Status   string      `json:"status"`
	Response RawResponse `json:"response"`
	ErrorMsg string      `json:"errorMessage"`
}

// Decode parses a raw provider payload.
func Decode(raw []byte) (*RawTask, error) {
	var t RawTask
	if err := sonic.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode provider payload: %w", err)
	}
	return &t, nil
}

func (r *RawTask) tracks() []RawTrack {
	if len(r.Response.SunoData) > 0 {
		return r.Response.SunoData
	}
	return r.Response.Data
}

// bestAudio prefers a durable CDN URL over a streaming-only URL:
// audioUrl > sourceAudioUrl > streamAudioUrl > sourceStreamAudioUrl.
func bestAudio(t RawTrack) string {
	switch {
	case t.AudioURL != "":
		return t.AudioURL
	case t.SourceAudioURL != "":
		return t.SourceAudioURL
	case t.StreamAudioURL != "":
		return t.StreamAudioURL
	default:
		return t.SourceStreamAudioURL
	}
}

// bestCover: imageUrl > sourceImageUrl.
func bestCover(t RawTrack) string {
	if t.ImageURL != "" {
		return t.ImageURL
	}
	return t.SourceImageURL
}

// Normalize maps a raw provider record onto a Snapshot. Missing fields at any
// stage produce partial data rather than an error; the caller merges against
// the previously stored snapshot so known values survive.
func Normalize(raw *RawTask) (*Snapshot, error) {
	status, ok := genstatus.Parse(raw.Status)
	if !ok {
		return nil, fmt.Errorf("unknown provider status %q for task %s", raw.Status, raw.TaskID)
	}

	snap := &Snapshot{TaskID: raw.TaskID, Status: status}
	tracks := raw.tracks()

	switch status {
	case genstatus.Pending, genstatus.Failed, genstatus.GenerateAudioFailed:
		// no URLs at these stages

	case genstatus.TextSuccess:
		if len(tracks) > 0 {
			snap.Text = tracks[0].Prompt
		}

	case genstatus.FirstSuccess:
		// interim streaming result: one track, best available URL
		if len(tracks) > 0 {
			snap.Text = tracks[0].Prompt
			snap.MusicURL = bestAudio(tracks[0])
			snap.CoverURL = bestCover(tracks[0])
		}

	case genstatus.Success:
		if len(tracks) > 0 {
			snap.Text = tracks[0].Prompt
			snap.MusicURL = bestAudio(tracks[0])
			snap.CoverURL = bestCover(tracks[0])
		}
		if len(tracks) > 1 {
			snap.SecondMusicURL = bestAudio(tracks[1])
			if snap.CoverURL == "" {
				snap.CoverURL = bestCover(tracks[1])
			}
		}
	}

	return snap, nil
}

// Merge folds a freshly normalized snapshot into the previously stored one.
// Two rules hold unconditionally: a terminal status never regresses, and a
// known URL or text is never cleared by a payload that lacks it.
func Merge(prev, next *Snapshot) *Snapshot {
	if prev == nil {
		out := *next
		return &out
	}

	out := *prev
	if prev.Status.Terminal() && prev.Status != next.Status {
		// late or replayed delivery of an older stage; keep the terminal
		// status but still absorb any newly arrived URLs (e.g. a cover
		// produced after SUCCESS)
	} else if next.Status.Rank() >= prev.Status.Rank() {
		out.Status = next.Status
	}

	if next.Text != "" {
		out.Text = next.Text
	}
	if next.MusicURL != "" {
		out.MusicURL = next.MusicURL
	}
	if next.SecondMusicURL != "" {
		out.SecondMusicURL = next.SecondMusicURL
	}
	if next.CoverURL != "" {
		out.CoverURL = next.CoverURL
	}
	return &out
}

// Equal reports whether two snapshots carry identical normalized data. Used
// by the poller to suppress duplicate change events.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s == nil || o == nil {
		return s == o
	}
	return *s == *o
}

// Clone returns a copy safe to hand to another goroutine.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}
