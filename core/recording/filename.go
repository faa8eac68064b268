package recording

import (
	"regexp"
	"time"
)

var unsafeRune = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Filename builds the upload path for a finished recording:
// <subject>/<YYYY-MM-DD>/<subject>_<purpose>_<HH-MM-SS>.<mp3|mp4>.
func Filename(subject string, kind Kind, purpose string, at time.Time) string {
	name := unsafeRune.ReplaceAllString(subject, "_")
	return name + "/" + at.Format("2006-01-02") + "/" +
		name + "_" + unsafeRune.ReplaceAllString(purpose, "_") + "_" + at.Format("15-04-05") + "." + kind.Extension()
}

// Filename builds the upload path for this state's recording.
func (s State) Filename(at time.Time) string {
	return Filename(s.SubjectOrDefault(), s.Kind, s.Purpose, at)
}
