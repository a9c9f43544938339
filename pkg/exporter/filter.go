package exporter

import "strings"

// systemKeywords mark entries that carry SDK or session metadata instead of
// conversation. Matching is a case-insensitive substring test.
var systemKeywords = []string{
	"PAGE_METADATA",
	"SYSTEM",
	"METADATA",
	"CONNECTION",
	"SESSION",
	"__system__",
	"sm-",
	"soul-",
}

// lowered once; the filter runs on every keystroke-triggered export
var loweredKeywords = func() []string {
	out := make([]string, len(systemKeywords))
	for i, kw := range systemKeywords {
		out[i] = strings.ToLower(kw)
	}
	return out
}()

// SystemKeywords returns a copy of the denylist used by Filter
func SystemKeywords() []string {
	return append([]string(nil), systemKeywords...)
}

// IsConversational reports whether an entry should survive filtering
func IsConversational(e TranscriptEntry) bool {
	if e.Source == SourceSystem {
		return false
	}
	if strings.TrimSpace(e.Text) == "" {
		return false
	}
	text := strings.ToLower(e.Text)
	for _, kw := range loweredKeywords {
		if strings.Contains(text, kw) {
			return false
		}
	}
	return true
}

// Filter returns the conversational subsequence of entries, preserving order.
// It never fails and never creates new entries.
func Filter(entries []TranscriptEntry) []TranscriptEntry {
	out := make([]TranscriptEntry, 0, len(entries))
	for _, e := range entries {
		if IsConversational(e) {
			out = append(out, e)
		}
	}
	return out
}
