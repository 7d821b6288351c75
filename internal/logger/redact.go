package logger

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"
)

const redacted = "[REDACTED]"

// maxValueRunes bounds string values. Anything longer is almost always a
// paragraph or a backend reply that slipped in under an innocent key.
const maxValueRunes = 300

// Keys holding credentials or book text, matched as substrings of the
// lower-cased attribute key. Counts such as "paragraphs" stay visible
// because they are ints.
var (
	credentialKeys = []string{"key", "token", "secret", "password", "authorization", "bearer"}
	bookTextKeys   = []string{"text", "original", "translation", "paragraph", "prompt", "content", "body", "input", "output"}
)

var credentialValues = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bsk-[A-Za-z0-9_-]{10,}`),
	regexp.MustCompile(`\bAIza[0-9A-Za-z\-_]{10,}`),
	regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9\-._~+/]+=*`),
	regexp.MustCompile(`(?i)\b(api[_-]?key|access[_-]?token|secret)\s*[:=]\s*\S+`),
}

// redact is the ReplaceAttr hook shared by every handler.
func redact(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		return a
	}
	key := strings.ToLower(a.Key)
	if containsAny(key, credentialKeys) {
		return slog.String(a.Key, redacted)
	}

	s, isText := textValue(a.Value)
	if !isText {
		return a
	}
	if containsAny(key, bookTextKeys) {
		return slog.String(a.Key, redacted)
	}
	for _, re := range credentialValues {
		if re.MatchString(s) {
			return slog.String(a.Key, redacted)
		}
	}
	if n := utf8.RuneCountInString(s); n > maxValueRunes {
		return slog.String(a.Key, fmt.Sprintf("[%d chars omitted]", n))
	}
	return a
}

// textValue returns the string form of values that can carry free text:
// strings, errors and Stringers. Numbers, bools, times and durations are
// never text.
func textValue(v slog.Value) (string, bool) {
	switch v.Kind() {
	case slog.KindString:
		return v.String(), true
	case slog.KindAny:
		switch x := v.Any().(type) {
		case error:
			return x.Error(), true
		case fmt.Stringer:
			return x.String(), true
		case string:
			return x, true
		}
	}
	return "", false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
