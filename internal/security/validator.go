package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`(?i)<iframe[^>]*>.*?</iframe>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
}

var entityReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
	"/", "&#x2F;",
)

// SanitizeInput strips script/iframe blocks, javascript: URIs and inline
// event handlers, then applies one pass of HTML entity encoding. Encoding is
// not idempotent: sanitizing twice double-encodes '&'.
func SanitizeInput(text string) string {
	sanitized := text
	for _, p := range dangerousPatterns {
		sanitized = p.ReplaceAllString(sanitized, "")
	}
	return entityReplacer.Replace(sanitized)
}

// SanitizeAny sanitizes strings and returns every other value unchanged.
func SanitizeAny(v any) any {
	if s, ok := v.(string); ok {
		return SanitizeInput(s)
	}
	return v
}

// ValidateTextLength reports whether text is non-empty and at most maxLength
// characters long.
func ValidateTextLength(text string, maxLength int) bool {
	if text == "" {
		return false
	}
	return utf8.RuneCountInString(text) <= maxLength
}

// ValidateTextLengthAny fails closed for anything that is not a string.
func ValidateTextLengthAny(v any, maxLength int) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return ValidateTextLength(s, maxLength)
}

// ValidateFileType checks the lower-cased suffix after the final '.' against
// allowed. A name without a '.' is rejected.
func ValidateFileType(filename string, allowed []string) bool {
	idx := strings.LastIndex(filename, ".")
	if filename == "" || idx < 0 {
		return false
	}
	ext := "." + strings.ToLower(filename[idx+1:])
	for _, a := range allowed {
		if normalizeExt(a) == ext {
			return true
		}
	}
	return false
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func ValidateFileSize(size, max int64) bool {
	return size <= max
}

// ValidateFileName rejects names that sanitization would alter.
func ValidateFileName(name string) bool {
	return name != "" && SanitizeInput(name) == name
}

// ValidationError is a local rejection that never reaches the server.
type ValidationError struct {
	Field  string
	Name   string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s", e.Name, e.Reason)
	}
	return e.Reason
}

// ValidateTexts checks a text submission. Blank entries are ignored, but at
// least one text must remain.
func ValidateTexts(texts []string, limits Limits) error {
	limits = limits.withDefaults()

	nonBlank := 0
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		nonBlank++
		if !ValidateTextLength(t, limits.MaxTextLength) {
			return ValidationError{
				Field:  "text",
				Reason: fmt.Sprintf("Text too long. Maximum %s characters allowed.", formatThousands(limits.MaxTextLength)),
			}
		}
	}
	if nonBlank == 0 {
		return ValidationError{Field: "text", Reason: "Please enter some text to analyze."}
	}
	if nonBlank > limits.MaxBatchSize {
		return ValidationError{
			Field:  "texts",
			Reason: fmt.Sprintf("Too many texts. Maximum %d per batch.", limits.MaxBatchSize),
		}
	}
	return nil
}

func formatThousands(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
