package logging

import (
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

const redacted = "***REDACTED***"

var (
	// Authorization header values and token query parameters.
	headerPattern = regexp.MustCompile(`(?i)\b(Bearer|Token)\s+[^\s"]+`)
	paramPattern  = regexp.MustCompile(`(?i)\b(token|access_token|api_key|password)=[^\s&"]+`)
	// user:password@ in connection strings.
	userinfoPattern = regexp.MustCompile(`://([^:/@\s]+):([^@\s]+)@`)
)

var sensitiveFields = []string{"token", "authorization", "password", "secret", "db_connect"}

// Redact masks credentials found in text.
func Redact(text string) string {
	text = headerPattern.ReplaceAllString(text, "$1 "+redacted)
	text = paramPattern.ReplaceAllString(text, "$1="+redacted)
	return userinfoPattern.ReplaceAllString(text, "://$1:"+redacted+"@")
}

// RedactionHook masks credentials in messages and string fields before an entry is written.
type RedactionHook struct{}

// NewRedactionHook returns a hook for all levels.
func NewRedactionHook() *RedactionHook {
	return &RedactionHook{}
}

// Levels implements logrus.Hook.
func (h *RedactionHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire implements logrus.Hook.
func (h *RedactionHook) Fire(entry *logrus.Entry) error {
	entry.Message = Redact(entry.Message)
	for key, value := range entry.Data {
		if isSensitiveField(key) {
			entry.Data[key] = redacted
			continue
		}
		switch v := value.(type) {
		case string:
			entry.Data[key] = Redact(v)
		case error:
			entry.Data[key] = Redact(v.Error())
		}
	}
	return nil
}

func isSensitiveField(key string) bool {
	key = strings.ToLower(key)
	for _, f := range sensitiveFields {
		if strings.Contains(key, f) {
			return true
		}
	}
	return false
}
