package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
)

// Coverage label constants.
const (
	GoodValue    = "Good"    // Good value
	FairValue    = "Fair"    // Fair value
	PoorValue    = "Poor"    // Poor value
	UnknownValue = "Unknown" // No lines
)

// Color variables for console output.
var (
	GoodColor = color.New(color.FgGreen, color.Bold)
	FairColor = color.New(color.FgYellow)
	PoorColor = color.New(color.FgRed, color.Bold)
)

// GetPlainLabel returns a plain text label for a coverage percentage.
func GetPlainLabel(coverage float64, lines int) string {
	switch {
	case lines == 0:
		return UnknownValue
	case coverage >= 80:
		return GoodValue
	case coverage >= 60:
		return FairValue
	default:
		return PoorValue
	}
}

// GetColorLabel returns a colored text label for console output (table).
func GetColorLabel(coverage float64, lines int) string {
	text := GetPlainLabel(coverage, lines)

	switch text {
	case GoodValue:
		return GoodColor.Sprint(text)
	case FairValue:
		return FairColor.Sprint(text)
	case PoorValue:
		return PoorColor.Sprint(text)
	default:
		return text
	}
}

// SelectOutputFile returns the appropriate file handle for output.
// An empty path selects os.Stdout.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// GetDBFilePath returns the path to the default SQLite DB file.
func GetDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".covhub.db"
	}
	return filepath.Join(homeDir, ".covhub.db")
}

// TruncatePath truncates a file path to a maximum width with ellipsis prefix.
// Requires maxWidth > 3 to leave room for the "..." prefix.
func TruncatePath(path string, maxWidth int) string {
	runes := []rune(path)
	if len(runes) > maxWidth && maxWidth > 3 {
		return "..." + string(runes[len(runes)-maxWidth+3:])
	}
	return path
}

// SplitSlug splits "owner/repo" into its parts.
func SplitSlug(slug string) (string, string, error) {
	owner, repo, ok := strings.Cut(slug, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository slug %q, expected owner/repo", slug)
	}
	return owner, repo, nil
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
