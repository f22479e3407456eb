// Package highlight detects the language of repository files and renders
// their content as highlighted HTML or terminal text.
package highlight

import (
	"path"
	"strings"
)

// Plaintext is the language of files with no known extension.
const Plaintext = "plaintext"

var languages = map[string]string{
	"js":    "javascript",
	"jsx":   "jsx",
	"ts":    "typescript",
	"tsx":   "tsx",
	"py":    "python",
	"go":    "go",
	"html":  "html",
	"css":   "css",
	"json":  "json",
	"md":    "markdown",
	"yml":   "yaml",
	"yaml":  "yaml",
	"sh":    "bash",
	"bash":  "bash",
	"sql":   "sql",
	"c":     "c",
	"cpp":   "cpp",
	"h":     "c",
	"hpp":   "cpp",
	"java":  "java",
	"kt":    "kotlin",
	"rb":    "ruby",
	"php":   "php",
	"rs":    "rust",
	"swift": "swift",
	"txt":   Plaintext,
}

// Language returns the highlighting language for filename, judged by its
// extension only.
func Language(filename string) string {
	base := path.Base(filename)
	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return Plaintext
	}
	if lang, ok := languages[strings.ToLower(base[i+1:])]; ok {
		return lang
	}
	return Plaintext
}

// DisplayName is the last segment of a file path.
func DisplayName(filepath string) string {
	filepath = strings.TrimRight(filepath, "/")
	if i := strings.LastIndexByte(filepath, '/'); i >= 0 {
		return filepath[i+1:]
	}
	return filepath
}
