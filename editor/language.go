package editor

import (
	"path"
	"strings"
)

// PlainText is the language of files with an unrecognized extension.
const PlainText = "plaintext"

var languageByExt = map[string]string{
	"js":   "javascript",
	"ts":   "typescript",
	"json": "json",
	"md":   "markdown",
	"py":   "python",
	"html": "html",
	"css":  "css",
	"java": "java",
	"cpp":  "cpp",
	"c":    "c",
}

// LanguageFor derives a language id from the file extension of p.
func LanguageFor(p string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	if lang, ok := languageByExt[ext]; ok {
		return lang
	}
	return PlainText
}

// Support is the capability record of a language.
type Support struct {
	SyntaxHighlighting bool `json:"syntax_highlighting"`
	AutoCompletion     bool `json:"auto_completion"`
	ErrorChecking      bool `json:"error_checking"`
	Formatting         bool `json:"formatting"`
}

var fullSupport = Support{SyntaxHighlighting: true, AutoCompletion: true, ErrorChecking: true, Formatting: true}

var supportByLanguage = map[string]Support{
	"javascript": fullSupport,
	"typescript": fullSupport,
	"python":     fullSupport,
	"json":       fullSupport,
	"markdown":   {SyntaxHighlighting: true, AutoCompletion: true, Formatting: true},
}

// LanguageSupport returns the capabilities of lang. Unknown languages
// support nothing.
func LanguageSupport(lang string) Support {
	return supportByLanguage[lang]
}
