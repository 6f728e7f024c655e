// Package catalog resolves model identifiers to static capabilities.
// It is a pure lookup over a compiled-in table; no I/O.
package catalog

import "strings"

// Info describes the static capabilities of a known model family.
type Info struct {
	ID            string
	ContextWindow int
}

// table maps base model identifiers to capabilities. Ollama reports models
// as "family:tag"; lookups normalize the tag away first.
var table = map[string]Info{
	"deepseek-chat":     {ID: "deepseek-chat", ContextWindow: 65536},
	"qwen2.5-coder":     {ID: "qwen2.5-coder", ContextWindow: 32768},
	"codestral":         {ID: "codestral", ContextWindow: 32768},
	"codellama":         {ID: "codellama", ContextWindow: 16384},
	"deepseek-coder":    {ID: "deepseek-coder", ContextWindow: 16384},
	"deepseek-coder-v2": {ID: "deepseek-coder-v2", ContextWindow: 131072},
	"starcoder2":        {ID: "starcoder2", ContextWindow: 16384},
	"stable-code":       {ID: "stable-code", ContextWindow: 16384},
	"codegemma":         {ID: "codegemma", ContextWindow: 8192},
	"granite-code":      {ID: "granite-code", ContextWindow: 8192},
}

// Lookup returns the capabilities for modelID, normalizing Ollama tags.
func Lookup(modelID string) (Info, bool) {
	info, ok := table[Normalize(modelID)]
	return info, ok
}

// Normalize strips an Ollama-style ":tag" suffix from a model identifier.
// "qwen2.5-coder:7b" and "qwen2.5-coder" resolve to the same entry.
func Normalize(modelID string) string {
	if i := strings.IndexByte(modelID, ':'); i >= 0 {
		return modelID[:i]
	}
	return modelID
}
