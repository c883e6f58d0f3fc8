package extract

import (
	"strings"

	"caseflow/internal/cases/models"
)

// Descriptor identifies the document handed to the extraction worker.
type Descriptor struct {
	StoragePath string
	Filename    string
	MimeType    string

	// Virtual marks a descriptor synthesized from pasted text rather than an
	// uploaded document; the path is deterministic per token.
	Virtual bool
}

// NeedsExtraction reports whether a saved case should be dispatched:
// extraction material is present and the sub-machine is still pending. The
// pending guard is the idempotency barrier — triggered, queued, and terminal
// failure states are never re-dispatched.
func NeedsExtraction(payload map[string]any) bool {
	if models.ExtractStatusOf(payload) != models.ExtractPending {
		return false
	}
	return pastedText(payload) != "" || len(additionalDocs(payload)) > 0
}

// DeriveDescriptor picks the document to extract. Pasted text wins and
// becomes a virtual plain-text document; otherwise the first additional
// document is used. Returns false when no storage path can be derived —
// a nothing-to-do condition, not an error.
func DeriveDescriptor(token string, payload map[string]any) (Descriptor, bool) {
	if pastedText(payload) != "" {
		return Descriptor{
			StoragePath: "pasted/" + token + ".txt",
			Filename:    "pasted-text.txt",
			MimeType:    "text/plain",
			Virtual:     true,
		}, true
	}

	docs := additionalDocs(payload)
	if len(docs) == 0 {
		return Descriptor{}, false
	}
	first, ok := docs[0].(map[string]any)
	if !ok {
		return Descriptor{}, false
	}

	// Two field-naming schemes survive in stored payloads; prefer the
	// current one, fall back to the legacy names.
	desc := Descriptor{
		StoragePath: firstString(first, "storage_path", "path"),
		Filename:    firstString(first, "filename", "name"),
		MimeType:    firstString(first, "mime_type", "type"),
	}
	if desc.StoragePath == "" {
		return Descriptor{}, false
	}
	return desc, true
}

func pastedText(payload map[string]any) string {
	s, _ := payload[models.KeyPastedText].(string)
	return strings.TrimSpace(s)
}

func additionalDocs(payload map[string]any) []any {
	list, _ := payload[models.KeyAdditionalDocs].([]any)
	return list
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
