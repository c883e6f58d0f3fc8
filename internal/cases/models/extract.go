package models

// ExtractStatus is the document-extraction sub-machine embedded in the
// payload under KeyExtractStatus:
//
//	pending → triggered → queued | failed | not_configured | not_deployed | auth_failed
//
// queued and the failure states are terminal; the service never re-dispatches
// them automatically. They exist for operator diagnosis.
type ExtractStatus string

const (
	ExtractPending       ExtractStatus = "pending"
	ExtractTriggered     ExtractStatus = "triggered"
	ExtractQueued        ExtractStatus = "queued"
	ExtractFailed        ExtractStatus = "failed"
	ExtractNotConfigured ExtractStatus = "not_configured"
	ExtractNotDeployed   ExtractStatus = "not_deployed"
	ExtractAuthFailed    ExtractStatus = "auth_failed"
)

// Payload keys the service reads and writes. Everything else in the payload
// belongs to the client.
const (
	KeyExtractStatus      = "extract_status"
	KeyNoticeStoragePath  = "notice_storage_path"
	KeyNoticeFilename     = "notice_filename"
	KeyNoticeMimeType     = "notice_mime_type"
	KeyExtractTriggeredAt = "extract_triggered_at"
	KeyExtractQueuedAt    = "extract_queued_at"
	KeyExtractFailedAt    = "extract_failed_at"
	KeyExtractError       = "extract_error"
	KeyWorkerResponse     = "webhook_response"

	KeyPastedText     = "pasted_text"
	KeyAdditionalDocs = "additional_documents"
)

// ExtractStatusOf reads the sub-machine state from a payload. A missing or
// malformed key counts as pending: cases created before the bookkeeping key
// existed are still eligible for a first dispatch.
func ExtractStatusOf(payload map[string]any) ExtractStatus {
	raw, ok := payload[KeyExtractStatus]
	if !ok {
		return ExtractPending
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return ExtractPending
	}
	return ExtractStatus(s)
}
