package queue

const (
	TypeDocumentProcess   = "document:process"
	TypeDocumentReprocess = "document:reprocess"
)

// DocumentTaskPayload identifies the document a worker should chunk,
// embed, and index. The raw text is already persisted with the document,
// so the payload stays small.
type DocumentTaskPayload struct {
	DocumentID string `json:"document_id"`
	TenantSlug string `json:"tenant_slug"`
}
