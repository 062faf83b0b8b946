package domain

const (
	ToolDocumentsByIssueYear          = "get_list_documents_by_issue_year"
	ToolDocumentsByExpirationYear     = "get_list_documents_by_expiration_year"
	ToolDocumentsAlreadyExpired       = "get_list_documents_already_expired"
	ToolDocumentsByExpirationInterval = "get_list_document_by_expiration_interval"
	ToolAllDocumentsByOrganization    = "get_list_all_documents_by_organization"
	ToolDocumentContent               = "get_permit_document_content"
)

// IsMetadataTool reports whether the tool answers from the permit metadata store.
func IsMetadataTool(name string) bool {
	switch name {
	case ToolDocumentsByIssueYear,
		ToolDocumentsByExpirationYear,
		ToolDocumentsAlreadyExpired,
		ToolDocumentsByExpirationInterval,
		ToolAllDocumentsByOrganization:
		return true
	default:
		return false
	}
}
