package repositories

// RepositoryProvider bundles the repository facades needed to construct the
// service layer.
type RepositoryProvider struct {
	InvoiceRepo InvoiceRepositoryFacade
	RuleRepo    ValidationRuleRepositoryFacade
	Blobs       BlobStore
}
