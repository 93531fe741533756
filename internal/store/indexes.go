package store

// IndexSpec is a unique index. CaseInsensitive maps to a strength-2 collation;
// ActiveOnly restricts it to documents with isActive=true.
type IndexSpec struct {
	Collection      string
	Fields          []string
	CaseInsensitive bool
	ActiveOnly      bool
}

// UniqueIndexes are the authoritative natural-key constraints.
var UniqueIndexes = []IndexSpec{
	{Collection: Admins, Fields: []string{"email"}, CaseInsensitive: true, ActiveOnly: true},
	{Collection: Engineers, Fields: []string{"email"}, CaseInsensitive: true, ActiveOnly: true},
	{Collection: CustomerCompanies, Fields: []string{"companyName"}, CaseInsensitive: true, ActiveOnly: true},
	{Collection: Forms, Fields: []string{"formId", "formRev"}, CaseInsensitive: true, ActiveOnly: true},
	{Collection: DocumentIDs, Fields: []string{"docId"}, CaseInsensitive: true, ActiveOnly: true},
	{Collection: ProcessItems, Fields: []string{"categoryName"}, CaseInsensitive: true, ActiveOnly: true},
	{Collection: Tasks, Fields: []string{"processItem", "step"}, CaseInsensitive: true, ActiveOnly: true},
	{Collection: MPIs, Fields: []string{"jobNumber"}},
	{Collection: MPIs, Fields: []string{"mpiNumber"}},
}
