package search

// ComponentIndex defines the interface for search-cache operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type ComponentIndex interface {
	UpsertComponent(c ComponentRow, body string) error
	DeleteComponent(path string) error
	GetChecksum(path string) (string, error)
	GetComponent(path string) (*ComponentRow, error)
	ListComponents(limit, offset int, typ, domain, sort string) ([]ComponentRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

// Verify *DB satisfies ComponentIndex at compile time.
var _ ComponentIndex = (*DB)(nil)
