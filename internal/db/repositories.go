package db

// Repositories provides access to all database repositories
type Repositories struct {
	Compositions *CompositionRepository
}

// NewRepositories creates a new repository collection
func NewRepositories(db *DB) *Repositories {
	return &Repositories{
		Compositions: NewCompositionRepository(db),
	}
}
