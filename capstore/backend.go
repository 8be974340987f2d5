package capstore

// backend holds records in named buckets of sorted keys. Bolt serves disk
// stores; memBackend serves OpenMemory.
type backend interface {
	Begin(writable bool) (backendTx, error)
	Close() error
}

// backendTx sees a consistent snapshot. Slices it returns are valid until
// Rollback or Commit.
type backendTx interface {
	// Shelf returns nil when the bucket does not exist and create is false.
	Shelf(name string, create bool) (shelf, error)
	Commit() error

	// Rollback is a no-op after Commit.
	Rollback() error
}

type shelf interface {
	Get(key []byte) []byte
	Put(key, rec []byte) error
	Delete(key []byte) error
	Len() int

	// Scan visits keys having the given prefix in ascending order until f
	// returns an error.
	Scan(prefix []byte, f func(key, rec []byte) error) error
}
