package record

// Reader provides read access to the fields of a record.
type Reader interface {
	// Get returns the value of the field and whether it exists.
	Get(key string) (value interface{}, ok bool)
	// Keys returns the sorted names of all fields.
	Keys() []string
}

// Record provides an interface for uniformly handling base records wrapped
// by a transaction.
type Record interface {
	Reader

	// Merge sets all changes and removes all deletes in a single step.
	// Either all changes are applied or, if an error is returned, none.
	// Deleting a field that does not exist is not an error.
	Merge(changes map[string]interface{}, deletes []string) error
}
