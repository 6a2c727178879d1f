package storage

// NotFoundError is returned when a lookup target doesn't exist in the store.
// It is expected during normal matching and is not an error worth logging.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "node not found"
	}

	return "node not found: " + e.ID
}

// DuplicateIDError is returned when inserting a node whose id already
// exists. The existing node is never overwritten.
type DuplicateIDError struct {
	ID string
}

func (e DuplicateIDError) Error() string {
	return "node id already exists: " + e.ID
}

// IntegrityError is returned when a write would corrupt the forest: a parent
// reference to a missing node, or a parent in a different conversation.
type IntegrityError struct {
	Reason string
}

func (e IntegrityError) Error() string {
	if e.Reason == "" {
		return "tree integrity violation"
	}

	return "tree integrity violation: " + e.Reason
}
