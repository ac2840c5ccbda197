package ir

// Version constants for the document schema and library.
const (
	// DocumentVersion is the serialized document schema version.
	DocumentVersion = "1"

	// LibraryVersion is the sspace library version.
	LibraryVersion = "0.1.0"
)
