package pipeline

// Defaults for statement import.
const (
	// DefaultDocumentType is the document type recorded for uploaded files.
	DefaultDocumentType = "BANK_STATEMENT"

	// DefaultModelName is the Gemini model used for extraction when the
	// config does not override it.
	DefaultModelName = "gemini-2.5-flash"

	// historyPaddingDays widens the statement's date range when loading
	// existing history for duplicate detection, so candidates near the
	// statement edges still see their matches.
	historyPaddingDays = 3
)
