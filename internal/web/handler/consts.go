package handler

const (
	// RootPath is the root path of a route group.
	RootPath = "/"

	// ErrNilADFatalLogMsg is used if the app or deps pointer is nil.
	ErrNilADFatalLogMsg = "app or deps is nil"
)
