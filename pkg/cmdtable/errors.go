package cmdtable

// UnknownCommandError indicates a code or mnemonic absent from the registry.
type UnknownCommandError struct {
	Key string
}

// Error implements error.
func (e *UnknownCommandError) Error() string {
	return "unknown command " + e.Key
}
