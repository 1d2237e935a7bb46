package errors

import "strings"

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *CheckpointError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigInvalid(path string, cause error) *CheckpointError {
	return Wrap(cause, CategoryConfig, SeverityFatal, "configuration could not be parsed").
		WithContext("path", path)
}

func ValidationFailed(field, reason string) *CheckpointError {
	return New(CategoryValidation, SeverityFatal, "validation failed: "+field+": "+reason).
		WithContext("field", field).
		WithContext("reason", reason)
}

// ValidationErrors folds several field problems into one validation error.
func ValidationErrors(problems []string) *CheckpointError {
	return New(CategoryValidation, SeverityFatal, "invalid configuration: "+strings.Join(problems, "; ")).
		WithContext("problems", problems)
}

// Pipeline errors

func PrepareFailed(command string, cause error) *CheckpointError {
	return Wrap(cause, CategoryPrepare, SeverityFatal, "prepare command failed").
		WithContext("command", command)
}

func GeneratorFailed(version string, exitCode int, cause error) *CheckpointError {
	return Wrap(cause, CategoryGenerator, SeverityFatal, "checkpoint generation failed").
		WithContext("version", version).
		WithContext("exit_code", exitCode)
}

func GeneratorTimeout(version string, cause error) *CheckpointError {
	return WrapRetryable(cause, CategoryGenerator, SeverityFatal, "checkpoint generation timed out").
		WithContext("version", version)
}

func ArchiveFailed(path string, cause error) *CheckpointError {
	return Wrap(cause, CategoryArchive, SeverityFatal, "archive creation failed").
		WithContext("path", path)
}

func FileSystemError(operation string, cause error) *CheckpointError {
	return Wrap(cause, CategoryFileSystem, SeverityFatal, "filesystem operation failed").
		WithContext("operation", operation)
}

// Storage errors

func StorageFailed(operation, key string, cause error) *CheckpointError {
	return WrapRetryable(cause, CategoryStorage, SeverityFatal, "object storage "+operation+" failed").
		WithContext("key", key)
}

func StorageAuth(cause error) *CheckpointError {
	return Wrap(cause, CategoryAuth, SeverityFatal, "object storage credentials unavailable")
}

// History errors

func HistoryFailed(operation string, cause error) *CheckpointError {
	return Wrap(cause, CategoryHistory, SeverityError, "run history "+operation+" failed")
}

// Internal errors

func InternalError(message string, cause error) *CheckpointError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
