package session

import (
	"errors"
	"fmt"
)

// Session actions have three failure kinds the UI must distinguish:
// validation failures stay local, persistence failures mean nothing was
// saved by this call, upload failures mean the draft itself is saved but
// some attachments are not.

// ErrSessionClosed is returned by actions on a cancelled session.
var ErrSessionClosed = errors.New("session is closed")

// ValidationError carries the field error map and, when the submission
// validator produced it, the step the user should be routed to.
type ValidationError struct {
	Fields map[string]string
	Step   int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

// PersistenceError wraps a failed draft create/update/submit call. Session
// state is left untouched so the user can retry without re-entering data.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("draft %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// UploadError wraps one or more failed attachment calls. By the time it is
// returned the draft itself is saved — the message must not read as "all
// work lost". Retrying is safe: already-synced files are skipped.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("draft saved, but some files failed to upload: %v", e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// DeleteError wraps a failed remote file delete. The file stays in the
// session, marked as errored, so the user can retry the delete.
type DeleteError struct {
	Err error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("failed to delete file: %v", e.Err)
}

func (e *DeleteError) Unwrap() error { return e.Err }
