package flow

// PublishMode identifies how the publish subsystem materializes a task
// output at its user-visible destination. The enumeration is owned by the
// publishing subsystem; the cleanup engine only compares values against
// the set that is incompatible with eager deletion.
type PublishMode string

const (
	// PublishCopy copies the file content, following symlinks.
	PublishCopy PublishMode = "copy"

	// PublishMove moves the file to the destination.
	PublishMove PublishMode = "move"

	// PublishLink hard-links the file to the destination.
	PublishLink PublishMode = "link"

	// PublishCopyNoFollow copies the file without following symlinks,
	// so a symlinked output is published as a symlink.
	PublishCopyNoFollow PublishMode = "copyNoFollow"

	// PublishRelLink creates a relative symlink to the work directory.
	PublishRelLink PublishMode = "rellink"

	// PublishSymlink creates an absolute symlink to the work directory.
	PublishSymlink PublishMode = "symlink"
)

// Incompatible reports whether the mode leaves the published destination
// referencing the task working directory. Deleting the work directory
// would break such a destination, so processes publishing with one of
// these modes must not take part in eager cleanup.
func (m PublishMode) Incompatible() bool {
	switch m {
	case PublishCopyNoFollow, PublishRelLink, PublishSymlink:
		return true
	}
	return false
}
