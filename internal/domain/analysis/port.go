package analysis

import "context"

// Repository port (interface for persistence)
type Repository interface {
	CreateJob(ctx context.Context, j *Job) error
	UpdateStatus(ctx context.Context, j *Job) error
	Get(ctx context.Context, id JobID) (*Job, error)
	Latest(ctx context.Context, limit int) ([]*Job, error)

	AppendLog(ctx context.Context, e *LogEntry) error
	Logs(ctx context.Context, id JobID, limit int) ([]*LogEntry, error)
}

// Fragment is one chunk of text produced by the capability.
type Fragment struct {
	Text string
}

// FragmentStream yields fragments until io.EOF.
type FragmentStream interface {
	Recv() (Fragment, error)
	Close() error
}

// Invocation is a single capability call bound to one worker and session.
type Invocation struct {
	Worker  Worker
	System  string
	Prompt  string
	Session string
}

// Capability port (interface for the external reasoning engine)
type Capability interface {
	Invoke(ctx context.Context, inv Invocation) (FragmentStream, error)
}

// ArtifactStore port (interface for artifact storage)
type ArtifactStore interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
	UploadAndCleanup(ctx context.Context, localPath, key string) (string, error)
}

// Renderer port: turns a finished report into a local artifact file.
type Renderer interface {
	Render(report, target string, id JobID, score int) (string, error)
}
