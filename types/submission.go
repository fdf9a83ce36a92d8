package types

// Submission is a single file handed to the ingestion coordinator by one of
// the per-surface adapters. The coordinator never branches on the concrete
// variant: each origin knows how to describe itself as a Document skeleton.
type Submission interface {
	Kind() Source
	Bytes() []byte
	// DeclaredContentType may be empty; the document processor sniffs then.
	DeclaredContentType() string
	// Describe returns a Document carrying the origin metadata. ID, content
	// hash and timestamps are filled in by the coordinator.
	Describe() Document
}

// UploadSubmission is a file posted directly to the upload endpoint.
type UploadSubmission struct {
	Filename    string
	Data        []byte
	ContentType string
	SourceID    string
	UploadedBy  string
}

func (s UploadSubmission) Kind() Source                { return SourceUpload }
func (s UploadSubmission) Bytes() []byte               { return s.Data }
func (s UploadSubmission) DeclaredContentType() string { return s.ContentType }

func (s UploadSubmission) Describe() Document {
	return Document{
		Filename:    s.Filename,
		Source:      SourceUpload,
		SourceID:    s.SourceID,
		UploadedBy:  s.UploadedBy,
		ContentType: s.ContentType,
		SizeBytes:   int64(len(s.Data)),
	}
}

// ChatSubmission is an attachment forwarded from a chat message.
type ChatSubmission struct {
	Filename       string
	Data           []byte
	ContentType    string
	MessageID      string
	ConversationID string
	UploadedBy     string
}

func (s ChatSubmission) Kind() Source                { return SourceTeams }
func (s ChatSubmission) Bytes() []byte               { return s.Data }
func (s ChatSubmission) DeclaredContentType() string { return s.ContentType }

func (s ChatSubmission) Describe() Document {
	return Document{
		Filename:       s.Filename,
		Source:         SourceTeams,
		SourceID:       s.MessageID,
		UploadedBy:     s.UploadedBy,
		ContentType:    s.ContentType,
		SizeBytes:      int64(len(s.Data)),
		ConversationID: s.ConversationID,
	}
}

// TaskSubmission is an attachment discovered on a task board item.
type TaskSubmission struct {
	Filename     string
	Data         []byte
	ContentType  string
	AttachmentID string
	TaskID       string
	TaskTitle    string
	UploadedBy   string
}

func (s TaskSubmission) Kind() Source                { return SourcePlanner }
func (s TaskSubmission) Bytes() []byte               { return s.Data }
func (s TaskSubmission) DeclaredContentType() string { return s.ContentType }

func (s TaskSubmission) Describe() Document {
	return Document{
		Filename:    s.Filename,
		Source:      SourcePlanner,
		SourceID:    s.AttachmentID,
		UploadedBy:  s.UploadedBy,
		ContentType: s.ContentType,
		SizeBytes:   int64(len(s.Data)),
		TaskID:      s.TaskID,
		TaskTitle:   s.TaskTitle,
	}
}
