package domain

// Request is a citizen service request as persisted and returned by lookups.
type Request struct {
	ReferenceID         string          `json:"referenceId"`
	FullName            string          `json:"fullName"`
	Phone               string          `json:"phone"`
	Email               string          `json:"email,omitempty"`
	NationalID          string          `json:"nationalId"`
	PreferredContact    string          `json:"preferredContact" enum:"phone,sms,email,in-person"`
	Category            string          `json:"category"`
	ServiceType         string          `json:"serviceType"`
	Priority            string          `json:"priority" enum:"low,medium,high"`
	Title               string          `json:"title"`
	Description         string          `json:"description"`
	Attachments         []Attachment    `json:"attachments"`
	Status              Status          `json:"status" enum:"submitted,under-review,in-progress,completed,rejected"`
	Progress            int             `json:"progress" minimum:"0" maximum:"100"`
	SubmittedAt         string          `json:"submittedAt" format:"date-time"`
	LastUpdated         string          `json:"lastUpdated" format:"date-time"`
	Timeline            []TimelineEvent `json:"timeline"`
	AssignedTo          string          `json:"assignedTo,omitempty"`
	Notes               string          `json:"notes,omitempty"`
	EstimatedCompletion string          `json:"estimatedCompletion,omitempty" format:"date-time"`
}

// Clone returns a copy that shares no slices with r.
func (r Request) Clone() Request {
	out := r
	out.Attachments = append([]Attachment(nil), r.Attachments...)
	out.Timeline = append([]TimelineEvent(nil), r.Timeline...)
	return out
}

// Attachment kinds.
const (
	AttachmentOriginal   = "original"
	AttachmentResponse   = "response"
	AttachmentAdditional = "additional"
)

// Attachment is file metadata only; content is never stored.
type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type,omitempty"`
	Kind string `json:"kind" enum:"original,response,additional"`
}

// TimelineEvent is one entry of a request's audit trail. Status holds the display label.
type TimelineEvent struct {
	Date        string `json:"date" format:"date-time"`
	Status      string `json:"status"`
	Description string `json:"description"`
	By          string `json:"by"`
}

type ContactSubmission struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	Subject     string `json:"subject"`
	Category    string `json:"category,omitempty"`
	Message     string `json:"message"`
	Status      string `json:"status"`
	SubmittedAt string `json:"submittedAt" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entityKind"`
	EntityID   string `json:"entityId,omitempty"`
	ActorID    string `json:"actorId"`
	Payload    string `json:"payload"`
}

// Staff roles.
const (
	RoleAdmin   = "admin"
	RoleOfficer = "officer"
	RoleViewer  = "viewer"
)

type StaffUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Role         string `json:"role" enum:"admin,officer,viewer"`
	Department   string `json:"department,omitempty"`
	PasswordHash string `json:"-"`
	CreatedAt    string `json:"createdAt" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	StaffID   string `json:"staffId"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"-"`
	CreatedAt string `json:"createdAt" format:"date-time"`
}
