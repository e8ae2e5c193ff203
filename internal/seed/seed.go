// Package seed holds the fixed demonstration requests that lookups fall back to
// when a reference is absent from the store. The records are read-only.
package seed

import "citizenportal/internal/domain"

var records = []domain.Request{
	{
		ReferenceID: "REQ-2024-001",
		Title:       "Birth Certificate Request",
		Category:    "identity",
		ServiceType: "birth-certificate",
		Status:      domain.StatusCompleted,
		Priority:    "medium",
		SubmittedAt: "2024-01-15T10:00:00Z",
		LastUpdated: "2024-01-20T14:30:00Z",
		Progress:    100,
		AssignedTo:  "Civil Registry Office",
		Notes:       "Certificate has been issued and is ready for collection.",
		Timeline: []domain.TimelineEvent{
			{Date: "2024-01-15T10:00:00Z", Status: "Submitted", Description: "Request submitted and received", By: "System"},
			{Date: "2024-01-16T09:15:00Z", Status: "Under Review", Description: "Documents verified and request approved for processing", By: "Registry Officer"},
			{Date: "2024-01-18T11:45:00Z", Status: "In Progress", Description: "Certificate generation in progress", By: "Processing Unit"},
			{Date: "2024-01-20T14:30:00Z", Status: "Completed", Description: "Birth certificate issued and ready for collection", By: "Civil Registry Office"},
		},
		Attachments: []domain.Attachment{
			{ID: "1", Name: "birth_certificate.pdf", Kind: domain.AttachmentResponse},
			{ID: "2", Name: "collection_notice.pdf", Kind: domain.AttachmentAdditional},
		},
	},
	{
		ReferenceID:         "REQ-2024-002",
		Title:               "Business License Application",
		Category:            "business",
		ServiceType:         "license-application",
		Status:              domain.StatusInProgress,
		Priority:            "high",
		SubmittedAt:         "2024-01-18T14:20:00Z",
		LastUpdated:         "2024-01-22T16:10:00Z",
		Progress:            75,
		EstimatedCompletion: "2024-01-25T17:00:00Z",
		AssignedTo:          "Business Registration Office",
		Notes:               "Final verification in progress. License expected to be ready by January 25.",
		Timeline: []domain.TimelineEvent{
			{Date: "2024-01-18T14:20:00Z", Status: "Submitted", Description: "Business license application submitted", By: "System"},
			{Date: "2024-01-19T10:30:00Z", Status: "Under Review", Description: "Application documents reviewed and approved", By: "Business Officer"},
			{Date: "2024-01-22T16:10:00Z", Status: "In Progress", Description: "Final verification and license preparation in progress", By: "Registration Unit"},
		},
		Attachments: []domain.Attachment{
			{ID: "3", Name: "business_application.pdf", Kind: domain.AttachmentOriginal},
			{ID: "4", Name: "verification_checklist.pdf", Kind: domain.AttachmentAdditional},
		},
	},
}

// Find returns a copy of the seed record with the exact reference id.
func Find(referenceID string) (domain.Request, bool) {
	for _, r := range records {
		if r.ReferenceID == referenceID {
			return r.Clone(), true
		}
	}
	return domain.Request{}, false
}

// Requests returns copies of every seed record.
func Requests() []domain.Request {
	out := make([]domain.Request, 0, len(records))
	for _, r := range records {
		out = append(out, r.Clone())
	}
	return out
}
