package policies

import "context"

// Notifier delivers fire-and-forget notifications. The engine supplies only
// the template name and the data to fill it; message bodies are built elsewhere.
type Notifier interface {
	Send(ctx context.Context, to string, template string, data any) error
}

const (
	TemplateVisitApproved = "visit.approved"
	TemplateVisitRejected = "visit.rejected"
)
