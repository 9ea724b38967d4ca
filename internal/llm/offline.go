package llm

import (
	"context"
	"fmt"
)

// OfflineClient is used when no model is configured. It always reports the
// collaborator as unavailable so the planner and synthesizer take their
// deterministic fallback paths.
type OfflineClient struct {
	section string
}

// NewOfflineClient creates an offline client for a config section.
func NewOfflineClient(section string) *OfflineClient {
	return &OfflineClient{section: section}
}

// Name returns offline:section.
func (o *OfflineClient) Name() string { return "offline:" + o.section }

// Generate always fails with ErrCollaboratorUnavailable.
func (o *OfflineClient) Generate(ctx context.Context, _ []Message, _ Options) (Response, error) {
	return Response{}, unavailable("offline", fmt.Errorf("no model configured for %s", o.section))
}
