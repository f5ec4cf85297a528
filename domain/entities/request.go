package entities

import "time"

// AdmissionRequest describes an action pending authorization. Requests are
// ephemeral: they are evaluated and discarded, never persisted.
type AdmissionRequest struct {
	// Operation is the action verb, e.g. "create", "update", "exec".
	Operation string `json:"operation"`

	// Resource is the resource kind the operation targets, e.g. "pods".
	Resource string `json:"resource"`

	// Subresource is the optional subresource, e.g. "exec", "portforward".
	Subresource string `json:"subresource,omitempty"`

	// Namespace is the namespace the target resource lives in. Empty for
	// cluster-scoped resources.
	Namespace string `json:"namespace,omitempty"`

	// Name is the name of the target resource, if known at admission time.
	Name string `json:"name,omitempty"`

	// User is the authenticated identity performing the operation.
	User string `json:"user"`

	// Groups are the group memberships of the requester.
	Groups []string `json:"groups,omitempty"`

	// Labels and Annotations are the metadata of the target resource.
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`

	// Timestamp is when the request entered the admission chain.
	Timestamp time.Time `json:"timestamp"`
}
