// Package provider defines the boundary to the remote personalization
// service. The service itself is an external collaborator: curator only
// depends on these interfaces and error conditions, never on a concrete
// SDK.
package provider

import (
	"context"
	"errors"

	"github.com/curator-ml/curator/pkg/resource"
)

// Fields is a flat map of resource field values as exchanged with the
// remote API. Values are decoded JSON types plus time.Time for the
// timestamp fields.
type Fields = map[string]any

// Result is a remote API response envelope. Describe responses nest the
// resource fields under the kind key (e.g. {"campaign": {...}});
// create and update responses carry a top-level "<kind>Arn" key.
type Result = map[string]any

// Sentinel conditions surfaced by the remote service. Implementations
// wrap these so callers can test with errors.Is.
var (
	// ErrNotFound indicates the described resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrResourceInUse indicates a concurrent mutation holds the
	// resource (create on resume, in-flight update).
	ErrResourceInUse = errors.New("resource in use")

	// ErrLimitExceeded indicates a service capacity limit. Whether it
	// is retryable depends on the kind's soft-limit trait.
	ErrLimitExceeded = errors.New("resource limit exceeded")
)

// Page is one page of a listing.
type Page struct {
	Items []Fields

	// NextToken is empty on the final page.
	NextToken string
}

// Provider is the remote resource API surface the reconciliation engine
// drives. All calls are synchronous and side-effect free except Create
// and Update.
type Provider interface {
	// Create provisions a resource and returns the "<kind>Arn" result
	// envelope. The resource is not guaranteed to be queryable
	// immediately after Create returns.
	Create(ctx context.Context, kind resource.Kind, fields Fields) (Result, error)

	// Describe returns the resource description nested under the kind
	// key, or an error wrapping ErrNotFound.
	Describe(ctx context.Context, kind resource.Kind, arn string) (Result, error)

	// Update mutates a live resource. Kinds without update support
	// reject the call.
	Update(ctx context.Context, kind resource.Kind, arn string, fields Fields) (Result, error)

	// List returns one page of the children of parentARN. A root kind
	// lists with an empty parentARN.
	List(ctx context.Context, kind resource.Kind, parentARN, pageToken string) (Page, error)
}

// ListAll drains every page of a listing.
func ListAll(ctx context.Context, p Provider, kind resource.Kind, parentARN string) ([]Fields, error) {
	var items []Fields
	token := ""
	for {
		page, err := p.List(ctx, kind, parentARN, token)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		if page.NextToken == "" {
			return items, nil
		}
		token = page.NextToken
	}
}
