package subscription

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/callpilot/console-realtime/internal/events"
)

// Errors
var (
	ErrEmptyEndpoint = errors.New("endpoint is required")
	ErrEmptyID       = errors.New("subscription id is required")
	ErrBadScheme     = errors.New("endpoint scheme must be ws or wss")
)

// Descriptor identifies a subscription and the event types it filters on.
type Descriptor struct {
	ID         string
	EventTypes []string // Empty subscribes to every type
}

// clone returns a deep copy of d.
func (d Descriptor) clone() Descriptor {
	out := Descriptor{ID: d.ID}
	if len(d.EventTypes) > 0 {
		out.EventTypes = append([]string(nil), d.EventTypes...)
	}
	return out
}

// BuildURL derives the subscription target
// <endpoint>/subscribe/<id>?types=<t1,t2,...>. With no event types the
// filter is "all". A fragment on the endpoint is dropped.
func BuildURL(endpoint string, desc Descriptor) (string, error) {
	if strings.TrimSpace(endpoint) == "" {
		return "", ErrEmptyEndpoint
	}
	if desc.ID == "" {
		return "", ErrEmptyID
	}

	base, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	switch base.Scheme {
	case "ws", "wss":
	default:
		return "", fmt.Errorf("%q: %w", base.Scheme, ErrBadScheme)
	}

	types := events.FilterAll
	if len(desc.EventTypes) > 0 {
		escaped := make([]string, len(desc.EventTypes))
		for i, t := range desc.EventTypes {
			escaped[i] = url.QueryEscape(t)
		}
		types = strings.Join(escaped, ",")
	}

	target := *base
	target.Fragment = ""
	target.RawFragment = ""
	target.Path = strings.TrimRight(base.Path, "/") + "/subscribe/" + desc.ID
	target.RawPath = strings.TrimRight(base.EscapedPath(), "/") + "/subscribe/" + url.PathEscape(desc.ID)

	// Query parameters already on the endpoint are kept ahead of the filter.
	target.RawQuery = "types=" + types
	if base.RawQuery != "" {
		target.RawQuery = base.RawQuery + "&" + target.RawQuery
	}

	return target.String(), nil
}
