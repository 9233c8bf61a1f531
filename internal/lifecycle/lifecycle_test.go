package lifecycle

import (
	"context"
	"testing"
)

func TestCreate_RejectsMissingFields(t *testing.T) {
	c := New(nil, nil, nil, true, false)
	_, err := c.Create(context.Background(), CreateRequest{})
	if err != ErrInvalidArgument {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestNewID_HasCampaignPrefix(t *testing.T) {
	id := newID()
	if len(id) < len("camp_") || id[:5] != "camp_" {
		t.Fatalf("expected camp_ prefix, got %q", id)
	}
}
