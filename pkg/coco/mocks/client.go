// Package mocks provides testify mocks for the coco client.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/whr-oam/coco-cli/pkg/coco"
)

// Client is a mock of coco.Client.
type Client struct {
	mock.Mock
}

// Run provides a mock function.
func (m *Client) Run(ctx context.Context, sub coco.Submission) (*coco.Outcome, error) {
	args := m.Called(ctx, sub)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*coco.Outcome), args.Error(1)
}

// Health provides a mock function.
func (m *Client) Health(ctx context.Context) (*coco.HealthReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*coco.HealthReport), args.Error(1)
}

var _ coco.Client = (*Client)(nil)
