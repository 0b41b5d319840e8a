package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/shaharia-lab/inquiry-dispatch/internal/service"
	"github.com/shaharia-lab/inquiry-dispatch/internal/storage"
)

// MockInquiryService is a mock implementation of service.InquiryService.
type MockInquiryService struct {
	mock.Mock
}

//nolint:revive
func (m *MockInquiryService) Submit(ctx context.Context, in service.Inquiry) (*service.Receipt, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Receipt), args.Error(1)
}

//nolint:revive
func (m *MockInquiryService) VerifySMTP(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

//nolint:revive
func (m *MockInquiryService) Channels() service.ChannelSummary {
	args := m.Called()
	return args.Get(0).(service.ChannelSummary)
}

//nolint:revive
func (m *MockInquiryService) ListDeliveries(ctx context.Context, limit int) ([]storage.NotificationLogEntry, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.NotificationLogEntry), args.Error(1)
}
