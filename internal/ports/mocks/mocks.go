package mocks

import (
	"context"
	"encoding/json"

	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/ports"
	"github.com/stretchr/testify/mock"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

type MockComputePort struct {
	mock.Mock
}

func NewMockComputePort(t testingT) *MockComputePort {
	m := &MockComputePort{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockComputePort) Compute(ctx context.Context, req ports.ComputeRequest, notify func(ports.Notification)) (json.RawMessage, error) {
	args := m.Called(ctx, req, notify)
	var raw json.RawMessage
	if v := args.Get(0); v != nil {
		raw = v.(json.RawMessage)
	}
	return raw, args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func NewMockNotifier(t testingT) *MockNotifier {
	m := &MockNotifier{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockNotifier) Notify(ctx context.Context, processID string, n ports.Notification) {
	m.Called(ctx, processID, n)
}

type MockValueCache struct {
	mock.Mock
}

func NewMockValueCache(t testingT) *MockValueCache {
	m := &MockValueCache{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockValueCache) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	args := m.Called(ctx, key)
	var raw json.RawMessage
	if v := args.Get(0); v != nil {
		raw = v.(json.RawMessage)
	}
	return raw, args.Bool(1), args.Error(2)
}

func (m *MockValueCache) Put(ctx context.Context, key string, raw json.RawMessage) error {
	args := m.Called(ctx, key, raw)
	return args.Error(0)
}

type MockStoragePort struct {
	mock.Mock
}

func NewMockStoragePort(t testingT) *MockStoragePort {
	m := &MockStoragePort{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockStoragePort) GetProcess(ctx context.Context, id string) (*domain.Process, error) {
	args := m.Called(ctx, id)
	var p *domain.Process
	if v := args.Get(0); v != nil {
		p = v.(*domain.Process)
	}
	return p, args.Error(1)
}

func (m *MockStoragePort) PutProcess(ctx context.Context, proc *domain.Process) error {
	return m.Called(ctx, proc).Error(0)
}

func (m *MockStoragePort) GetChain(ctx context.Context, id string) (*domain.FPL, error) {
	args := m.Called(ctx, id)
	var el *domain.FPL
	if v := args.Get(0); v != nil {
		el = v.(*domain.FPL)
	}
	return el, args.Error(1)
}

func (m *MockStoragePort) PutChain(ctx context.Context, element domain.FPL) error {
	return m.Called(ctx, element).Error(0)
}

func (m *MockStoragePort) PutBCO(ctx context.Context, doc *domain.BCO) (string, error) {
	args := m.Called(ctx, doc)
	return args.String(0), args.Error(1)
}

func (m *MockStoragePort) GetBCO(ctx context.Context, objectID string) (*domain.BCO, error) {
	args := m.Called(ctx, objectID)
	var doc *domain.BCO
	if v := args.Get(0); v != nil {
		doc = v.(*domain.BCO)
	}
	return doc, args.Error(1)
}

func (m *MockStoragePort) Close() error {
	return m.Called().Error(0)
}

var (
	_ ports.ComputePort = (*MockComputePort)(nil)
	_ ports.Notifier    = (*MockNotifier)(nil)
	_ ports.ValueCache  = (*MockValueCache)(nil)
	_ ports.StoragePort = (*MockStoragePort)(nil)
)
