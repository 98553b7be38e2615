package cli

import (
	"context"
	"os"
	"testing"

	"github.com/gabapcia/escrowledger/internal/txledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type apiServerMock struct {
	mock.Mock
}

func (m *apiServerMock) Start(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *apiServerMock) Shutdown(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type ledgerServiceMock struct {
	mock.Mock
}

func (m *ledgerServiceMock) Record(ctx context.Context, txHash string) (txledger.TransferRecord, bool, error) {
	args := m.Called(ctx, txHash)
	return args.Get(0).(txledger.TransferRecord), args.Bool(1), args.Error(2)
}

func (m *ledgerServiceMock) FindByParticipant(ctx context.Context, participant string) ([]txledger.TransferRecord, error) {
	args := m.Called(ctx, participant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]txledger.TransferRecord), args.Error(1)
}

func TestRun(t *testing.T) {
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
	}()

	t.Run("should show help without error", func(t *testing.T) {
		os.Args = []string{"escrowledger", "--help"}

		err := Run(t.Context(), new(apiServerMock), new(ledgerServiceMock))
		assert.NoError(t, err)
	})

	t.Run("should surface a failing server from serve", func(t *testing.T) {
		api := new(apiServerMock)
		api.On("Start", mock.Anything).Return(assert.AnError).Once()

		os.Args = []string{"escrowledger", "serve"}

		err := Run(t.Context(), api, new(ledgerServiceMock))
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("should record a transaction by hash", func(t *testing.T) {
		hash := "0x52ad4947823d4f47e2dfbb0dca1a5cedd162cca4e1712c9e5e37563e27be8cb6"

		ledger := new(ledgerServiceMock)
		ledger.On("Record", mock.Anything, hash).
			Return(txledger.TransferRecord{TxHash: hash}, true, nil).
			Once()

		os.Args = []string{"escrowledger", "record", "--tx-hash", hash}

		err := Run(t.Context(), new(apiServerMock), ledger)
		assert.NoError(t, err)
		ledger.AssertExpectations(t)
	})

	t.Run("should fail record without the tx-hash flag", func(t *testing.T) {
		os.Args = []string{"escrowledger", "record"}

		err := Run(t.Context(), new(apiServerMock), new(ledgerServiceMock))
		assert.Error(t, err)
	})

	t.Run("should list transfers for an address", func(t *testing.T) {
		address := "0x90f8bf6a479f320ead074411a4b0e7944ea8c9c1"

		ledger := new(ledgerServiceMock)
		ledger.On("FindByParticipant", mock.Anything, address).
			Return([]txledger.TransferRecord{}, nil).
			Once()

		os.Args = []string{"escrowledger", "transfers", "--address", address}

		err := Run(t.Context(), new(apiServerMock), ledger)
		assert.NoError(t, err)
		ledger.AssertExpectations(t)
	})

	t.Run("should surface ledger failures", func(t *testing.T) {
		address := "0x90f8bf6a479f320ead074411a4b0e7944ea8c9c1"

		ledger := new(ledgerServiceMock)
		ledger.On("FindByParticipant", mock.Anything, address).
			Return(nil, assert.AnError).
			Once()

		os.Args = []string{"escrowledger", "transfers", "--address", address}

		err := Run(t.Context(), new(apiServerMock), ledger)
		assert.ErrorIs(t, err, assert.AnError)
	})
}
