package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gabapcia/escrowledger/internal/escrow"
	"github.com/gabapcia/escrowledger/internal/identity"
	"github.com/gabapcia/escrowledger/internal/txledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

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

type escrowServiceMock struct {
	mock.Mock
}

func (m *escrowServiceMock) Create(ctx context.Context, input escrow.CreateInput, requester string) (escrow.AgreementRecord, error) {
	args := m.Called(ctx, input, requester)
	return args.Get(0).(escrow.AgreementRecord), args.Error(1)
}

func (m *escrowServiceMock) Get(ctx context.Context, contractAddress string) (escrow.AgreementRecord, error) {
	args := m.Called(ctx, contractAddress)
	return args.Get(0).(escrow.AgreementRecord), args.Error(1)
}

func (m *escrowServiceMock) ListForParticipant(ctx context.Context, participant string) ([]escrow.AgreementRecord, error) {
	args := m.Called(ctx, participant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]escrow.AgreementRecord), args.Error(1)
}

func (m *escrowServiceMock) Transition(ctx context.Context, contractAddress string, next escrow.Status, settlementTxHash, requester string) (escrow.AgreementRecord, error) {
	args := m.Called(ctx, contractAddress, next, settlementTxHash, requester)
	return args.Get(0).(escrow.AgreementRecord), args.Error(1)
}

type identityServiceMock struct {
	mock.Mock
}

func (m *identityServiceMock) Register(ctx context.Context, username, secret, walletAddress string) (identity.Identity, error) {
	args := m.Called(ctx, username, secret, walletAddress)
	return args.Get(0).(identity.Identity), args.Error(1)
}

func (m *identityServiceMock) Authenticate(ctx context.Context, username, secret string) (identity.Identity, error) {
	args := m.Called(ctx, username, secret)
	return args.Get(0).(identity.Identity), args.Error(1)
}

func (m *identityServiceMock) Lookup(ctx context.Context, username string) (identity.Identity, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(identity.Identity), args.Error(1)
}

const (
	testTxHash   = "0x52ad4947823d4f47e2dfbb0dca1a5cedd162cca4e1712c9e5e37563e27be8cb6"
	testContract = "0x5fbdb2315678afecb367f032d93f642f64180aa3"
	testWallet   = "0x90f8bf6a479f320ead074411a4b0e7944ea8c9c1"
)

type fixtures struct {
	ledger     *ledgerServiceMock
	agreements *escrowServiceMock
	identities *identityServiceMock
	handler    http.Handler
}

func newFixtures() fixtures {
	f := fixtures{
		ledger:     new(ledgerServiceMock),
		agreements: new(escrowServiceMock),
		identities: new(identityServiceMock),
	}
	f.handler = New(":0", f.ledger, f.agreements, f.identities).routes()
	return f
}

// caller wires the identity the basic auth middleware should resolve.
func (f fixtures) caller() identity.Identity {
	resolved := identity.Identity{Username: "alice42", WalletAddress: testWallet}
	f.identities.On("Authenticate", mock.Anything, "alice42", "secret123").Return(resolved, nil)
	return resolved
}

func do(handler http.Handler, method, target, body string, authorize bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if authorize {
		req.SetBasicAuth("alice42", "secret123")
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newFixtures()

	rec := do(f.handler, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRecordTransaction(t *testing.T) {
	body := `{"txHash": "` + testTxHash + `"}`

	t.Run("first record answers 201", func(t *testing.T) {
		f := newFixtures()
		f.ledger.On("Record", mock.Anything, testTxHash).
			Return(txledger.TransferRecord{TxHash: testTxHash, Status: "success"}, true, nil).
			Once()

		rec := do(f.handler, http.MethodPost, "/transactions/record", body, false)
		require.Equal(t, http.StatusCreated, rec.Code)

		var got txledger.TransferRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, testTxHash, got.TxHash)
	})

	t.Run("repeat answers 200 with the stored record", func(t *testing.T) {
		f := newFixtures()
		f.ledger.On("Record", mock.Anything, testTxHash).
			Return(txledger.TransferRecord{TxHash: testTxHash}, false, nil).
			Once()

		rec := do(f.handler, http.MethodPost, "/transactions/record", body, false)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("malformed body answers 400", func(t *testing.T) {
		f := newFixtures()

		rec := do(f.handler, http.MethodPost, "/transactions/record", "{not json", false)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		f.ledger.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	})

	t.Run("status mapping", func(t *testing.T) {
		for name, tc := range map[string]struct {
			err    error
			status int
		}{
			"unknown hash":        {txledger.ErrTransactionNotFound, http.StatusNotFound},
			"pending":             {txledger.ErrTransactionPending, http.StatusUnprocessableEntity},
			"reverted":            {txledger.ErrTransactionFailed, http.StatusUnprocessableEntity},
			"oracle down":         {txledger.ErrOracleUnavailable, http.StatusServiceUnavailable},
			"storage failure 500": {assert.AnError, http.StatusInternalServerError},
		} {
			t.Run(name, func(t *testing.T) {
				f := newFixtures()
				f.ledger.On("Record", mock.Anything, testTxHash).
					Return(txledger.TransferRecord{}, false, tc.err).
					Once()

				rec := do(f.handler, http.MethodPost, "/transactions/record", body, false)
				assert.Equal(t, tc.status, rec.Code)
			})
		}
	})

	t.Run("internal errors are not leaked", func(t *testing.T) {
		f := newFixtures()
		f.ledger.On("Record", mock.Anything, testTxHash).
			Return(txledger.TransferRecord{}, false, assert.AnError).
			Once()

		rec := do(f.handler, http.MethodPost, "/transactions/record", body, false)
		assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
	})
}

func TestListTransactions(t *testing.T) {
	f := newFixtures()
	f.ledger.On("FindByParticipant", mock.Anything, testWallet).
		Return([]txledger.TransferRecord{{TxHash: testTxHash}}, nil).
		Once()

	rec := do(f.handler, http.MethodGet, "/transactions/"+testWallet, "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []txledger.TransferRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, testTxHash, got[0].TxHash)
}

func TestIdentities(t *testing.T) {
	t.Run("register answers 201", func(t *testing.T) {
		f := newFixtures()
		f.identities.On("Register", mock.Anything, "alice42", "secret123", testWallet).
			Return(identity.Identity{Username: "alice42", WalletAddress: testWallet}, nil).
			Once()

		body := `{"username": "alice42", "secret": "secret123", "walletAddress": "` + testWallet + `"}`
		rec := do(f.handler, http.MethodPost, "/identities", body, false)
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.NotContains(t, rec.Body.String(), "secretHash")
	})

	t.Run("taken username answers 409", func(t *testing.T) {
		f := newFixtures()
		f.identities.On("Register", mock.Anything, "alice42", "secret123", testWallet).
			Return(identity.Identity{}, identity.ErrIdentityTaken).
			Once()

		body := `{"username": "alice42", "secret": "secret123", "walletAddress": "` + testWallet + `"}`
		rec := do(f.handler, http.MethodPost, "/identities", body, false)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("lookup", func(t *testing.T) {
		f := newFixtures()
		f.identities.On("Lookup", mock.Anything, "alice42").
			Return(identity.Identity{Username: "alice42", WalletAddress: testWallet}, nil).
			Once()

		rec := do(f.handler, http.MethodGet, "/identities/alice42", "", false)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown username answers 404", func(t *testing.T) {
		f := newFixtures()
		f.identities.On("Lookup", mock.Anything, "ghost").
			Return(identity.Identity{}, identity.ErrIdentityNotFound).
			Once()

		rec := do(f.handler, http.MethodGet, "/identities/ghost", "", false)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAgreementAuth(t *testing.T) {
	t.Run("missing credentials answer 401", func(t *testing.T) {
		f := newFixtures()

		rec := do(f.handler, http.MethodGet, "/agreements", "", false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
	})

	t.Run("bad credentials answer 401", func(t *testing.T) {
		f := newFixtures()
		f.identities.On("Authenticate", mock.Anything, "alice42", "secret123").
			Return(identity.Identity{}, identity.ErrInvalidCredentials).
			Once()

		rec := do(f.handler, http.MethodGet, "/agreements", "", true)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		f.agreements.AssertNotCalled(t, "ListForParticipant", mock.Anything, mock.Anything)
	})
}

func TestAgreements(t *testing.T) {
	createBody := `{
		"contractAddress": "` + testContract + `",
		"depositor": "` + testWallet + `",
		"arbiter": "0x22d491bde2303f2f43325b2108d26f1eaba1e32b",
		"beneficiary": "0xffcf8fdee72ac11b5c542428b35eef5769c409f0",
		"amount": "100",
		"token": "USDT"
	}`

	t.Run("create passes the caller wallet as requester", func(t *testing.T) {
		f := newFixtures()
		caller := f.caller()

		f.agreements.On("Create", mock.Anything, mock.AnythingOfType("escrow.CreateInput"), caller.WalletAddress).
			Return(escrow.AgreementRecord{ContractAddress: testContract, Status: escrow.StatusCreated}, nil).
			Once()

		rec := do(f.handler, http.MethodPost, "/agreements", createBody, true)
		require.Equal(t, http.StatusCreated, rec.Code)
		f.agreements.AssertExpectations(t)
	})

	t.Run("create by a non-depositor answers 403", func(t *testing.T) {
		f := newFixtures()
		f.caller()

		f.agreements.On("Create", mock.Anything, mock.AnythingOfType("escrow.CreateInput"), testWallet).
			Return(escrow.AgreementRecord{}, escrow.ErrForbidden).
			Once()

		rec := do(f.handler, http.MethodPost, "/agreements", createBody, true)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("duplicate contract answers 409", func(t *testing.T) {
		f := newFixtures()
		f.caller()

		f.agreements.On("Create", mock.Anything, mock.AnythingOfType("escrow.CreateInput"), testWallet).
			Return(escrow.AgreementRecord{}, escrow.ErrDuplicateAgreement).
			Once()

		rec := do(f.handler, http.MethodPost, "/agreements", createBody, true)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("list scopes to the caller", func(t *testing.T) {
		f := newFixtures()
		caller := f.caller()

		f.agreements.On("ListForParticipant", mock.Anything, caller.WalletAddress).
			Return([]escrow.AgreementRecord{{ContractAddress: testContract}}, nil).
			Once()

		rec := do(f.handler, http.MethodGet, "/agreements", "", true)
		require.Equal(t, http.StatusOK, rec.Code)
		f.agreements.AssertExpectations(t)
	})

	t.Run("get by contract address", func(t *testing.T) {
		f := newFixtures()
		f.caller()

		f.agreements.On("Get", mock.Anything, testContract).
			Return(escrow.AgreementRecord{ContractAddress: testContract}, nil).
			Once()

		rec := do(f.handler, http.MethodGet, "/agreements/"+testContract, "", true)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestTransitionAgreement(t *testing.T) {
	target := "/agreements/" + testContract + "/status"

	t.Run("funded transition", func(t *testing.T) {
		f := newFixtures()
		f.caller()

		f.agreements.On("Transition", mock.Anything, testContract, escrow.StatusFunded, testTxHash, testWallet).
			Return(escrow.AgreementRecord{ContractAddress: testContract, Status: escrow.StatusFunded}, nil).
			Once()

		body := `{"status": "funded", "transactionHash": "` + testTxHash + `"}`
		rec := do(f.handler, http.MethodPut, target, body, true)
		require.Equal(t, http.StatusOK, rec.Code)

		var got escrow.AgreementRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, escrow.StatusFunded, got.Status)
	})

	t.Run("unknown status answers 422 before any service call", func(t *testing.T) {
		f := newFixtures()
		f.caller()

		rec := do(f.handler, http.MethodPut, target, `{"status": "cancelled"}`, true)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		f.agreements.AssertNotCalled(t, "Transition",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("illegal transition answers 422", func(t *testing.T) {
		f := newFixtures()
		f.caller()

		f.agreements.On("Transition", mock.Anything, testContract, escrow.StatusReleased, "", testWallet).
			Return(escrow.AgreementRecord{}, escrow.ErrIllegalTransition).
			Once()

		rec := do(f.handler, http.MethodPut, target, `{"status": "released"}`, true)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("wrong role answers 403", func(t *testing.T) {
		f := newFixtures()
		f.caller()

		f.agreements.On("Transition", mock.Anything, testContract, escrow.StatusReleased, "", testWallet).
			Return(escrow.AgreementRecord{}, escrow.ErrForbidden).
			Once()

		rec := do(f.handler, http.MethodPut, target, `{"status": "released"}`, true)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown agreement answers 404", func(t *testing.T) {
		f := newFixtures()
		f.caller()

		f.agreements.On("Transition", mock.Anything, testContract, escrow.StatusFunded, "", testWallet).
			Return(escrow.AgreementRecord{}, escrow.ErrAgreementNotFound).
			Once()

		rec := do(f.handler, http.MethodPut, target, `{"status": "funded"}`, true)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
