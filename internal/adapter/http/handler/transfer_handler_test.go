package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iho/ledgercore/internal/adapter/http/dto"
	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

type transferServiceStub struct {
	transferFn func(ctx context.Context, input usecase.TransferInput) (*domain.Transaction, error)
	getFn      func(ctx context.Context, id string) (*domain.Transaction, error)
	getByKeyFn func(ctx context.Context, key string) (*domain.Transaction, error)
	listFn     func(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error)
}

func (s *transferServiceStub) Transfer(ctx context.Context, input usecase.TransferInput) (*domain.Transaction, error) {
	return s.transferFn(ctx, input)
}

func (s *transferServiceStub) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return s.getFn(ctx, id)
}

func (s *transferServiceStub) GetTransactionByKey(ctx context.Context, key string) (*domain.Transaction, error) {
	return s.getByKeyFn(ctx, key)
}

func (s *transferServiceStub) ListTransactionsByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error) {
	return s.listFn(ctx, accountID, limit, offset)
}

func postTransfer(t *testing.T, h *TransferHandler, key string, body any) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/transfers", bytes.NewReader(raw))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	h.Create(rec, req)
	return rec
}

func TestTransferHandler_Create_Success(t *testing.T) {
	var captured usecase.TransferInput

	h := NewTransferHandler(&transferServiceStub{
		transferFn: func(ctx context.Context, input usecase.TransferInput) (*domain.Transaction, error) {
			captured = input
			return &domain.Transaction{
				ID:     "txn-1",
				Amount: input.Amount,
				Status: domain.TransactionStatusSuccess,
			}, nil
		},
	})

	rec := postTransfer(t, h, "key-1", dto.CreateTransferRequest{
		SenderAccountID:   "acc-1",
		ReceiverAccountID: "acc-2",
		Amount:            "100",
		Currency:          "USD",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	if captured.SenderAccountID != "acc-1" || captured.ReceiverAccountID != "acc-2" || captured.IdempotencyKey != "key-1" {
		t.Fatalf("expected input to match request, got %+v", captured)
	}
	if !captured.Amount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected amount 100, got %s", captured.Amount)
	}

	var resp dto.TransactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "txn-1" || resp.Status != "SUCCESS" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestTransferHandler_Create_RejectionReturnsFailedTransaction(t *testing.T) {
	h := NewTransferHandler(&transferServiceStub{
		transferFn: func(ctx context.Context, input usecase.TransferInput) (*domain.Transaction, error) {
			return &domain.Transaction{
				ID:            "txn-1",
				Status:        domain.TransactionStatusFailed,
				FailureReason: "insufficient_funds",
			}, domain.ErrInsufficientFunds
		},
	})

	rec := postTransfer(t, h, "key-1", dto.CreateTransferRequest{SenderAccountID: "a", ReceiverAccountID: "b", Amount: "5000", Currency: "USD"})

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	var resp dto.TransactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "FAILED" || resp.FailureReason != "insufficient_funds" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestTransferHandler_Create_ReplayStatusFollowsStoredOutcome(t *testing.T) {
	tests := []struct {
		name   string
		status domain.TransactionStatus
		want   int
	}{
		{"success", domain.TransactionStatusSuccess, http.StatusCreated},
		{"flagged", domain.TransactionStatusFlagged, http.StatusCreated},
		{"failed", domain.TransactionStatusFailed, http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewTransferHandler(&transferServiceStub{
				transferFn: func(ctx context.Context, input usecase.TransferInput) (*domain.Transaction, error) {
					return &domain.Transaction{ID: "txn-1", Status: tt.status}, nil
				},
			})

			rec := postTransfer(t, h, "key-1", dto.CreateTransferRequest{SenderAccountID: "a", ReceiverAccountID: "b", Amount: "1", Currency: "USD"})
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}

			var resp dto.TransactionResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.ID != "txn-1" || resp.Status != string(tt.status) {
				t.Fatalf("unexpected response %+v", resp)
			}
		})
	}
}

func TestTransferHandler_Create_InputErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"missing key", domain.ErrMissingIdempotencyKey, http.StatusBadRequest},
		{"same account", domain.ErrSameAccount, http.StatusBadRequest},
		{"lock timeout", domain.ErrLockTimeout, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewTransferHandler(&transferServiceStub{
				transferFn: func(ctx context.Context, input usecase.TransferInput) (*domain.Transaction, error) {
					return nil, tt.err
				},
			})

			rec := postTransfer(t, h, "", dto.CreateTransferRequest{SenderAccountID: "a", ReceiverAccountID: "a", Amount: "1", Currency: "USD"})
			if rec.Code != tt.expected {
				t.Fatalf("expected %d, got %d", tt.expected, rec.Code)
			}
		})
	}
}

func TestTransferHandler_Create_InvalidBody(t *testing.T) {
	h := NewTransferHandler(&transferServiceStub{
		transferFn: func(ctx context.Context, input usecase.TransferInput) (*domain.Transaction, error) {
			t.Fatal("Transfer should not be called")
			return nil, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/transfers", bytes.NewBufferString("{bad json"))
	rec := httptest.NewRecorder()

	h.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTransferHandler_Create_InvalidAmount(t *testing.T) {
	h := NewTransferHandler(&transferServiceStub{
		transferFn: func(ctx context.Context, input usecase.TransferInput) (*domain.Transaction, error) {
			t.Fatal("Transfer should not be called")
			return nil, nil
		},
	})

	rec := postTransfer(t, h, "k", dto.CreateTransferRequest{SenderAccountID: "a", ReceiverAccountID: "b", Amount: "lots", Currency: "USD"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTransferHandler_Get(t *testing.T) {
	h := NewTransferHandler(&transferServiceStub{
		getFn: func(ctx context.Context, id string) (*domain.Transaction, error) {
			if id == "missing" {
				return nil, domain.ErrTransactionNotFound
			}
			return &domain.Transaction{ID: id, Status: domain.TransactionStatusSuccess}, nil
		},
	})

	req := setChiURLParam(httptest.NewRequest(http.MethodGet, "/transfers/txn-1", nil), "id", "txn-1")
	rec := httptest.NewRecorder()
	h.Get(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req = setChiURLParam(httptest.NewRequest(http.MethodGet, "/transfers/missing", nil), "id", "missing")
	rec = httptest.NewRecorder()
	h.Get(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestTransferHandler_GetByKey(t *testing.T) {
	h := NewTransferHandler(&transferServiceStub{
		getByKeyFn: func(ctx context.Context, key string) (*domain.Transaction, error) {
			return &domain.Transaction{ID: "txn-1", IdempotencyKey: key}, nil
		},
	})

	req := setChiURLParam(httptest.NewRequest(http.MethodGet, "/transfers/by-key/k1", nil), "key", "k1")
	rec := httptest.NewRecorder()
	h.GetByKey(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp dto.TransactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.IdempotencyKey != "k1" {
		t.Fatalf("expected key k1, got %q", resp.IdempotencyKey)
	}
}

func TestTransferHandler_ListByAccount(t *testing.T) {
	h := NewTransferHandler(&transferServiceStub{
		listFn: func(ctx context.Context, accountID string, limit, offset int) ([]*domain.Transaction, error) {
			if accountID != "acc-1" || limit != 5 || offset != 10 {
				t.Fatalf("unexpected args %s %d %d", accountID, limit, offset)
			}
			return []*domain.Transaction{{ID: "txn-1"}, {ID: "txn-2"}}, nil
		},
	})

	req := setChiURLParam(httptest.NewRequest(http.MethodGet, "/accounts/acc-1/transfers?limit=5&offset=10", nil), "id", "acc-1")
	rec := httptest.NewRecorder()
	h.ListByAccount(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp []dto.TransactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(resp))
	}
}
