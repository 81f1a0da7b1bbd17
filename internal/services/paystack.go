package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

// PaystackService is the payment gateway client used for wallet deposits and
// withdrawal transfers.
type PaystackService struct {
	SecretKey string
	BaseURL   string
	Client    *http.Client
}

type InitializePaymentResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

type VerifyPaymentResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID              int64  `json:"id"`
		Status          string `json:"status"`
		Reference       string `json:"reference"`
		Amount          int64  `json:"amount"` // minor units
		GatewayResponse string `json:"gateway_response"`
		PaidAt          string `json:"paid_at"`
		Channel         string `json:"channel"`
		Currency        string `json:"currency"`
	} `json:"data"`
}

type TransferRecipientResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID            int64  `json:"id"`
		Name          string `json:"name"`
		RecipientCode string `json:"recipient_code"`
		Type          string `json:"type"`
	} `json:"data"`
}

type InitiateTransferResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Amount       int64  `json:"amount"`
		Currency     string `json:"currency"`
		Reason       string `json:"reason"`
		Status       string `json:"status"`
		TransferCode string `json:"transfer_code"`
		ID           int64  `json:"id"`
	} `json:"data"`
}

// NewPaystackService creates a new Paystack service instance
func NewPaystackService() *PaystackService {
	return &PaystackService{
		SecretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		BaseURL:   "https://api.paystack.co",
		Client:    &http.Client{},
	}
}

// makeRequest makes HTTP request to Paystack API
func (ps *PaystackService) makeRequest(method, endpoint string, payload interface{}) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, ps.BaseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+ps.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	return ps.Client.Do(req)
}

// InitializePayment initializes a deposit. Amount is integer cents, which is
// what the gateway expects for its minor-unit amounts.
func (ps *PaystackService) InitializePayment(email string, amount int64, reference string, callbackURL string) (*InitializePaymentResponse, error) {
	payload := map[string]interface{}{
		"email":        email,
		"amount":       amount,
		"reference":    reference,
		"callback_url": callbackURL,
		"metadata": map[string]string{
			"custom_fields": "Seekr Wallet Funding",
		},
	}

	resp, err := ps.makeRequest("POST", "/transaction/initialize", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result InitializePaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !result.Status {
		return nil, fmt.Errorf("paystack error: %s", result.Message)
	}

	return &result, nil
}

// VerifyPayment verifies a payment transaction
func (ps *PaystackService) VerifyPayment(reference string) (*VerifyPaymentResponse, error) {
	resp, err := ps.makeRequest("GET", "/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result VerifyPaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !result.Status {
		return nil, fmt.Errorf("paystack error: %s", result.Message)
	}

	return &result, nil
}

// CreateTransferRecipient registers a bank account for payouts
func (ps *PaystackService) CreateTransferRecipient(accountName, accountNumber, bankCode string) (*TransferRecipientResponse, error) {
	payload := map[string]interface{}{
		"type":           "nuban",
		"name":           accountName,
		"account_number": accountNumber,
		"bank_code":      bankCode,
	}

	resp, err := ps.makeRequest("POST", "/transferrecipient", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result TransferRecipientResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !result.Status {
		return nil, fmt.Errorf("paystack error: %s", result.Message)
	}

	return &result, nil
}

// InitiateTransfer pays out a withdrawal to a registered recipient
func (ps *PaystackService) InitiateTransfer(recipientCode string, amount int64, reason string, reference string) (*InitiateTransferResponse, error) {
	payload := map[string]interface{}{
		"source":    "balance",
		"reason":    reason,
		"amount":    amount,
		"recipient": recipientCode,
		"reference": reference,
	}

	resp, err := ps.makeRequest("POST", "/transfer", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var result InitiateTransferResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !result.Status {
		return nil, fmt.Errorf("paystack error: %s", result.Message)
	}

	return &result, nil
}
