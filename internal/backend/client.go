package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"raffle-checkout/internal/models"
	"raffle-checkout/internal/util"

	"go.uber.org/zap"
)

// Client talks to the remote raffle backend. It is deliberately thin:
// it moves bytes, enforces the JSON-success contract and extracts error
// messages. Shaping heterogeneous payloads into canonical models is the
// normalizer's job.
type Client struct {
	baseURL string
	http    *http.Client
	offline bool
	logger  *zap.Logger
}

// NewClient creates a backend client. The offline flag is an explicit
// construction-time switch, never a hidden module-level toggle: when
// set, read-only listing calls serve canned sample data and every
// payment operation fails with ErrOffline.
func NewClient(baseURL string, timeout time.Duration, offline bool) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		offline: offline,
		logger:  util.GetLogger(),
	}
}

// Offline reports whether the client was constructed in offline mode.
func (c *Client) Offline() bool {
	return c.offline
}

// ReserveRequest is the body for the reserve-numbers call.
type ReserveRequest struct {
	RaffleID       string `json:"rifaId"`
	Quantity       int    `json:"quantidade"`
	Numbers        []int  `json:"numeros,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// Reserve places a hold on ticket numbers. The raw body is returned
// together with the Location header because historical backends put the
// purchase id in either place.
func (c *Client) Reserve(ctx context.Context, token string, req *ReserveRequest) (json.RawMessage, string, error) {
	if c.offline {
		return nil, "", ErrOffline
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal reserve request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/compras/reservar", bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create reserve request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	setBearer(httpReq, token)

	resp, err := c.do("reserve", httpReq)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	location := resp.Header.Get("Location")
	raw, err := c.handleResponse("reserve", resp)
	if err != nil {
		return nil, location, err
	}
	return raw, location, nil
}

// GeneratePix asks the backend to create a PIX charge for a purchase.
// The response may be a charge or a degraded-mode fallback body; the
// caller routes the two via the normalizer.
func (c *Client) GeneratePix(ctx context.Context, token, purchaseID string) (json.RawMessage, error) {
	return c.postJSON(ctx, "generate_pix", token,
		fmt.Sprintf("%s/compras/%s/pagamento/pix", c.baseURL, purchaseID), nil)
}

// PaymentStatus queries the current PIX payment state for a purchase.
func (c *Client) PaymentStatus(ctx context.Context, token, purchaseID string) (json.RawMessage, error) {
	return c.getJSON(ctx, "payment_status", token,
		fmt.Sprintf("%s/compras/%s/pagamento", c.baseURL, purchaseID))
}

// FetchPurchase retrieves a purchase by id.
func (c *Client) FetchPurchase(ctx context.Context, token, purchaseID string) (json.RawMessage, error) {
	return c.getJSON(ctx, "fetch_purchase", token,
		fmt.Sprintf("%s/compras/%s", c.baseURL, purchaseID))
}

// UploadProof sends one proof-of-payment image as multipart form data.
// Validation of type and size happens before this call; the backend
// remains authoritative.
func (c *Client) UploadProof(ctx context.Context, token, purchaseID, filename string, file io.Reader) (*models.ProofUpload, error) {
	if c.offline {
		return nil, ErrOffline
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("comprovante", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart field: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to buffer proof file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	url := fmt.Sprintf("%s/compras/%s/comprovante", c.baseURL, purchaseID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	setBearer(httpReq, token)

	resp, err := c.do("upload_proof", httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := c.handleResponse("upload_proof", resp)
	if err != nil {
		return nil, err
	}

	var ack struct {
		PurchaseID string `json:"compraId"`
		ProofURL   string `json:"comprovanteUrl"`
		UploadedAt string `json:"dataUpload"`
		Message    string `json:"mensagem"`
	}
	if err := json.Unmarshal(raw, &ack); err != nil {
		return nil, fmt.Errorf("failed to decode upload response: %w", err)
	}

	out := &models.ProofUpload{
		PurchaseID: ack.PurchaseID,
		ProofURL:   ack.ProofURL,
		Message:    ack.Message,
	}
	if ack.PurchaseID == "" {
		out.PurchaseID = purchaseID
	}
	if ts, err := time.Parse(time.RFC3339, ack.UploadedAt); err == nil {
		out.UploadedAt = ts
	}
	return out, nil
}

// ApprovePurchase marks a purchase approved by the seller.
func (c *Client) ApprovePurchase(ctx context.Context, token, purchaseID, observation string) error {
	_, err := c.postJSON(ctx, "approve_purchase", token,
		fmt.Sprintf("%s/compras/%s/aprovar", c.baseURL, purchaseID),
		map[string]string{"observacao": observation})
	return err
}

// RejectPurchase marks a purchase rejected by the seller.
func (c *Client) RejectPurchase(ctx context.Context, token, purchaseID, observation string) error {
	_, err := c.postJSON(ctx, "reject_purchase", token,
		fmt.Sprintf("%s/compras/%s/rejeitar", c.baseURL, purchaseID),
		map[string]string{"observacao": observation})
	return err
}

// PendingProofs lists purchases of a raffle awaiting proof review.
// The backend paginates; both a bare array and a {content: [...]}
// envelope are accepted.
func (c *Client) PendingProofs(ctx context.Context, token, raffleID string, page int) ([]json.RawMessage, error) {
	url := fmt.Sprintf("%s/compras/rifa/%s/pendentes?page=%d", c.baseURL, raffleID, page)
	raw, err := c.getJSON(ctx, "pending_proofs", token, url)
	if err != nil {
		return nil, err
	}
	return listItems(raw)
}

func (c *Client) postJSON(ctx context.Context, operation, token, url string, payload interface{}) (json.RawMessage, error) {
	if c.offline {
		return nil, ErrOffline
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", operation, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", operation, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	setBearer(req, token)

	resp, err := c.do(operation, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return c.handleResponse(operation, resp)
}

func (c *Client) getJSON(ctx context.Context, operation, token, url string) (json.RawMessage, error) {
	if c.offline {
		return nil, ErrOffline
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", operation, err)
	}
	setBearer(req, token)

	resp, err := c.do(operation, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return c.handleResponse(operation, resp)
}

func (c *Client) do(operation string, req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	util.BackendRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err != nil {
		util.BackendErrorsTotal.WithLabelValues(operation, "transport").Inc()
		c.logger.Warn("Backend request failed",
			zap.String("operation", operation),
			zap.String("url", req.URL.String()),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	return resp, nil
}

// handleResponse enforces the response contract: success bodies must be
// application/json (anything else is service-unavailable), and non-2xx
// bodies are mined for a message/error field before falling back to the
// HTTP status phrase.
func (c *Client) handleResponse(operation string, resp *http.Response) (json.RawMessage, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		util.BackendErrorsTotal.WithLabelValues(operation, "transport").Inc()
		return nil, fmt.Errorf("%w: reading body: %v", ErrServiceUnavailable, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		contentType := resp.Header.Get("Content-Type")
		if resp.StatusCode == http.StatusNoContent {
			return json.RawMessage("{}"), nil
		}
		if !strings.Contains(contentType, "application/json") {
			util.BackendErrorsTotal.WithLabelValues(operation, "non_json").Inc()
			c.logger.Warn("Backend returned non-JSON success",
				zap.String("operation", operation),
				zap.String("content_type", contentType))
			return nil, fmt.Errorf("%w: unexpected content type %q", ErrServiceUnavailable, contentType)
		}
		return body, nil
	}

	util.BackendErrorsTotal.WithLabelValues(operation, "api").Inc()
	return nil, &APIError{
		StatusCode: resp.StatusCode,
		Message:    errorMessage(body, resp),
	}
}

// errorMessage pulls a user-facing message out of an error body.
func errorMessage(body []byte, resp *http.Response) string {
	var parsed struct {
		Message string `json:"message"`
		Erro    string `json:"mensagem"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		for _, msg := range []string{parsed.Message, parsed.Erro, parsed.Error} {
			if msg != "" {
				return msg
			}
		}
	}
	return http.StatusText(resp.StatusCode)
}

// listItems accepts a bare JSON array or a paginated {content: [...]}
// envelope and returns the raw elements.
func listItems(raw json.RawMessage) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, nil
	}

	var envelope struct {
		Content []json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("unexpected list payload: %w", err)
	}
	return envelope.Content, nil
}

func setBearer(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
