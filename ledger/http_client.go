package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// HTTPClient talks to a JSON ledger gateway that submits transactions on the
// service's behalf.
//
//	POST {base}/grievances                 {category, locationHash, descriptionHash} -> {ledgerId}
//	POST {base}/grievances/{id}/resolve    -> {txHash, blockNumber}
//
// Failures carry {"error": "..."}; see classify for the mapping to Kind.
type HTTPClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPClient creates a gateway client. timeout bounds one call including retries.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

type createRequest struct {
	Category        string `json:"category"`
	LocationHash    string `json:"locationHash"`
	DescriptionHash string `json:"descriptionHash"`
}

type createResponse struct {
	LedgerID string `json:"ledgerId"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CreateGrievance implements Ledger.
func (c *HTTPClient) CreateGrievance(ctx context.Context, category, locationHash, descriptionHash string) (string, error) {
	var out createResponse
	body := createRequest{Category: category, LocationHash: locationHash, DescriptionHash: descriptionHash}
	if err := c.post(ctx, OpCreate, "/grievances", body, &out); err != nil {
		return "", err
	}
	if out.LedgerID == "" {
		return "", &Error{Op: OpCreate, Kind: KindUnavailable, Err: errors.New("gateway returned empty ledger id")}
	}
	return out.LedgerID, nil
}

// ResolveGrievance implements Ledger.
func (c *HTTPClient) ResolveGrievance(ctx context.Context, ledgerID string) (*Receipt, error) {
	var out Receipt
	if err := c.post(ctx, OpResolve, "/grievances/"+url.PathEscape(ledgerID)+"/resolve", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// post retries only unavailable failures. A reverted or unfunded write is
// returned on first sight.
func (c *HTTPClient) post(ctx context.Context, op, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode ledger request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = c.timeout

	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		err := c.do(ctx, op, path, payload, out)
		var le *Error
		if errors.As(err, &le) && le.Kind == KindUnavailable && ctx.Err() == nil {
			log.Printf("[LEDGER] %s attempt %d failed, retrying: %v", op, attempt, err)
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return le
	}
	// Context expiry and request build failures arrive as plain errors.
	return &Error{Op: op, Kind: KindUnavailable, Err: err}
}

func (c *HTTPClient) do(ctx context.Context, op, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build ledger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{Op: op, Kind: KindUnavailable, Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Op: op, Kind: KindUnavailable, Err: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.Unmarshal(body, out); err != nil {
			return &Error{Op: op, Kind: KindUnavailable, Err: fmt.Errorf("malformed gateway response: %w", err)}
		}
		return nil
	}

	var er errorResponse
	_ = json.Unmarshal(body, &er)
	return &Error{Op: op, Kind: classify(resp.StatusCode, er.Error), Err: gatewayError(resp.StatusCode, er)}
}

// classify maps a gateway failure to a Kind. The error code in the body wins
// over the status code.
func classify(status int, code string) Kind {
	switch strings.ToLower(code) {
	case "reverted", "execution_reverted":
		return KindReverted
	case "out_of_gas", "insufficient_funds":
		return KindOutOfResources
	}
	switch {
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		return KindReverted
	case status == http.StatusPaymentRequired:
		return KindOutOfResources
	case status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout:
		return KindUnavailable
	}
	// Other 4xx: the gateway refused the request outright.
	return KindReverted
}

func gatewayError(status int, er errorResponse) error {
	msg := er.Message
	if msg == "" {
		msg = er.Error
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Errorf("gateway status %d: %s", status, msg)
}
