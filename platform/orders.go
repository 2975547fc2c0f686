package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"github.com/72rs3/pharmacy-assistant-sub000/models"
)

// UploadPrescriptionDraft uploads prescription files and returns the opaque
// draft tokens that later authorize an Rx order.
func (c *Client) UploadPrescriptionDraft(ctx context.Context, files []models.PrescriptionFile) ([]string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.Name))
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("failed to build upload: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, fmt.Errorf("failed to build upload: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/prescriptions/drafts", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.attachIdentity(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(resp)
	}

	var results []uploadResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	tokens := make([]string, 0, len(results))
	for _, r := range results {
		if r.DraftToken != "" {
			tokens = append(tokens, r.DraftToken)
		}
	}
	return tokens, nil
}

// CreateRxOrder places a prescription-backed order. The request must carry
// at least one draft prescription token.
func (c *Client) CreateRxOrder(ctx context.Context, req RxOrderRequest) (string, error) {
	var out rxOrderResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/orders/rx", req, &out); err != nil {
		return "", err
	}
	return out.OrderID, nil
}

// AddToCart adds a medicine to the tenant's cart and returns the platform's
// view of the line item.
func (c *Client) AddToCart(ctx context.Context, tenantID, medicineID string, qty int) (*CartItemResponse, error) {
	if qty <= 0 {
		qty = 1
	}
	var out CartItemResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/cart/items", cartRequest{TenantID: tenantID, MedicineID: medicineID, Qty: qty}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ResolveCurrentTenantID looks up the tenant for the storefront host, used
// when no tenant id was configured.
func (c *Client) ResolveCurrentTenantID(ctx context.Context) (string, error) {
	var out tenantResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/tenants/current", nil, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}
