package api

import (
	"context"
	"fmt"
	"time"
)

// User is an end user of the platform as seen by the admin console.
type User struct {
	ID        int       `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone"`
	IsActive  bool      `json:"is_active"`
	KYCStatus string    `json:"kyc_status"`
	CreatedAt time.Time `json:"created_at"`
}

// KYCDocument is one identity document awaiting review.
type KYCDocument struct {
	ID          int       `json:"id"`
	UserID      int       `json:"user"`
	Type        string    `json:"type_doc"`
	Number      string    `json:"numero"`
	Status      string    `json:"status"`
	RejectedFor string    `json:"motif_rejet"`
	SubmittedAt time.Time `json:"created_at"`
}

func (c *Client) ListUsers(ctx context.Context, opts ListOptions) (*Page[User], error) {
	return list[User](ctx, c, "/auth/admin/users/", opts)
}

func (c *Client) GetUser(ctx context.Context, id int) (*User, error) {
	var out User
	if err := c.get(ctx, fmt.Sprintf("/auth/admin/users/%d/", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetUserActive enables or suspends a user account.
func (c *Client) SetUserActive(ctx context.Context, id int, active bool) (*User, error) {
	var out User
	body := map[string]bool{"is_active": active}
	if err := c.patch(ctx, fmt.Sprintf("/auth/admin/users/%d/", id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListKYCDocuments(ctx context.Context, userID int, opts ListOptions) (*Page[KYCDocument], error) {
	return list[KYCDocument](ctx, c, fmt.Sprintf("/auth/admin/users/%d/kyc/", userID), opts)
}

// ReviewKYCDocument approves or rejects a document. Reason is required for
// rejections and ignored otherwise.
func (c *Client) ReviewKYCDocument(ctx context.Context, userID, docID int, approve bool, reason string) (*KYCDocument, error) {
	body := map[string]any{"approve": approve}
	if !approve {
		body["motif_rejet"] = reason
	}
	var out KYCDocument
	path := fmt.Sprintf("/auth/admin/users/%d/kyc/%d/review/", userID, docID)
	if err := c.post(ctx, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
