// Package identity is a thin client for the identity store's admin REST API
// (a GoTrue-style interface: paged user listing plus create/update by id).
// It is the only place that knows the wire shape of the identity store.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// User is an identity-store user as returned by the admin API. Fields beyond
// id and email exist on the wire but are not needed here.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// UserParams is the payload for creating or updating a user. The password is
// a one-time credential; the profile store carries the forced-reset flag. An
// empty Password leaves the stored credential untouched on update.
// ContractorCode, when set, is recorded in the user metadata.
type UserParams struct {
	Email          string
	Password       string
	FirstName      string
	LastName       string
	ContractorCode string
}

// Client calls the identity store's admin endpoints. All calls authenticate
// with the service-role key; never hand this client a user-scoped key.
type Client struct {
	baseURL    string
	serviceKey string
	pageSize   int
	httpClient *http.Client
}

// NewClient creates an admin API client.
// pageSize controls how many users ListUsers fetches per page.
func NewClient(baseURL, serviceKey string, pageSize int, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		serviceKey: serviceKey,
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// wireUser is the admin API's user representation.
type wireUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// wireUserPayload is the create/update request body.
type wireUserPayload struct {
	Email        string            `json:"email"`
	Password     string            `json:"password,omitempty"`
	EmailConfirm bool              `json:"email_confirm"`
	UserMetadata map[string]string `json:"user_metadata"`
}

// apiError is the admin API's error body. Older deployments use "msg",
// newer ones "message"; either may be present.
type apiError struct {
	Msg     string `json:"msg"`
	Message string `json:"message"`
}

// ListUsers fetches every user, page by page, until a short page signals the
// end. Users without an email are skipped.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User

	for page := 1; ; page++ {
		var body struct {
			Users []wireUser `json:"users"`
		}
		path := fmt.Sprintf("/auth/v1/admin/users?page=%d&per_page=%d", page, c.pageSize)
		if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
			return nil, fmt.Errorf("listing users (page %d): %w", page, err)
		}

		for _, u := range body.Users {
			if u.Email == "" {
				continue
			}
			users = append(users, User{ID: u.ID, Email: strings.ToLower(u.Email)})
		}

		if len(body.Users) < c.pageSize {
			return users, nil
		}
	}
}

// CreateUser creates a confirmed user with first/last name metadata.
func (c *Client) CreateUser(ctx context.Context, params UserParams) (User, error) {
	var created wireUser
	err := c.do(ctx, http.MethodPost, "/auth/v1/admin/users", payload(params), &created)
	if err != nil {
		return User{}, fmt.Errorf("creating user %s: %w", params.Email, err)
	}
	if created.ID == "" {
		return User{}, fmt.Errorf("creating user %s: store returned no id", params.Email)
	}
	return User{ID: created.ID, Email: strings.ToLower(params.Email)}, nil
}

// UpdateUser replaces a user's email, password, and name metadata.
func (c *Client) UpdateUser(ctx context.Context, id string, params UserParams) error {
	if err := c.do(ctx, http.MethodPut, "/auth/v1/admin/users/"+id, payload(params), nil); err != nil {
		return fmt.Errorf("updating user %s: %w", params.Email, err)
	}
	return nil
}

func payload(params UserParams) *wireUserPayload {
	metadata := map[string]string{
		"first_name": params.FirstName,
		"last_name":  params.LastName,
	}
	if params.ContractorCode != "" {
		metadata["contractor_code"] = params.ContractorCode
	}
	return &wireUserPayload{
		Email:        params.Email,
		Password:     params.Password,
		EmailConfirm: true,
		UserMetadata: metadata,
	}
}

// do issues one authenticated request and decodes the response into out
// (when out is non-nil). Non-2xx responses become errors carrying the
// store's message.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("identity store returned %d: %s", resp.StatusCode, readAPIError(resp.Body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// readAPIError extracts the store's error message, falling back to the raw
// body when it is not the expected JSON shape.
func readAPIError(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return "no error body"
	}

	var apiErr apiError
	if json.Unmarshal(raw, &apiErr) == nil {
		if apiErr.Msg != "" {
			return apiErr.Msg
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	return strings.TrimSpace(string(raw))
}
