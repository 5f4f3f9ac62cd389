package userdir

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// User is the display identity the directory resolves an id to.
type User struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Directory resolves user ids to display identities. The conversation core
// never stores profile data itself.
type Directory interface {
	GetUser(ctx context.Context, userID int) (User, error)
	BulkUsers(ctx context.Context, ids []int) ([]User, error)
}

// Client is an HTTP implementation of Directory against the user service's
// internal API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient constructs a Client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// GetUser fetches a single user.
func (c *Client) GetUser(ctx context.Context, userID int) (User, error) {
	var user User
	err := c.getJSON(ctx, fmt.Sprintf("%s/internal/users/%d", c.baseURL, userID), &user)
	return user, err
}

// BulkUsers fetches multiple users in one call. Unknown ids are simply
// absent from the result.
func (c *Client) BulkUsers(ctx context.Context, ids []int) ([]User, error) {
	if len(ids) == 0 {
		return []User{}, nil
	}

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.Itoa(id))
	}
	endpoint := c.baseURL + "/internal/users?ids=" + url.QueryEscape(strings.Join(parts, ","))

	var resp struct {
		Users []User `json:"users"`
	}
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("user service returned %d", res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
