package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/lazyrag/authplane/internal/core/domain"
)

// AuthCoreClient validates bearer tokens against auth-core's /validate endpoint.
type AuthCoreClient struct {
	base
}

func NewAuthCoreClient(baseURL string, timeout time.Duration) *AuthCoreClient {
	return &AuthCoreClient{base: newBase(baseURL, timeout, "auth_core")}
}

// ValidateResponse is the wire shape of POST /api/auth/validate. Permissions
// is either a JSON array of group names or the string "all".
type ValidateResponse struct {
	Sub         string          `json:"sub"`
	Username    string          `json:"username,omitempty"`
	Role        string          `json:"role"`
	Permissions json.RawMessage `json:"permissions,omitempty"`
}

const allPermissions = "all"

// NewValidateResponse renders id in the wire shape.
func NewValidateResponse(id *domain.Identity) ValidateResponse {
	var perms []byte
	if id.AllPermissions {
		perms, _ = json.Marshal(allPermissions)
	} else {
		list := id.Permissions
		if list == nil {
			list = []string{}
		}
		perms, _ = json.Marshal(list)
	}
	return ValidateResponse{
		Sub:         strconv.FormatInt(id.UserID, 10),
		Username:    id.Username,
		Role:        id.Role,
		Permissions: perms,
	}
}

// Identity converts the wire shape back into a domain identity.
func (r ValidateResponse) Identity() (*domain.Identity, error) {
	if r.Sub == "" || r.Role == "" {
		return nil, fmt.Errorf("%w: validate response missing sub or role", domain.ErrUnauthorized)
	}
	uid, err := strconv.ParseInt(r.Sub, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: non-integer sub %q", domain.ErrUnauthorized, r.Sub)
	}

	id := &domain.Identity{UserID: uid, Username: r.Username, Role: r.Role}
	if len(r.Permissions) == 0 || string(r.Permissions) == "null" {
		return id, nil
	}

	var all string
	if err := json.Unmarshal(r.Permissions, &all); err == nil {
		id.AllPermissions = all == allPermissions
		return id, nil
	}
	if err := json.Unmarshal(r.Permissions, &id.Permissions); err != nil {
		return nil, fmt.Errorf("%w: malformed permissions in validate response", domain.ErrUpstreamUnavailable)
	}
	return id, nil
}

// ValidateToken forwards the bearer token. Any non-2xx answer is a rejection.
func (c *AuthCoreClient) ValidateToken(ctx context.Context, token string) (*domain.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api/auth/validate", bytes.NewReader(nil))
	if err != nil {
		return nil, fmt.Errorf("build validate request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.observe(start, "rejected")
		return nil, fmt.Errorf("%w: auth-core answered %d", domain.ErrUnauthorized, resp.StatusCode)
	}

	var body ValidateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.observe(start, "unavailable")
		return nil, fmt.Errorf("%w: decode validate response: %v", domain.ErrUpstreamUnavailable, err)
	}
	c.observe(start, "ok")
	return body.Identity()
}
