// Package activecampaign provides a client for the ActiveCampaign v3
// REST API: offset-paginated contacts and deals, rate limited to stay
// under the remote's throughput cap.
package activecampaign

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/tam-cli/internal/resilience"
)

// DefaultPageSize is the page size used by the streaming pagers.
const DefaultPageSize = 100

// Contact is one remote CRM contact. Every field is optional: the API
// omits or blanks fields freely, so consumers must tolerate absence.
type Contact struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	CreatedAt string `json:"cdate"`
	UpdatedAt string `json:"udate"`
}

// Deal is one remote CRM deal. Stage is the string form of an integer
// stage identifier.
type Deal struct {
	ID        string `json:"id"`
	ContactID string `json:"contact"`
	Title     string `json:"title"`
	Stage     string `json:"stage"`
	Group     string `json:"group"`
	CreatedAt string `json:"cdate"`
	UpdatedAt string `json:"mdate"`
}

// Meta carries list pagination metadata. The API returns total as a
// decimal string.
type Meta struct {
	Total string `json:"total"`
}

// TotalCount parses the total as an int, 0 if absent or malformed.
func (m Meta) TotalCount() int {
	n, err := strconv.Atoi(m.Total)
	if err != nil {
		return 0
	}
	return n
}

// ContactsPage is one page of the contacts list.
type ContactsPage struct {
	Contacts []Contact `json:"contacts"`
	Meta     Meta      `json:"meta"`
}

// DealsPage is one page of the deals list.
type DealsPage struct {
	Deals []Deal `json:"deals"`
	Meta  Meta   `json:"meta"`
}

// RemoteError is returned when the API responds with a non-success
// status.
type RemoteError struct {
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("activecampaign: status %d: %s", e.StatusCode, e.Body)
}

// Client defines the ActiveCampaign operations used by this application.
type Client interface {
	// GetContacts fetches a single page of contacts.
	GetContacts(ctx context.Context, offset, limit int) (*ContactsPage, error)
	// GetContact fetches one contact by id.
	GetContact(ctx context.Context, id string) (*Contact, error)
	// GetContactDeals fetches all deals attached to a contact.
	GetContactDeals(ctx context.Context, contactID string) ([]Deal, error)
	// GetDeals fetches a single page of deals.
	GetDeals(ctx context.Context, offset, limit int) (*DealsPage, error)
	// AllContacts returns a pager over the full contact set, starting
	// at offset 0. Each call returns a fresh, restartable pager.
	AllContacts() *ContactPager
	// AllDeals returns a pager over the full deal set.
	AllDeals() *DealPager
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the inter-page throttle (requests per
// second). Zero disables throttling; tests use this to avoid
// wall-clock waits.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = nil
		}
	}
}

// WithRetry enables transient-error retries for every API call. Only
// network failures and retryable statuses (429, 5xx) are retried.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		if cfg.ShouldRetry == nil {
			cfg.ShouldRetry = isRetryable
		}
		c.retry = &cfg
	}
}

// WithPageSize overrides the streaming page size.
func WithPageSize(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

type httpClient struct {
	baseURL  string
	apiKey   string
	pageSize int
	limiter  *rate.Limiter
	retry    *resilience.RetryConfig
	http     *http.Client
}

// isRetryable reports whether an API error is worth another attempt.
func isRetryable(err error) bool {
	var re *RemoteError
	if eris.As(err, &re) {
		return resilience.IsTransientHTTPStatus(re.StatusCode)
	}
	return resilience.IsTransient(err)
}

// NewClient creates an ActiveCampaign client. Page fetches are
// throttled to 10 req/s by default, roughly a 100 ms gap between
// pages, matching the remote's documented rate limit.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL:  baseURL,
		apiKey:   apiKey,
		pageSize: DefaultPageSize,
		limiter:  rate.NewLimiter(10, 1),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wait blocks until the limiter allows one event, or ctx is cancelled.
func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// get performs an authenticated GET against an API v3 endpoint and
// decodes the JSON response into out, retrying transient failures when
// configured.
func (c *httpClient) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if c.retry == nil {
		return c.doGet(ctx, endpoint, params, out)
	}
	return resilience.Do(ctx, *c.retry, func(ctx context.Context) error {
		return c.doGet(ctx, endpoint, params, out)
	})
}

func (c *httpClient) doGet(ctx context.Context, endpoint string, params url.Values, out any) error {
	reqURL := fmt.Sprintf("%s/api/3/%s", c.baseURL, endpoint)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return eris.Wrap(err, "activecampaign: create request")
	}
	req.Header.Set("Api-Token", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "activecampaign: GET %s", endpoint)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "activecampaign: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RemoteError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "activecampaign: unmarshal %s response", endpoint)
	}
	return nil
}

func (c *httpClient) GetContacts(ctx context.Context, offset, limit int) (*ContactsPage, error) {
	params := url.Values{}
	params.Set("offset", strconv.Itoa(offset))
	params.Set("limit", strconv.Itoa(limit))

	var page ContactsPage
	if err := c.get(ctx, "contacts", params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *httpClient) GetContact(ctx context.Context, id string) (*Contact, error) {
	var resp struct {
		Contact Contact `json:"contact"`
	}
	if err := c.get(ctx, "contacts/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Contact, nil
}

func (c *httpClient) GetContactDeals(ctx context.Context, contactID string) ([]Deal, error) {
	var resp struct {
		Deals []Deal `json:"deals"`
	}
	if err := c.get(ctx, "contacts/"+url.PathEscape(contactID)+"/deals", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Deals, nil
}

func (c *httpClient) GetDeals(ctx context.Context, offset, limit int) (*DealsPage, error) {
	params := url.Values{}
	params.Set("offset", strconv.Itoa(offset))
	params.Set("limit", strconv.Itoa(limit))

	var page DealsPage
	if err := c.get(ctx, "deals", params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *httpClient) AllContacts() *ContactPager {
	return &ContactPager{client: c, limit: c.pageSize, wait: c.wait}
}

func (c *httpClient) AllDeals() *DealPager {
	return &DealPager{client: c, limit: c.pageSize, wait: c.wait}
}
