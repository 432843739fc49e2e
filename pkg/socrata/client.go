package socrata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const (
	appTokenHeader = "X-App-Token"
	countSelect    = "count(*) as count"
)

// Config holds the hosts and credentials for one Socrata session.
type Config struct {
	// CatalogURL is the discovery API host, e.g. "https://api.us.socrata.com".
	CatalogURL string
	// DataURL is the domain serving SODA resource queries, e.g. "https://datahub.austintexas.gov".
	DataURL string
	// PublishURL is the domain owning the destination dataset. Defaults to DataURL.
	PublishURL string

	Username string
	Password string
	AppToken string

	// Timeout bounds every request issued by the client. Zero means 60s.
	Timeout time.Duration
}

// Client is a minimal Socrata client for catalog search, SoQL row counts and dataset replace.
//
// A Client owns one pooled HTTP transport; call Close when the session is done.
type Client struct {
	catalogURL *url.URL
	dataURL    *url.URL
	publishURL *url.URL

	username string
	password string
	appToken string

	rest *resty.Client
}

// NewClient validates base URLs and constructs a client.
func NewClient(cfg Config) (*Client, error) {
	catalog, err := parseBaseURL(cfg.CatalogURL, "catalog")
	if err != nil {
		return nil, err
	}
	data, err := parseBaseURL(cfg.DataURL, "data")
	if err != nil {
		return nil, err
	}
	publish := data
	if strings.TrimSpace(cfg.PublishURL) != "" {
		publish, err = parseBaseURL(cfg.PublishURL, "publish")
		if err != nil {
			return nil, err
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	rest := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &Client{
		catalogURL: catalog,
		dataURL:    data,
		publishURL: publish,
		username:   strings.TrimSpace(cfg.Username),
		password:   strings.TrimSpace(cfg.Password),
		appToken:   strings.TrimSpace(cfg.AppToken),
		rest:       rest,
	}, nil
}

// Close releases idle pooled connections.
func (c *Client) Close() {
	c.rest.GetClient().CloseIdleConnections()
}

func parseBaseURL(raw string, name string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%s base URL is required", name)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s base URL: %w", name, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%s base URL must include a host (got %q)", name, raw)
	}
	// Ensure the base path ends with a slash so ResolveReference treats it as a directory.
	u.Path = strings.TrimRight(u.Path, "/") + "/"
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func (c *Client) request(ctx context.Context, authenticated bool) *resty.Request {
	req := c.rest.R().SetContext(ctx)
	if authenticated {
		req.SetBasicAuth(c.username, c.password)
		if c.appToken != "" {
			req.SetHeader(appTokenHeader, c.appToken)
		}
	}
	return req
}

// SearchCatalog lists assets of a domain. The anonymous view returns only public assets;
// the authenticated view also returns private assets visible to the credentials.
//
// ResultSetSize is the number of matching assets, which exceeds len(Results) when
// limit cut the listing short.
func (c *Client) SearchCatalog(ctx context.Context, domain string, limit int, authenticated bool) (CatalogResponse, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return CatalogResponse{}, fmt.Errorf("catalog domain is required")
	}

	req := c.request(ctx, authenticated).SetQueryParam("domains", domain)
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}
	op := "searchCatalog"
	if authenticated {
		op = "searchCatalogAuthenticated"
	}

	resp, err := req.Get(resolve(c.catalogURL, "api/catalog/v1"))
	if err != nil {
		return CatalogResponse{}, fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode()/100 != 2 {
		return CatalogResponse{}, newHTTPError(op, resp.RawResponse, resp.Body())
	}

	var out CatalogResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return CatalogResponse{}, fmt.Errorf("parse %s response: %w", op, err)
	}
	return out, nil
}

// CountRows runs `SELECT count(*)` against one resource.
func (c *Client) CountRows(ctx context.Context, resourceID string) (int64, error) {
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return 0, fmt.Errorf("resource id is required")
	}

	resp, err := c.request(ctx, true).
		SetQueryParam("$select", countSelect).
		Get(resolve(c.dataURL, "resource/"+resourceID+".json"))
	if err != nil {
		return 0, fmt.Errorf("countRows %s: %w", resourceID, err)
	}
	if resp.StatusCode()/100 != 2 {
		return 0, newHTTPError("countRows", resp.RawResponse, resp.Body())
	}
	n, err := parseCount(resp.Body())
	if err != nil {
		return 0, fmt.Errorf("parse countRows %s response: %w", resourceID, err)
	}
	return n, nil
}

// parseCount reads [{"count": "<n>"}]. SODA 2.0 returns the count as a string, 2.1 as a number.
func parseCount(body []byte) (int64, error) {
	if !gjson.ValidBytes(body) {
		return 0, fmt.Errorf("invalid json")
	}
	v := gjson.GetBytes(body, "0.count")
	switch v.Type {
	case gjson.String, gjson.Number:
		n, err := strconv.ParseInt(strings.TrimSpace(v.String()), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("count %q is not an integer", v.String())
		}
		return n, nil
	default:
		return 0, fmt.Errorf("missing count in response")
	}
}

// Replace overwrites every row of a dataset with rows (SODA replace: HTTP PUT).
func (c *Client) Replace(ctx context.Context, resourceID string, rows any) (ReplaceResult, error) {
	resourceID = strings.TrimSpace(resourceID)
	if resourceID == "" {
		return ReplaceResult{}, fmt.Errorf("resource id is required")
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return ReplaceResult{}, fmt.Errorf("encode replace body: %w", err)
	}

	resp, err := c.request(ctx, true).
		SetHeader("Content-Type", "application/json").
		SetBody(b).
		Put(resolve(c.publishURL, "resource/"+resourceID+".json"))
	if err != nil {
		return ReplaceResult{}, fmt.Errorf("replace %s: %w", resourceID, err)
	}
	if resp.StatusCode()/100 != 2 {
		return ReplaceResult{}, newHTTPError("replace", resp.RawResponse, resp.Body())
	}

	var out ReplaceResult
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return ReplaceResult{}, fmt.Errorf("parse replace response: %w", err)
	}
	if out.Errors > 0 {
		return out, &HTTPError{
			Op:         "replace",
			StatusCode: resp.StatusCode(),
			Status:     resp.Status(),
			Message:    fmt.Sprintf("%d rows rejected", out.Errors),
		}
	}
	return out, nil
}

func resolve(base *url.URL, relPath string) string {
	relPath = strings.TrimPrefix(relPath, "/")
	rel := &url.URL{Path: relPath}
	return base.ResolveReference(rel).String()
}
