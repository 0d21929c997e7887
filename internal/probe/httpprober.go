package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/sitewatch/internal/domain"
	"github.com/hamed0406/sitewatch/internal/urlutil"
)

// QuotaPerUnit converts dashboard quota units into currency units.
const QuotaPerUnit = 500000.0

// HTTPProber talks to new-api / one-api style dashboards.
//
// Endpoints used:
//   - /v1/models                (API key)       model list
//   - /api/user/models          (access token)  model list fallback
//   - /api/user/self            (access token)  quota
//   - /api/log/self/stat        (access token)  today's consumption
//   - /api/token/, /api/user/self/groups, /api/pricing  extended payloads
type HTTPProber struct {
	Client    *http.Client
	transport *http.Transport
	now       func() time.Time
}

func NewHTTPProber() *HTTPProber {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.MaxIdleConnsPerHost = 4
	return &HTTPProber{
		Client:    &http.Client{Transport: tr},
		transport: tr,
		now:       time.Now,
	}
}

// CloseShared drops idle keep-alive connections held for the dashboards.
func (h *HTTPProber) CloseShared() {
	if h.transport != nil {
		h.transport.CloseIdleConnections()
	}
}

func (h *HTTPProber) Probe(ctx context.Context, site domain.Site, opts Options) (domain.Result, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	res, err := h.probe(ctx, site, opts)
	var se *StatusError
	var ae *APIError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &se):
		f := domain.Failure(site, err.Error())
		f.StatusCode = se.Code
		return f, nil
	case errors.As(err, &ae):
		return domain.Failure(site, err.Error()), nil
	default:
		return domain.Result{}, err
	}
}

func (h *HTTPProber) probe(ctx context.Context, site domain.Site, opts Options) (domain.Result, error) {
	res := domain.Result{
		Name:   site.Name,
		URL:    site.URL,
		Status: domain.StatusSuccess,
		Models: []string{},
	}

	models, err := h.models(ctx, site)
	if err != nil {
		return res, err
	}
	res.Models = models

	if site.AccessToken == "" {
		return res, nil
	}

	var self struct {
		Quota        float64 `json:"quota"`
		RequestCount int64   `json:"request_count"`
	}
	if err := h.getEnvelope(ctx, site, "/api/user/self", &self); err != nil {
		return res, err
	}
	bal := self.Quota / QuotaPerUnit
	res.Balance = &bal

	if usage, ok := h.todayUsage(ctx, site); ok {
		res.TodayUsage = &usage
	}

	if opts.Quick && opts.Previous != nil {
		res.APIKeys = opts.Previous.APIKeys
		res.UserGroups = opts.Previous.UserGroups
		res.ModelPricing = opts.Previous.ModelPricing
		return res, nil
	}

	// Extended payloads are best effort: a failing endpoint leaves its field empty.
	var g errgroup.Group
	g.Go(func() error {
		res.APIKeys = h.rawData(ctx, site, "/api/token/?p=0&size=100")
		return nil
	})
	g.Go(func() error {
		res.UserGroups = h.rawData(ctx, site, "/api/user/self/groups")
		return nil
	})
	g.Go(func() error {
		res.ModelPricing = h.rawData(ctx, site, "/api/pricing")
		return nil
	})
	_ = g.Wait()

	return res, nil
}

func (h *HTTPProber) models(ctx context.Context, site domain.Site) ([]string, error) {
	if site.APIKey != "" {
		var body struct {
			Data []struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		if err := h.get(ctx, urlutil.Join(site.URL, "/v1/models"), site.APIKey, "", &body); err != nil {
			return nil, err
		}
		out := make([]string, 0, len(body.Data))
		for _, m := range body.Data {
			out = append(out, m.ID)
		}
		return out, nil
	}
	if site.AccessToken == "" {
		return nil, &APIError{Endpoint: "/v1/models", Message: "missing credential: no api key or access token configured"}
	}
	var names []string
	if err := h.getEnvelope(ctx, site, "/api/user/models", &names); err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func (h *HTTPProber) todayUsage(ctx context.Context, site domain.Site) (float64, bool) {
	now := h.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	q := url.Values{}
	q.Set("type", "2")
	q.Set("start_timestamp", fmt.Sprint(start.Unix()))
	q.Set("end_timestamp", fmt.Sprint(now.Unix()))

	var stat struct {
		Quota float64 `json:"quota"`
	}
	if err := h.getEnvelope(ctx, site, "/api/log/self/stat?"+q.Encode(), &stat); err != nil {
		return 0, false
	}
	return stat.Quota / QuotaPerUnit, true
}

func (h *HTTPProber) rawData(ctx context.Context, site domain.Site, path string) json.RawMessage {
	var raw json.RawMessage
	if err := h.getEnvelope(ctx, site, path, &raw); err != nil || len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}

type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (h *HTTPProber) getEnvelope(ctx context.Context, site domain.Site, path string, out any) error {
	var env envelope
	if err := h.get(ctx, urlutil.Join(site.URL, path), site.AccessToken, site.UserID, &env); err != nil {
		return err
	}
	if env.Success != nil && !*env.Success {
		return &APIError{Endpoint: path, Message: env.Message}
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (h *HTTPProber) get(ctx context.Context, target, token, userID string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if userID != "" {
		req.Header.Set("New-Api-User", userID)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{URL: target, Code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", target, err)
	}
	return nil
}
