package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Client talks to the remote receipt service.
//
// The service authenticates with a login call returning a session token; the
// token is cached and reused across requests. Login is lazy: the first
// operation that needs a session performs it. All round trips share one
// bounded timeout so a slow gateway never hangs a webhook response.
type Client struct {
	apiURL    string
	companyID string
	user      string
	password  string

	httpClient *http.Client

	mu        sync.Mutex
	sessionID string

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

type ClientConfig struct {
	APIURL    string
	CompanyID string
	User      string
	Password  string
	Timeout   time.Duration
}

var ErrNotConfigured = errors.New("billing: gateway credentials not configured")

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		companyID:  cfg.CompanyID,
		user:       cfg.User,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
		clock:      time.Now,
	}
}

// apiEnvelope is the common response shape of the gateway. Document ids are
// sometimes numbers and sometimes strings; keep them loose and normalize.
type apiEnvelope struct {
	Status    bool   `json:"status"`
	SessionID string `json:"session_id"`
	DocID     any    `json:"doc_id"`
	DocNum    any    `json:"doc_num"`
	Message   string `json:"message"`
}

func (c *Client) Authenticate(ctx context.Context) error {
	if c.companyID == "" || c.user == "" {
		return ErrNotConfigured
	}

	form := url.Values{}
	form.Set("cid", c.companyID)
	form.Set("user", c.user)
	form.Set("pass", c.password)

	env, _, err := c.postForm(ctx, "/api/login", form)
	if err != nil {
		return fmt.Errorf("billing: login failed: %w", err)
	}
	if !env.Status || env.SessionID == "" {
		return fmt.Errorf("billing: login rejected: %s", env.Message)
	}

	c.mu.Lock()
	c.sessionID = env.SessionID
	c.mu.Unlock()
	return nil
}

func (c *Client) CreateReceipt(ctx context.Context, p ReceiptPayload) (Result, error) {
	if p.Amount <= 0 {
		return Result{}, fmt.Errorf("billing: receipt amount must be positive, got %d", p.Amount)
	}
	sid, err := c.session(ctx)
	if err != nil {
		return failure(err), nil
	}

	body := map[string]any{
		"sid":         sid,
		"doctype":     "receipt",
		"lang":        "he",
		"currency":    "ILS",
		"watax":       1,
		"date":        c.clock().Format("02/01/2006"),
		"description": p.Description,
		"sum":         p.Amount,
		"client": map[string]string{
			"name":  p.ClientName,
			"phone": p.ClientPhone,
			"email": p.ClientEmail,
		},
	}

	env, raw, err := c.postJSON(ctx, "/api/doc/create", body)
	if err != nil {
		return failure(err), nil
	}
	if !env.Status {
		return Result{OK: false, Message: orUnknown(env.Message), Raw: raw}, nil
	}
	return Result{
		OK:      true,
		DocID:   asString(env.DocID),
		DocNum:  asString(env.DocNum),
		Message: env.Message,
		Raw:     raw,
	}, nil
}

func (c *Client) CancelReceipt(ctx context.Context, docID string) (Result, error) {
	if docID == "" {
		return Result{}, errors.New("billing: doc id is required")
	}
	sid, err := c.session(ctx)
	if err != nil {
		return failure(err), nil
	}

	form := url.Values{}
	form.Set("sid", sid)
	form.Set("doc_id", docID)

	env, raw, err := c.postForm(ctx, "/api/doc/cancel", form)
	if err != nil {
		return failure(err), nil
	}
	if !env.Status {
		return Result{OK: false, Message: orUnknown(env.Message), Raw: raw}, nil
	}
	return Result{OK: true, DocID: docID, Message: env.Message, Raw: raw}, nil
}

func (c *Client) GetReceipt(ctx context.Context, docID string) (Result, error) {
	if docID == "" {
		return Result{}, errors.New("billing: doc id is required")
	}
	sid, err := c.session(ctx)
	if err != nil {
		return failure(err), nil
	}

	form := url.Values{}
	form.Set("sid", sid)
	form.Set("doc_id", docID)

	env, raw, err := c.postForm(ctx, "/api/doc/get", form)
	if err != nil {
		return failure(err), nil
	}
	if !env.Status {
		return Result{OK: false, Message: orUnknown(env.Message), Raw: raw}, nil
	}
	return Result{OK: true, DocID: docID, DocNum: asString(env.DocNum), Message: env.Message, Raw: raw}, nil
}

// session returns the cached session token, authenticating if needed.
func (c *Client) session(ctx context.Context) (string, error) {
	c.mu.Lock()
	sid := c.sessionID
	c.mu.Unlock()
	if sid != "" {
		return sid, nil
	}
	if err := c.Authenticate(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	sid = c.sessionID
	c.mu.Unlock()
	return sid, nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) (apiEnvelope, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return apiEnvelope{}, "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *Client) postJSON(ctx context.Context, path string, body any) (apiEnvelope, string, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return apiEnvelope{}, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+path, bytes.NewReader(buf))
	if err != nil {
		return apiEnvelope{}, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (apiEnvelope, string, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apiEnvelope{}, "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apiEnvelope{}, "", err
	}
	if resp.StatusCode != http.StatusOK {
		return apiEnvelope{}, string(raw), fmt.Errorf("gateway HTTP %d: %s", resp.StatusCode, string(raw))
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return apiEnvelope{}, string(raw), fmt.Errorf("gateway response decode failed: %w", err)
	}
	return env, string(raw), nil
}

func failure(err error) Result {
	return Result{OK: false, Message: err.Error()}
}

func orUnknown(msg string) string {
	if msg == "" {
		return "unknown gateway error"
	}
	return msg
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
