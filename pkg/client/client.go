// Package client is a typed Go client for the Rally HTTP API.
//
// Every method takes a context and returns the decoded payload of the
// response envelope. Failures are *APIError values that unwrap to one of
// the sentinel errors in this package (ErrNotFound, ErrAlreadyMember, ...).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"time"
)

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New baseURL is the server root, e.g. http://localhost:8080; the /api/v1
// prefix is added by the client.
func New(baseURL string, opts ...Option) *Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConnsPerHost = 64
	t.IdleConnTimeout = 90 * time.Second

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		http:    &http.Client{Transport: t, Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && err != io.EOF {
		if resp.StatusCode >= 400 {
			return newAPIError(resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 400 {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return newAPIError(resp.StatusCode, msg)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

func idPath(format string, id int64) string {
	return fmt.Sprintf(format, id)
}

// Auth

func (c *Client) Signup(ctx context.Context, username, email, password string) (*AuthResult, error) {
	var res AuthResult
	err := c.do(ctx, http.MethodPost, "/auth/signup", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var res AuthResult
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) ConfirmEmail(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/confirm", map[string]string{"token": token}, nil)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

func (c *Client) Refresh(ctx context.Context) (*AuthResult, error) {
	var res AuthResult
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Me(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// Users

func (c *Client) GetUser(ctx context.Context, id int64) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodGet, idPath("/users/%d", id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) GetUsersByIDs(ctx context.Context, ids []int64) ([]Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	var out []Profile
	q := url.Values{"ids": {strings.Join(parts, ",")}}
	if err := c.do(ctx, http.MethodGet, "/users?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Groups

func (c *Client) CreateGroup(ctx context.Context, name, imageURL string) (*Group, error) {
	var g Group
	err := c.do(ctx, http.MethodPost, "/groups", map[string]string{"name": name, "image_url": imageURL}, &g)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// JoinGroupByCode returns the id of the joined group.
func (c *Client) JoinGroupByCode(ctx context.Context, code string) (int64, error) {
	var res struct {
		GroupID int64 `json:"group_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/groups/join", map[string]string{"code": code}, &res); err != nil {
		return 0, err
	}
	return res.GroupID, nil
}

func (c *Client) GetGroups(ctx context.Context) ([]GroupSummary, error) {
	var out []GroupSummary
	if err := c.do(ctx, http.MethodGet, "/groups", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetGroupOverview(ctx context.Context) ([]GroupOverview, error) {
	var out []GroupOverview
	if err := c.do(ctx, http.MethodGet, "/groups/overview", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetGroup(ctx context.Context, groupID int64) (*GroupSummary, error) {
	var g GroupSummary
	if err := c.do(ctx, http.MethodGet, idPath("/groups/%d", groupID), nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// UpdateGroup fields outside name and image_url are ignored by the server.
func (c *Client) UpdateGroup(ctx context.Context, groupID int64, fields map[string]any) (*Group, error) {
	var g Group
	if err := c.do(ctx, http.MethodPatch, idPath("/groups/%d", groupID), fields, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *Client) DeleteGroup(ctx context.Context, groupID int64) error {
	return c.do(ctx, http.MethodDelete, idPath("/groups/%d", groupID), nil, nil)
}

// Items

func (c *Client) CreateBucketListItem(ctx context.Context, groupID int64, item NewItem) (*Item, error) {
	var it Item
	if err := c.do(ctx, http.MethodPost, idPath("/groups/%d/items", groupID), item, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

func (c *Client) GetBucketListItems(ctx context.Context, groupID int64) ([]Item, error) {
	var out []Item
	if err := c.do(ctx, http.MethodGet, idPath("/groups/%d/items", groupID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetBucketListBoard(ctx context.Context, groupID int64) (*Board, error) {
	var b Board
	if err := c.do(ctx, http.MethodGet, idPath("/groups/%d/board", groupID), nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) UpdateBucketListItem(ctx context.Context, itemID int64, fields map[string]any) (*Item, error) {
	var it Item
	if err := c.do(ctx, http.MethodPatch, idPath("/items/%d", itemID), fields, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

func (c *Client) DeleteBucketListItem(ctx context.Context, itemID int64) error {
	return c.do(ctx, http.MethodDelete, idPath("/items/%d", itemID), nil, nil)
}

func (c *Client) Rsvp(ctx context.Context, itemID int64) error {
	return c.do(ctx, http.MethodPost, idPath("/items/%d/rsvp", itemID), nil, nil)
}

func (c *Client) RemoveRsvp(ctx context.Context, itemID int64) error {
	return c.do(ctx, http.MethodDelete, idPath("/items/%d/rsvp", itemID), nil, nil)
}

// Comments

func (c *Client) GetComments(ctx context.Context, itemID int64) ([]Comment, error) {
	var out []Comment
	if err := c.do(ctx, http.MethodGet, idPath("/items/%d/comments", itemID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddComment(ctx context.Context, itemID int64, content string) (*Comment, error) {
	var cm Comment
	err := c.do(ctx, http.MethodPost, idPath("/items/%d/comments", itemID), map[string]string{"content": content}, &cm)
	if err != nil {
		return nil, err
	}
	return &cm, nil
}

func (c *Client) GetCommentCount(ctx context.Context, itemID int64) (int64, error) {
	var res struct {
		Count int64 `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, idPath("/items/%d/comments/count", itemID), nil, &res); err != nil {
		return 0, err
	}
	return res.Count, nil
}

func (c *Client) DeleteComment(ctx context.Context, commentID int64) error {
	return c.do(ctx, http.MethodDelete, idPath("/comments/%d", commentID), nil, nil)
}

// Date suggestions

func (c *Client) ListDateSuggestions(ctx context.Context, itemID int64) ([]DateSuggestion, error) {
	var out []DateSuggestion
	if err := c.do(ctx, http.MethodGet, idPath("/items/%d/dates", itemID), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SuggestDate(ctx context.Context, itemID int64, date string) (*DateSuggestion, error) {
	var s DateSuggestion
	if err := c.do(ctx, http.MethodPost, idPath("/items/%d/dates", itemID), map[string]string{"date": date}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) EditDateSuggestion(ctx context.Context, suggestionID int64, date string) (*DateSuggestion, error) {
	var s DateSuggestion
	if err := c.do(ctx, http.MethodPatch, idPath("/dates/%d", suggestionID), map[string]string{"date": date}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) DeleteDateSuggestion(ctx context.Context, suggestionID int64) error {
	return c.do(ctx, http.MethodDelete, idPath("/dates/%d", suggestionID), nil, nil)
}

// VoteForDate toggles the caller's vote.
func (c *Client) VoteForDate(ctx context.Context, suggestionID int64) (*VoteResult, error) {
	var res VoteResult
	if err := c.do(ctx, http.MethodPost, idPath("/dates/%d/vote", suggestionID), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Images

// UploadImage stores r at path (groups/... or items/...) and returns its public URL.
func (c *Client) UploadImage(ctx context.Context, path, filename, contentType string, r io.Reader) (string, error) {
	body, ct, err := multipartFile(map[string]string{"path": path}, filename, contentType, r)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", ct)
	var res struct {
		URL string `json:"url"`
	}
	if err := c.send(req, &res); err != nil {
		return "", err
	}
	return res.URL, nil
}

// UploadAvatar replaces the caller's avatar and returns the updated profile.
func (c *Client) UploadAvatar(ctx context.Context, filename, contentType string, r io.Reader) (*Profile, error) {
	body, ct, err := multipartFile(nil, filename, contentType, r)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+"/users/me/avatar", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", ct)
	var p Profile
	if err := c.send(req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func multipartFile(fields map[string]string, filename, contentType string, r io.Reader) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
