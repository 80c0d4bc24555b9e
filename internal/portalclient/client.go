// Package portalclient talks to the portal api: list and watch resource
// views, submit upload forms and send chat messages.
package portalclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"classportal/internal/listview"
	"classportal/internal/storage"
)

// ErrUploadFailed is returned when the storage backend rejects the bytes of a file.
var ErrUploadFailed = errors.New("upload failed")

// APIError is a non-2xx answer from the api. Message is shown to users verbatim.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string { return e.Message }

// Client calls the portal api on behalf of one identity.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New creates a client with a request timeout.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Page is a rendered list view. Items stay raw so callers decode the resource they asked for.
type Page struct {
	listview.Snapshot[json.RawMessage]
	TotalUnits *int `json:"totalUnits,omitempty"`
}

// Query selects a page of a list view.
type Query struct {
	Criteria listview.Criteria
	Page     int
	Timezone string
	// Course narrows the shop list on the server.
	Course string
}

func (q Query) values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("q", q.Criteria.Text)
	set("date", q.Criteria.Date)
	set("category", q.Criteria.Category)
	set("tz", q.Timezone)
	set("course", q.Course)
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	return v
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(out), "decode response")
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	apiErr := &APIError{Status: resp.StatusCode, Message: resp.Status}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Fields = body.Fields
	}
	return apiErr
}

// Me returns the caller's profile.
func (c *Client) Me(ctx context.Context) (Profile, error) {
	var p Profile
	err := c.do(ctx, http.MethodGet, "/v1/me", nil, &p)
	return p, err
}

// List fetches one rendered page of resource.
func (c *Client) List(ctx context.Context, resource string, q Query) (Page, error) {
	var p Page
	path := "/v1/" + resource
	if v := q.values(); len(v) > 0 {
		path += "?" + v.Encode()
	}
	err := c.do(ctx, http.MethodGet, path, nil, &p)
	return p, err
}

// Delete removes id from resource. Deleting a record that is already gone succeeds.
func (c *Client) Delete(ctx context.Context, resource, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/"+resource+"/"+url.PathEscape(id), nil, nil)
}

// Deleter adapts Delete for a listview.DeleteFlow on resource.
func (c *Client) Deleter(resource string) listview.Deleter {
	return listview.DeleterFunc(func(ctx context.Context, id string) error {
		return c.Delete(ctx, resource, id)
	})
}

// GenerateUploadURL asks for a single-use upload target.
func (c *Client) GenerateUploadURL(ctx context.Context) (storage.UploadTarget, error) {
	var t storage.UploadTarget
	err := c.do(ctx, http.MethodPost, "/v1/storage/upload-url", nil, &t)
	return t, err
}

// Upload runs the handshake for one file and returns its storage reference.
func (c *Client) Upload(ctx context.Context, f File) (string, error) {
	target, err := c.GenerateUploadURL(ctx)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.UploadURL, bytes.NewReader(f.Data))
	if err != nil {
		return "", err
	}
	contentType := f.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(f.Data)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", errors.Wrap(ErrUploadFailed, err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", ErrUploadFailed
	}
	var out struct {
		StorageID string `json:"storageId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.StorageID == "" {
		return "", ErrUploadFailed
	}
	return out.StorageID, nil
}

func (c *Client) uploadAll(ctx context.Context, files []File) ([]string, error) {
	refs := make([]string, 0, len(files))
	for _, f := range files {
		ref, err := c.Upload(ctx, f)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
