package cloudinary

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DefaultBaseURL is the Cloudinary upload API root.
const DefaultBaseURL = "https://api.cloudinary.com/v1_1"

// Client uploads and destroys assets using the Cloudinary REST API.
type Client struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	BaseURL   string
	HTTP      *http.Client
}

// New creates a Cloudinary client.
func New(cloudName, apiKey, apiSecret, folder string) *Client {
	return &Client{
		CloudName: cloudName,
		APIKey:    apiKey,
		APISecret: apiSecret,
		Folder:    folder,
		BaseURL:   DefaultBaseURL,
		HTTP:      &http.Client{Timeout: 60 * time.Second},
	}
}

// UploadResult holds the response from Cloudinary after a successful upload.
type UploadResult struct {
	PublicID     string `json:"public_id"`
	SecureURL    string `json:"secure_url"`
	URL          string `json:"url"`
	ResourceType string `json:"resource_type"`
	Format       string `json:"format"`
	Bytes        int    `json:"bytes"`
}

// ResourceType maps a MIME type to the Cloudinary resource type. Audio is stored as video.
func ResourceType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "video/"), strings.HasPrefix(contentType, "audio/"):
		return "video"
	default:
		return "raw"
	}
}

// Upload stores data under publicID (inside the configured folder).
func (c *Client) Upload(ctx context.Context, data []byte, publicID, contentType string) (*UploadResult, error) {
	params := c.baseParams()
	params["public_id"] = publicID
	if c.Folder != "" {
		params["folder"] = c.Folder
	}
	params["signature"] = c.sign(params)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		_ = w.WriteField(k, v)
	}
	part, err := w.CreateFormFile("file", publicID)
	if err != nil {
		return nil, errors.Wrap(err, "cloudinary: create form file")
	}
	if _, err := part.Write(data); err != nil {
		return nil, errors.Wrap(err, "cloudinary: write file")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "cloudinary: close form")
	}

	var result UploadResult
	if err := c.post(ctx, ResourceType(contentType), "upload", &buf, w.FormDataContentType(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Destroy removes the asset with the full public id (folder included).
func (c *Client) Destroy(ctx context.Context, publicID, resourceType string) error {
	params := c.baseParams()
	params["public_id"] = publicID
	params["invalidate"] = "true"
	params["signature"] = c.sign(params)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range params {
		_ = w.WriteField(k, v)
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "cloudinary: close form")
	}

	var result struct {
		Result string `json:"result"`
	}
	if err := c.post(ctx, resourceType, "destroy", &buf, w.FormDataContentType(), &result); err != nil {
		return err
	}
	if result.Result != "ok" && result.Result != "not found" {
		return errors.Errorf("cloudinary: destroy %s: %s", publicID, result.Result)
	}
	return nil
}

// FullPublicID returns the public id Cloudinary assigns to an upload of publicID.
func (c *Client) FullPublicID(publicID string) string {
	if c.Folder == "" {
		return publicID
	}
	return c.Folder + "/" + publicID
}

func (c *Client) baseParams() map[string]string {
	return map[string]string{
		"timestamp": strconv.FormatInt(time.Now().Unix(), 10),
		"api_key":   c.APIKey,
	}
}

func (c *Client) post(ctx context.Context, resourceType, action string, body io.Reader, contentType string, out any) error {
	url := fmt.Sprintf("%s/%s/%s/%s", strings.TrimRight(c.BaseURL, "/"), c.CloudName, resourceType, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return errors.Wrap(err, "cloudinary: create request")
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return errors.Wrap(err, "cloudinary: request")
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return errors.Errorf("cloudinary: %s failed (%d): %s", action, resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, "cloudinary: decode response")
	}
	return nil
}

// sign computes the Cloudinary API signature from the given params.
// api_key, file and resource_type are excluded from the signature.
func (c *Client) sign(params map[string]string) string {
	excludeKeys := map[string]bool{"api_key": true, "file": true, "resource_type": true}

	pairs := make([]string, 0, len(params))
	for k, v := range params {
		if !excludeKeys[k] && v != "" {
			pairs = append(pairs, k+"="+v)
		}
	}
	sort.Strings(pairs)

	h := sha1.New()
	h.Write([]byte(strings.Join(pairs, "&") + c.APISecret))
	return fmt.Sprintf("%x", h.Sum(nil))
}
