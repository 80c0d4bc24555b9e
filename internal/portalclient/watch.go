package portalclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"classportal/internal/listview"
	"classportal/internal/live"
)

// Watcher follows a live list view. Every change on the server yields a new Page.
type Watcher struct {
	conn *websocket.Conn
}

// Watch dials the live view of resource with the initial query q.
func (c *Client) Watch(ctx context.Context, resource string, q Query) (*Watcher, error) {
	v := q.values()
	if c.Token != "" {
		v.Set("token", c.Token)
	}
	u, err := url.Parse(c.BaseURL + "/v1/live/" + resource)
	if err != nil {
		return nil, err
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.RawQuery = v.Encode()

	conn, resp, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{HTTPClient: c.dialClient()})
	if err != nil {
		if resp != nil && resp.StatusCode >= 300 {
			return nil, decodeError(resp)
		}
		return nil, errors.Wrapf(err, "watch %s", resource)
	}
	conn.SetReadLimit(4 << 20)
	return &Watcher{conn: conn}, nil
}

// dialClient drops the request timeout; a watch lives as long as its context.
func (c *Client) dialClient() *http.Client {
	if c.HTTP == nil {
		return nil
	}
	hc := *c.HTTP
	hc.Timeout = 0
	return &hc
}

// Next blocks until the server pushes the next rendering.
func (w *Watcher) Next(ctx context.Context) (Page, error) {
	var p Page
	err := wsjson.Read(ctx, w.conn, &p)
	return p, err
}

// Update changes the criteria or page of the view. A zero page keeps the current one.
func (w *Watcher) Update(ctx context.Context, criteria *listview.Criteria, page int) error {
	return wsjson.Write(ctx, w.conn, live.ClientFrame{Criteria: criteria, Page: page})
}

func (w *Watcher) Close() error {
	return w.conn.Close(websocket.StatusNormalClosure, "")
}
