// Package session talks to the sidecar collaborator that turns captured
// selections into assistant sessions. The pipeline hands a selection off
// here and does not interpret what the sidecar does with it.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"holdsense/clipboard"
	"holdsense/geom"
)

var ErrSidecarUnavailable = errors.New("sidecar unavailable")

// CapturePayload is the handoff for one locked selection.
type CapturePayload struct {
	CaptureID string
	DataURL   string
	Text      string
	Rect      geom.Rect
	DisplayID int64
	Viewport  geom.Rect
}

// ChatMessage is one user turn on the chat stream. Intent is optional and
// selects one of the candidates returned at attach time.
type ChatMessage struct {
	Intent  string `json:"intent,omitempty"`
	Message string `json:"message"`
}

// ChatFrame is one server frame: a content chunk or the done marker.
type ChatFrame struct {
	Event   string `json:"event"`
	Content string `json:"content,omitempty"`
}

// ChatStream is an open chat socket for one session.
type ChatStream interface {
	Send(msg ChatMessage) error
	Recv() (ChatFrame, error)
	Close() error
}

// Collaborator is what the capture pipeline needs from the assistant side.
type Collaborator interface {
	ProbeSelectionText(ctx context.Context) (string, error)
	AttachCapture(ctx context.Context, payload CapturePayload) (string, error)
	OpenChat(ctx context.Context, sessionID string) (ChatStream, error)
}

// Sidecar wire structures.
type selectionTextResponse struct {
	Text *string `json:"text"`
}

type rectBody struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type selectionBody struct {
	rectBody
	DisplayID int64 `json:"displayId"`
}

type intentRequest struct {
	CaptureID string        `json:"captureId,omitempty"`
	Image     string        `json:"image,omitempty"`
	Text      string        `json:"text,omitempty"`
	Selection selectionBody `json:"selection"`
	Viewport  rectBody      `json:"viewport"`
}

type intentCandidate struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type intentResponse struct {
	SessionID  string            `json:"session_id"`
	Candidates []intentCandidate `json:"candidates"`
}

// Client implements Collaborator against a local sidecar.
type Client struct {
	baseURL string
	http    *http.Client
	dialer  *websocket.Dialer

	// readClipboard is the probe fallback when the sidecar is down.
	readClipboard func() string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:       baseURL,
		http:          &http.Client{Timeout: timeout},
		dialer:        &websocket.Dialer{HandshakeTimeout: timeout},
		readClipboard: clipboard.ReadText,
	}
}

// ProbeSelectionText asks the sidecar for the text currently selected in
// the foreground app. Transport failures degrade to a local clipboard
// read instead of an error; the probe is best-effort by contract.
func (c *Client) ProbeSelectionText(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/selection/text", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		log.Printf("session: selection probe unreachable, using clipboard: %v", err)
		return c.readClipboard(), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("selection probe returned status %d", resp.StatusCode)
	}

	var body selectionTextResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode probe response: %v", err)
	}
	if body.Text == nil {
		return "", nil
	}
	return *body.Text, nil
}

// AttachCapture posts a locked selection to the sidecar and returns the
// session id it opened for it.
func (c *Client) AttachCapture(ctx context.Context, payload CapturePayload) (string, error) {
	request := intentRequest{
		CaptureID: payload.CaptureID,
		Image:     payload.DataURL,
		Text:      payload.Text,
		Selection: selectionBody{
			rectBody:  toRectBody(payload.Rect),
			DisplayID: payload.DisplayID,
		},
		Viewport: toRectBody(payload.Viewport),
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/intents", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSidecarUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("attach returned status %d: %s", resp.StatusCode, snippet)
	}

	var body intentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode attach response: %v", err)
	}
	if body.SessionID == "" {
		return "", fmt.Errorf("attach response carries no session id")
	}

	log.Printf("session: capture %s attached as session %s (%d intent candidates)",
		payload.CaptureID, body.SessionID, len(body.Candidates))
	return body.SessionID, nil
}

// OpenChat dials the chat socket for an attached session.
func (c *Client) OpenChat(ctx context.Context, sessionID string) (ChatStream, error) {
	wsURL, err := chatURL(c.baseURL, sessionID)
	if err != nil {
		return nil, err
	}

	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSidecarUnavailable, err)
	}
	return &wsStream{conn: conn}, nil
}

// chatURL rewrites the HTTP base URL to its websocket form and appends
// the chat path and session query.
func chatURL(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid sidecar URL %q: %v", baseURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported sidecar scheme %q", u.Scheme)
	}
	u.Path = "/chat"
	u.RawQuery = url.Values{"session_id": []string{sessionID}}.Encode()
	return u.String(), nil
}

type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) Send(msg ChatMessage) error {
	return s.conn.WriteJSON(msg)
}

func (s *wsStream) Recv() (ChatFrame, error) {
	var frame ChatFrame
	if err := s.conn.ReadJSON(&frame); err != nil {
		return ChatFrame{}, err
	}
	return frame, nil
}

func (s *wsStream) Close() error {
	return s.conn.Close()
}

func toRectBody(r geom.Rect) rectBody {
	return rectBody{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}
