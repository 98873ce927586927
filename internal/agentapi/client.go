// Package agentapi is the typed HTTP client the agent daemon uses to talk
// to the cluster server.
package agentapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Client talks to the server API. Credentials are attached to every
// request body after SetCredentials.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userID     uint
	userToken  string
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
	}
}

// SetCredentials attaches the member identity used by authenticated calls.
func (c *Client) SetCredentials(userID uint, userToken string) {
	c.userID = userID
	c.userToken = userToken
}

// envelope is the server's uniform response wrapper.
type envelope struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

type errComment struct {
	Comment string `json:"comment"`
}

// AuthResult is the identity minted by the auth endpoint.
type AuthResult struct {
	UserToken    string `json:"user_token"`
	UserID       uint   `json:"user_id"`
	ClusterToken string `json:"cluster_token"`
}

// Task is one pending dispatch addressed to this member.
type Task struct {
	ID        uint      `json:"id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Auth registers a fresh member in a fresh cluster.
func (c *Client) Auth() (*AuthResult, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/api/auth")
	if err != nil {
		return nil, fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := decodeEnvelope(resp)
	if err != nil {
		return nil, err
	}
	var result AuthResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}
	return &result, nil
}

// Info fetches the raw cluster snapshot. The payload is returned
// undecoded so the reconciler can validate its shape first.
func (c *Client) Info() (json.RawMessage, error) {
	return c.post("/api/info", map[string]any{})
}

// JoinCluster moves this member into another cluster by its join token.
func (c *Client) JoinCluster(clusterToken string) error {
	_, err := c.post("/api/join_cluster", map[string]any{"cluster_token": clusterToken})
	return err
}

// SetAbout updates this member's machine description.
func (c *Client) SetAbout(text string) error {
	_, err := c.post("/api/set_about", map[string]any{"text": text})
	return err
}

// CreateChat creates a chat and returns its server-side id.
func (c *Client) CreateChat(name string) (uint, error) {
	raw, err := c.post("/api/create_chat", map[string]any{"name": name})
	if err != nil {
		return 0, err
	}
	var result struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, fmt.Errorf("decode create_chat response: %w", err)
	}
	return result.ID, nil
}

// RenameChat changes a chat's name.
func (c *Client) RenameChat(chatID uint, name string) error {
	_, err := c.post("/api/edit_chat_name", map[string]any{"chat_id": chatID, "name": name})
	return err
}

// DeleteChat removes a chat and everything in it.
func (c *Client) DeleteChat(chatID uint) error {
	_, err := c.post("/api/delete_chat", map[string]any{"chat_id": chatID})
	return err
}

// SendMessage posts a message to a chat, scheduling an agent response.
func (c *Client) SendMessage(chatID uint, text string) error {
	_, err := c.post("/api/send_message", map[string]any{"chat_id": chatID, "text": text})
	return err
}

// GetTasks returns the unfinished tasks addressed to this member.
func (c *Client) GetTasks() ([]Task, error) {
	raw, err := c.post("/api/get_tasks", map[string]any{})
	if err != nil {
		return nil, err
	}
	var tasks []Task
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, fmt.Errorf("decode get_tasks response: %w", err)
	}
	return tasks, nil
}

// CompleteTask reports a task's output.
func (c *Client) CompleteTask(taskID uint, output string) error {
	_, err := c.post("/api/complete_task", map[string]any{"event_id": taskID, "text": output})
	return err
}

// SendFile uploads a file to the cluster's shared directory.
func (c *Client) SendFile(name string, contents io.Reader) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("user_id", fmt.Sprintf("%d", c.userID)); err != nil {
		return err
	}
	if err := writer.WriteField("user_token", c.userToken); err != nil {
		return err
	}
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, contents); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	resp, err := c.httpClient.Post(
		c.baseURL+"/api/send_file", writer.FormDataContentType(), &body)
	if err != nil {
		return fmt.Errorf("send_file request: %w", err)
	}
	defer resp.Body.Close()

	_, err = decodeEnvelope(resp)
	return err
}

// GetFile downloads a file from the cluster's shared directory.
func (c *Client) GetFile(name string) ([]byte, error) {
	payload, err := c.requestBody(map[string]any{"file_name": name})
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Post(
		c.baseURL+"/api/get_file", "application/json", payload)
	if err != nil {
		return nil, fmt.Errorf("get_file request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, apiError(resp.StatusCode, raw)
	}
	return io.ReadAll(resp.Body)
}

// post sends an authenticated JSON request and returns the response
// payload.
func (c *Client) post(path string, fields map[string]any) (json.RawMessage, error) {
	payload, err := c.requestBody(fields)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", payload)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", path, err)
	}
	defer resp.Body.Close()

	return decodeEnvelope(resp)
}

// requestBody marshals request fields with the credentials merged in.
func (c *Client) requestBody(fields map[string]any) (io.Reader, error) {
	body := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		body[k] = v
	}
	body["user_id"] = c.userID
	body["user_token"] = c.userToken

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return bytes.NewReader(raw), nil
}

func decodeEnvelope(resp *http.Response) (json.RawMessage, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if env.Status != "OK" {
		return nil, apiError(resp.StatusCode, env.Response)
	}
	return env.Response, nil
}

func apiError(statusCode int, response []byte) error {
	var ec errComment
	if err := json.Unmarshal(response, &ec); err == nil && ec.Comment != "" {
		return fmt.Errorf("server rejected request (status %d): %s", statusCode, ec.Comment)
	}
	return fmt.Errorf("server rejected request (status %d)", statusCode)
}
