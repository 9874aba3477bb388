// Package chatmcp provides a client for the chat-mcp agent messaging API.
package chatmcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Client is a chat-mcp API client.
type Client struct {
	BaseURL    string
	ConfigDir  string
	HTTPClient *http.Client
}

// Identity is one joined channel membership persisted on disk, so a CLI
// invocation can reuse the agent ID from a previous join.
type Identity struct {
	ChannelID string `json:"channel_id"`
	AgentID   string `json:"agent_id"`
	Username  string `json:"username"`
}

// NewClient creates a new chat-mcp client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	configDir := os.Getenv("CHATMCP_CONFIG")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".chatmcp")
	}

	return &Client{
		BaseURL:    baseURL,
		ConfigDir:  configDir,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// LoadIdentity loads the persisted membership for a channel, if any.
func (c *Client) LoadIdentity(channelID string) (*Identity, error) {
	data, err := os.ReadFile(c.identityFile(channelID))
	if err != nil {
		return nil, err
	}
	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// SaveIdentity persists a membership for later invocations.
func (c *Client) SaveIdentity(id *Identity) error {
	if err := os.MkdirAll(c.ConfigDir, 0700); err != nil {
		return err
	}
	data, _ := json.MarshalIndent(id, "", "  ")
	return os.WriteFile(c.identityFile(id.ChannelID), data, 0600)
}

func (c *Client) identityFile(channelID string) string {
	return filepath.Join(c.ConfigDir, channelID+".json")
}

// doRequest performs an HTTP request.
func (c *Client) doRequest(method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequest(method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return nil, fmt.Errorf("chat-mcp error %d: %s", resp.StatusCode, errResp.Error)
	}

	return respBody, nil
}

// Channel is a channel as returned by the API.
type Channel struct {
	ID          string `json:"channel_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	AgentCount  int    `json:"agent_count"`
	MaxAgents   int    `json:"max_agents"`
	CreatedAt   string `json:"created_at"`
}

// ChannelListResponse is the response from listing channels.
type ChannelListResponse struct {
	Channels []Channel `json:"channels"`
	Total    int       `json:"total"`
	HasMore  bool      `json:"has_more"`
}

// Agent is a channel member as returned by the API.
type Agent struct {
	AgentID         string `json:"agent_id"`
	Username        string `json:"username"`
	RoleDescription string `json:"role_description"`
	JoinedAt        string `json:"joined_at"`
}

// ChannelDetail is the full channel view including its roster.
type ChannelDetail struct {
	ID            string  `json:"channel_id"`
	Name          string  `json:"name"`
	Description   string  `json:"description,omitempty"`
	MaxAgents     int     `json:"max_agents"`
	CurrentAgents int     `json:"current_agents"`
	CreatedAt     string  `json:"created_at"`
	Agents        []Agent `json:"agents"`
}

// Message is a sent message as returned by the API.
type Message struct {
	ID             string `json:"message_id"`
	ChannelID      string `json:"channel_id"`
	AgentID        string `json:"agent_id"`
	Content        string `json:"content"`
	SequenceNumber int64  `json:"sequence_number"`
	Timestamp      string `json:"timestamp"`
}

// Sender identifies a message author.
type Sender struct {
	AgentID  string `json:"agent_id"`
	Username string `json:"username"`
}

// ReadReceipt records one agent having read one message.
type ReadReceipt struct {
	Username string `json:"username"`
	ReadAt   string `json:"read_at"`
}

// MessageView is a message enriched with sender, mentions and readers.
type MessageView struct {
	ID             string        `json:"message_id"`
	Sender         Sender        `json:"sender"`
	Content        string        `json:"content"`
	Mentions       []string      `json:"mentions"`
	Timestamp      string        `json:"timestamp"`
	SequenceNumber int64         `json:"sequence_number"`
	ReadBy         []ReadReceipt `json:"read_by"`
}

// MessageListResponse is the response from any message listing call.
type MessageListResponse struct {
	Messages []MessageView `json:"messages"`
	Count    int           `json:"count"`
}

// CreateChannel creates a new channel. maxAgents of 0 takes the server
// default.
func (c *Client) CreateChannel(name, description string, maxAgents int) (*Channel, error) {
	req := map[string]interface{}{
		"name":        name,
		"description": description,
	}
	if maxAgents > 0 {
		req["max_agents"] = maxAgents
	}

	body, _ := json.Marshal(req)
	respBody, err := c.doRequest("POST", "/channels", body)
	if err != nil {
		return nil, err
	}

	var resp Channel
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListChannels lists active channels.
func (c *Client) ListChannels(limit, offset int) (*ChannelListResponse, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}

	path := "/channels"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	respBody, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}

	var resp ChannelListResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetChannel fetches a channel and its roster by ID or by name.
func (c *Client) GetChannel(ref string) (*ChannelDetail, error) {
	respBody, err := c.doRequest("GET", "/channels/"+url.PathEscape(ref), nil)
	if err != nil {
		return nil, err
	}

	var resp ChannelDetail
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteChannel deactivates a channel.
func (c *Client) DeleteChannel(channelID string) error {
	_, err := c.doRequest("DELETE", "/channels/"+channelID, nil)
	return err
}

// Join joins a channel and persists the membership for later calls.
func (c *Client) Join(channelID, username, roleDescription string) (*Agent, error) {
	req := map[string]string{
		"username":         username,
		"role_description": roleDescription,
	}

	body, _ := json.Marshal(req)
	respBody, err := c.doRequest("POST", "/channels/"+channelID+"/agents", body)
	if err != nil {
		return nil, err
	}

	var resp Agent
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}

	_ = c.SaveIdentity(&Identity{
		ChannelID: channelID,
		AgentID:   resp.AgentID,
		Username:  resp.Username,
	})
	return &resp, nil
}

// Leave removes an agent from a channel.
func (c *Client) Leave(channelID, agentID string) error {
	_, err := c.doRequest("DELETE", "/channels/"+channelID+"/agents/"+agentID, nil)
	return err
}

// ListAgents lists a channel's roster.
func (c *Client) ListAgents(channelID string) ([]Agent, error) {
	respBody, err := c.doRequest("GET", "/channels/"+channelID+"/agents", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Agents []Agent `json:"agents"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.Agents, nil
}

// Send appends a message to a channel's log.
func (c *Client) Send(channelID, agentID, content string) (*Message, error) {
	req := map[string]string{
		"agent_id": agentID,
		"content":  content,
	}

	body, _ := json.Marshal(req)
	respBody, err := c.doRequest("POST", "/channels/"+channelID+"/messages", body)
	if err != nil {
		return nil, err
	}

	var resp Message
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Peek reads recent messages without marking anything read.
func (c *Client) Peek(channelID string, limit int) (*MessageListResponse, error) {
	return c.messageList("/channels/"+channelID+"/messages", "", limit, 0)
}

// GetNew retrieves the agent's unread messages and marks them read.
// Calling it twice in a row returns only what arrived in between.
func (c *Client) GetNew(channelID, agentID string, limit int) (*MessageListResponse, error) {
	return c.messageList("/channels/"+channelID+"/messages/new", agentID, limit, 0)
}

// History retrieves paged history for the agent, marking it read. Pass
// beforeSequence to page backwards, or 0 for the newest page.
func (c *Client) History(channelID, agentID string, limit int, beforeSequence int64) (*MessageListResponse, error) {
	return c.messageList("/channels/"+channelID+"/messages/history", agentID, limit, beforeSequence)
}

// MessagesFrom lists one agent's recent messages without marking them.
func (c *Client) MessagesFrom(channelID, username string, limit int) (*MessageListResponse, error) {
	return c.messageList("/channels/"+channelID+"/messages/from/"+url.PathEscape(username), "", limit, 0)
}

// CheckMentions retrieves messages that @mention the agent, marking
// them read.
func (c *Client) CheckMentions(channelID, agentID string, limit int) (*MessageListResponse, error) {
	return c.messageList("/channels/"+channelID+"/mentions", agentID, limit, 0)
}

func (c *Client) messageList(path, agentID string, limit int, beforeSequence int64) (*MessageListResponse, error) {
	q := url.Values{}
	if agentID != "" {
		q.Set("agent_id", agentID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if beforeSequence > 0 {
		q.Set("before_sequence", strconv.FormatInt(beforeSequence, 10))
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	respBody, err := c.doRequest("GET", path, nil)
	if err != nil {
		return nil, err
	}

	var resp MessageListResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// HealthResponse is the response from the health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// Health checks server health.
func (c *Client) Health() (*HealthResponse, error) {
	respBody, err := c.doRequest("GET", "/health", nil)
	if err != nil {
		return nil, err
	}

	var resp HealthResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
