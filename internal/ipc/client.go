package ipc

import (
	"encoding/json"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) call(method string, req, resp any) error {
	return remoteError(c.client.Call("Barscan."+method, req, resp))
}

// Start starts capture. A nil config reuses the bound configuration.
func (c *Client) Start(config json.RawMessage) (*SessionResponse, error) {
	var resp SessionResponse
	if err := c.call("Start", StartRequest{Config: config}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop ends the current capture session.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.call("Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Pause suspends capture.
func (c *Client) Pause() (*SessionResponse, error) {
	var resp SessionResponse
	if err := c.call("Pause", PauseRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Resume continues a paused session.
func (c *Client) Resume() (*SessionResponse, error) {
	var resp SessionResponse
	if err := c.call("Resume", ResumeRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EnableScan turns decoding on.
func (c *Client) EnableScan() (*ScanResponse, error) {
	return c.scan("EnableScan")
}

// DisableScan turns decoding off.
func (c *Client) DisableScan() (*ScanResponse, error) {
	return c.scan("DisableScan")
}

func (c *Client) scan(method string) (*ScanResponse, error) {
	var resp ScanResponse
	if err := c.call(method, ScanRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.call("Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Results returns every result field.
func (c *Client) Results() (*ResultsResponse, error) {
	var resp ResultsResponse
	if err := c.call("Results", ResultsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetField returns one result field.
func (c *Client) GetField(field string) (*FieldResponse, error) {
	var resp FieldResponse
	if err := c.call("GetField", FieldRequest{Field: field}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetField overwrites one result field.
func (c *Client) SetField(field, value string) (*FieldResponse, error) {
	var resp FieldResponse
	if err := c.call("SetField", FieldRequest{Field: field, Value: value}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResetResults restores every field to its default.
func (c *Client) ResetResults() (*ResultsResponse, error) {
	var resp ResultsResponse
	if err := c.call("ResetResults", ResetResultsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BeginAcquisition starts an acquisition.
func (c *Client) BeginAcquisition() (*AcquisitionResponse, error) {
	var resp AcquisitionResponse
	if err := c.call("BeginAcquisition", AcquisitionRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CompleteAcquisition completes id and snapshots the result fields.
func (c *Client) CompleteAcquisition(id string) (*AcquisitionResponse, error) {
	var resp AcquisitionResponse
	if err := c.call("CompleteAcquisition", AcquisitionRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AcquisitionStatus reports whether id has completed.
func (c *Client) AcquisitionStatus(id string) (*AcquisitionStatusResponse, error) {
	var resp AcquisitionStatusResponse
	if err := c.call("AcquisitionStatus", AcquisitionRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Acquisitions lists every known acquisition.
func (c *Client) Acquisitions() (*AcquisitionsResponse, error) {
	var resp AcquisitionsResponse
	if err := c.call("Acquisitions", AcquisitionsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History returns up to limit recent detections.
func (c *Client) History(limit int) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.call("History", HistoryRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Events fetches activity events after req.Since.
func (c *Client) Events(req EventsRequest) (*EventsResponse, error) {
	var resp EventsResponse
	if err := c.call("Events", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	var resp LogTailResponse
	if err := c.call("LogTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
