package acquisition

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"mold_monitor"
	"mold_monitor/internal/logger"
)

// OPCUAConfig describes the DAQ gateway endpoint and one node per channel, in
// channel-index order.
type OPCUAConfig struct {
	Endpoint        string        `mapstructure:"endpoint" yaml:"endpoint"`
	Username        string        `mapstructure:"username" yaml:"username"`
	Password        string        `mapstructure:"password" yaml:"password"`
	SecurityMode    string        `mapstructure:"security_mode" yaml:"security_mode"`
	SecurityPolicy  string        `mapstructure:"security_policy" yaml:"security_policy"`
	ApplicationName string        `mapstructure:"application_name" yaml:"application_name"`
	Period          time.Duration `mapstructure:"period" yaml:"period"`
	Nodes           []string      `mapstructure:"nodes" yaml:"nodes"`
}

func (c *OPCUAConfig) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "Mold Monitor"
	}
	if c.Period <= 0 {
		c.Period = 10 * time.Millisecond
	}
	for i := range c.Nodes {
		c.Nodes[i] = strings.TrimSpace(c.Nodes[i])
	}
}

func (c *OPCUAConfig) Validate() error {
	if c.Endpoint == "" {
		return errors.New("opcua: endpoint is required")
	}
	if len(c.Nodes) == 0 {
		return errors.New("opcua: at least one node must be configured")
	}
	return nil
}

// valueReader is the part of *opcua.Client used per tick.
type valueReader interface {
	Read(ctx context.Context, req *ua.ReadRequest) (*ua.ReadResponse, error)
}

// OPCUASource polls all channel nodes with a single Read request per period,
// so every tuple carries values from the same server snapshot.
type OPCUASource struct {
	cfg   OPCUAConfig
	log   *logger.Logger
	req   *ua.ReadRequest
	pacer *pacer

	mu     sync.Mutex
	client *opcua.Client
	reader valueReader
	last   time.Time
	closed bool
}

// NewOPCUASource validates cfg against the number of configured channels and
// parses the node ids. It does not connect.
func NewOPCUASource(cfg OPCUAConfig, channels int, log *logger.Logger) (*OPCUASource, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Nodes) != channels {
		return nil, fmt.Errorf("opcua: %d nodes configured for %d channels", len(cfg.Nodes), channels)
	}
	req, err := buildReadRequest(cfg.Nodes)
	if err != nil {
		return nil, err
	}
	return &OPCUASource{
		cfg:   cfg,
		log:   logger.OrNop(log),
		req:   req,
		pacer: newPacer(cfg.Period, true),
	}, nil
}

func buildReadRequest(nodes []string) (*ua.ReadRequest, error) {
	ids := make([]*ua.ReadValueID, 0, len(nodes))
	for _, n := range nodes {
		id, err := ua.ParseNodeID(n)
		if err != nil {
			return nil, fmt.Errorf("parse node id %q: %w", n, err)
		}
		ids = append(ids, &ua.ReadValueID{NodeID: id, AttributeID: ua.AttributeIDValue})
	}
	return &ua.ReadRequest{
		MaxAge:             0,
		NodesToRead:        ids,
		TimestampsToReturn: ua.TimestampsToReturnBoth,
	}, nil
}

// Connect opens the session to the endpoint.
func (s *OPCUASource) Connect(ctx context.Context) error {
	client, err := opcua.NewClient(s.cfg.Endpoint, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("opcua connect: %w", err)
	}
	s.mu.Lock()
	s.client = client
	s.reader = client
	s.mu.Unlock()
	s.log.Infow("opcua_connected", "endpoint", s.cfg.Endpoint, "nodes", len(s.cfg.Nodes))
	return nil
}

func (s *OPCUASource) clientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(s.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(s.cfg.SecurityPolicy)),
		opcua.ApplicationName(s.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}
	if s.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(s.cfg.Username, s.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

func (s *OPCUASource) Next(ctx context.Context) (mold_monitor.RawSample, error) {
	if err := s.pacer.wait(ctx); err != nil {
		return mold_monitor.RawSample{}, err
	}

	s.mu.Lock()
	reader, closed := s.reader, s.closed
	s.mu.Unlock()
	if closed {
		return mold_monitor.RawSample{}, ErrSourceClosed
	}
	if reader == nil {
		return mold_monitor.RawSample{}, errors.New("opcua: not connected")
	}

	resp, err := reader.Read(ctx, s.req)
	if err != nil {
		return mold_monitor.RawSample{}, fmt.Errorf("opcua read: %w", err)
	}
	if len(resp.Results) != len(s.cfg.Nodes) {
		return mold_monitor.RawSample{}, fmt.Errorf("opcua read: %d results for %d nodes", len(resp.Results), len(s.cfg.Nodes))
	}

	values := make([]float64, len(resp.Results))
	var ts time.Time
	for i, dv := range resp.Results {
		if dv == nil {
			return mold_monitor.RawSample{}, fmt.Errorf("opcua read %s: empty result", s.cfg.Nodes[i])
		}
		if dv.Status != ua.StatusOK {
			return mold_monitor.RawSample{}, fmt.Errorf("opcua read %s: %s", s.cfg.Nodes[i], dv.Status)
		}
		v, ok := variantToFloat(dv.Value)
		if !ok {
			return mold_monitor.RawSample{}, fmt.Errorf("opcua read %s: unsupported value %v", s.cfg.Nodes[i], dv.Value)
		}
		values[i] = v
		if dv.SourceTimestamp.After(ts) {
			ts = dv.SourceTimestamp
		}
	}
	if ts.IsZero() && resp.ResponseHeader != nil {
		ts = resp.ResponseHeader.Timestamp
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	s.mu.Lock()
	// the gateway may return the same snapshot twice; keep the stream strictly increasing
	if !ts.After(s.last) {
		ts = s.last.Add(time.Microsecond)
	}
	s.last = ts
	s.mu.Unlock()

	return mold_monitor.RawSample{Timestamp: ts, Values: values}, nil
}

func (s *OPCUASource) Period() time.Duration { return s.cfg.Period }

func (s *OPCUASource) Close() error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.reader = nil
	s.closed = true
	s.mu.Unlock()
	s.pacer.stop()

	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Close(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.Value().(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}
