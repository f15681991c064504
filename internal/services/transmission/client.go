package transmission

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/amaumene/trackarr/internal/config"
	"github.com/hekmon/transmissionrpc/v3"
	"github.com/sirupsen/logrus"
)

// ClientErrorKind classifies a ClientError
type ClientErrorKind string

const (
	KindRPC             ClientErrorKind = "rpc"
	KindTorrentNotFound ClientErrorKind = "torrent_not_found"
	KindNoHash          ClientErrorKind = "no_hash"
)

// ClientError is returned by every Client operation
type ClientError struct {
	Kind ClientErrorKind
	Hash string
	Err  error
}

func (e *ClientError) Error() string {
	msg := "transmission: " + string(e.Kind)
	if e.Hash != "" {
		msg += " " + e.Hash
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// Is matches any ClientError of the same kind
func (e *ClientError) Is(target error) bool {
	var other *ClientError
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// ErrorKind returns the classification string of the error
func (e *ClientError) ErrorKind() string {
	return string(e.Kind)
}

var (
	ErrRPC             = &ClientError{Kind: KindRPC}
	ErrTorrentNotFound = &ClientError{Kind: KindTorrentNotFound}
	ErrNoHash          = &ClientError{Kind: KindNoHash}
)

// Client wraps the Transmission RPC client
type Client struct {
	rpc      *transmissionrpc.Client
	attempts uint
	delay    time.Duration
	logger   *logrus.Logger
}

// NewClient creates a new Transmission client. The RPC URL is required;
// credentials, when configured, are sent as basic auth.
func NewClient(cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	if cfg.TransmissionURL == "" {
		return nil, fmt.Errorf("Transmission URL is required")
	}

	endpoint, err := url.Parse(cfg.TransmissionURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Transmission URL: %w", err)
	}
	if endpoint.Path == "" || endpoint.Path == "/" {
		endpoint.Path = "/transmission/rpc"
	}
	if cfg.TransmissionUsername != "" {
		endpoint.User = url.UserPassword(cfg.TransmissionUsername, cfg.TransmissionPassword)
	}

	rpc, err := transmissionrpc.New(endpoint, &transmissionrpc.Config{
		UserAgent: "trackarr",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Transmission client: %w", err)
	}

	return &Client{
		rpc:      rpc,
		attempts: 3,
		delay:    time.Second,
		logger:   logger,
	}, nil
}
