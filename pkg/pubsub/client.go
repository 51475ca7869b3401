package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/horologe/storefront-backend/pkg/config"
	"github.com/horologe/storefront-backend/pkg/logger"
)

var errNotInitialized = errors.New("pubsub client not initialized")

// collection is the path segment of a Pub/Sub resource name.
type collection string

const (
	topics        collection = "topics"
	subscriptions collection = "subscriptions"
)

// Client resolves the storefront's topic and subscription ids against one
// GCP project.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

// NewClient connects to Pub/Sub and fails when the orders topic is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errors.New("gcp project id is required")
	}
	if strings.TrimSpace(cfg.OrdersTopic) == "" {
		return nil, errors.New("orders topic is required")
	}

	psClient, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: psClient, projectID: projectID, cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		_ = psClient.Close()
		return nil, err
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"project_id": projectID, "topic": cfg.OrdersTopic})
		logg.Info(ctx, "pubsub client initialized")
	}
	return c, nil
}

// Publisher returns a handle for a topic id or full resource name.
func (c *Client) Publisher(topic string) *pubsub.Publisher {
	name := c.resourceName(topics, topic)
	if name == "" || c.client == nil {
		return nil
	}
	return c.client.Publisher(name)
}

func (c *Client) OrdersPublisher() *pubsub.Publisher {
	return c.Publisher(c.cfg.OrdersTopic)
}

// Subscription returns a handle for a subscription id or full resource name.
func (c *Client) Subscription(sub string) *pubsub.Subscriber {
	name := c.resourceName(subscriptions, sub)
	if name == "" || c.client == nil {
		return nil
	}
	return c.client.Subscriber(name)
}

func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.AnalyticsSubscription)
}

// EnsureSubscription fails when the subscription has not been provisioned.
func (c *Client) EnsureSubscription(ctx context.Context, sub string) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	name := c.resourceName(subscriptions, sub)
	if name == "" {
		return fmt.Errorf("subscription %q not configured", sub)
	}
	_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: name})
	return lookupError("subscription", sub, err)
}

// Ping checks that the orders topic is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	name := c.resourceName(topics, c.cfg.OrdersTopic)
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	return lookupError("topic", c.cfg.OrdersTopic, err)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func lookupError(kind, id string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, id)
	default:
		return fmt.Errorf("checking %s %q: %w", kind, id, err)
	}
}

// resourceName expands an id to projects/<project>/<kind>/<id>. Names that
// are already fully qualified pass through.
func (c *Client) resourceName(kind collection, id string) string {
	if c == nil {
		return ""
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if strings.HasPrefix(id, "projects/") && strings.Contains(id, "/"+string(kind)+"/") {
		return id
	}
	if c.projectID == "" {
		return ""
	}
	return "projects/" + c.projectID + "/" + string(kind) + "/" + id
}
