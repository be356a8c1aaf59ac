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

	"github.com/angelmondragon/packfinderz-orderflow/pkg/config"
	"github.com/angelmondragon/packfinderz-orderflow/pkg/logger"
)

type resourceKind string

const (
	kindTopic        resourceKind = "topics"
	kindSubscription resourceKind = "subscriptions"
)

// resource is one topic or subscription the orderflow services rely on.
type resource struct {
	kind resourceKind
	name string
	// ordered subscriptions should deliver per-order events in publish order.
	ordered bool
}

// Client is the Pub/Sub handle shared by the outbox publisher and the
// notifications worker.
type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	logg      *logger.Logger
}

// NewClient connects and fails when a configured topic or subscription is
// missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errors.New("gcp project id is required")
	}
	if strings.TrimSpace(cfg.OrdersSubscription) == "" {
		return nil, errors.New("orders subscription is required")
	}

	ps, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: ps, projectID: projectID, cfg: cfg, logg: logg}
	if err := c.Ping(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "project_id", projectID), "pubsub client initialized")
	}
	return c, nil
}

func configuredResources(cfg config.PubSubConfig) []resource {
	var out []resource
	add := func(kind resourceKind, name string, ordered bool) {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, resource{kind: kind, name: name, ordered: ordered})
		}
	}
	add(kindTopic, cfg.OrdersTopic, false)
	add(kindTopic, cfg.NotificationTopic, false)
	add(kindSubscription, cfg.OrdersSubscription, true)
	add(kindSubscription, cfg.NotificationSubscription, false)
	return out
}

// Ping checks every configured resource still exists.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	for _, res := range configuredResources(c.cfg) {
		if err := c.check(ctx, res); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) check(ctx context.Context, res resource) error {
	path := c.path(res.kind, res.name)
	var err error
	switch res.kind {
	case kindTopic:
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: path})
	case kindSubscription:
		var sub *pubsubpb.Subscription
		sub, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: path})
		if err == nil && res.ordered && !sub.GetEnableMessageOrdering() && c.logg != nil {
			c.logg.Warn(c.logg.WithField(ctx, "subscription", path), "subscription does not enable message ordering; order events may arrive out of order")
		}
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s %q does not exist", strings.TrimSuffix(string(res.kind), "s"), path)
	}
	if err != nil {
		return fmt.Errorf("checking %s: %w", path, err)
	}
	return nil
}

// path qualifies name with the project unless it is already a full resource
// name.
func (c *Client) path(kind resourceKind, name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+string(kind)+"/") {
		return name
	}
	return "projects/" + c.projectID + "/" + string(kind) + "/" + name
}

func (c *Client) subscriber(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil || strings.TrimSpace(name) == "" {
		return nil
	}
	return c.client.Subscriber(c.path(kindSubscription, name))
}

// OrdersSubscription receives order lifecycle events.
func (c *Client) OrdersSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.subscriber(c.cfg.OrdersSubscription)
}

// NotificationSubscription receives review prompts. Nil when not configured.
func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.subscriber(c.cfg.NotificationSubscription)
}

func (c *Client) Publisher(topic string) *pubsub.Publisher {
	if c == nil || c.client == nil || strings.TrimSpace(topic) == "" {
		return nil
	}
	return c.client.Publisher(c.path(kindTopic, topic))
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
