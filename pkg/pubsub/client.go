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

	"github.com/angelmondragon/affiliatez-backend/pkg/config"
	"github.com/angelmondragon/affiliatez-backend/pkg/logger"
)

const (
	kindTopics        = "topics"
	kindSubscriptions = "subscriptions"
)

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoSubscriptions   = errors.New("pubsub subscription name is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// resource is a topic or subscription the services depend on.
type resource struct {
	kind string
	id   string
	path string
}

// existence checks a fully qualified resource path against the admin API.
type existence func(ctx context.Context, r resource) error

// Client owns the Pub/Sub connection shared by the publisher and the worker.
type Client struct {
	ps        *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
	required  []resource
	exists    existence
}

// NewClient connects and fails fast when a configured topic or subscription is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}

	required, err := requiredResources(projectID, cfg)
	if err != nil {
		return nil, err
	}

	ps, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	c := &Client{ps: ps, projectID: projectID, cfg: cfg, required: required}
	c.exists = c.adminLookup
	if err := c.verify(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"project_id": projectID, "resources": len(required)})
		logg.Info(ctx, "pubsub client initialized")
	}
	return c, nil
}

func requiredResources(projectID string, cfg config.PubSubConfig) ([]resource, error) {
	var out []resource
	add := func(kind, id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		out = append(out, resource{kind: kind, id: id, path: resourceName(projectID, kind, id)})
	}

	add(kindSubscriptions, cfg.NotificationSubscription)
	add(kindSubscriptions, cfg.PayoutsSubscription)
	if len(out) == 0 {
		return nil, errNoSubscriptions
	}
	add(kindTopics, cfg.AffiliatesTopic)
	add(kindTopics, cfg.PayoutsTopic)
	return out, nil
}

func (c *Client) verify(ctx context.Context) error {
	for _, r := range c.required {
		if err := c.exists(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) adminLookup(ctx context.Context, r resource) error {
	var err error
	switch r.kind {
	case kindTopics:
		_, err = c.ps.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: r.path})
	default:
		_, err = c.ps.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: r.path})
	}
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s %q does not exist", strings.TrimSuffix(r.kind, "s"), r.id)
	}
	return fmt.Errorf("checking %s %q: %w", strings.TrimSuffix(r.kind, "s"), r.id, err)
}

// Subscription accepts a bare ID or a full resource name.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.ps == nil {
		return nil
	}
	path := resourceName(c.projectID, kindSubscriptions, name)
	if path == "" {
		return nil
	}
	return c.ps.Subscriber(path)
}

// NotificationSubscription feeds the welcome email consumer.
func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.NotificationSubscription)
}

// PayoutsSubscription feeds the payout settlement consumer.
func (c *Client) PayoutsSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.PayoutsSubscription)
}

// Publisher accepts a bare topic ID or a full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.ps == nil {
		return nil
	}
	path := resourceName(c.projectID, kindTopics, name)
	if path == "" {
		return nil
	}
	return c.ps.Publisher(path)
}

// Ping re-runs the startup existence checks.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.exists == nil {
		return errNotInitialized
	}
	return c.verify(ctx)
}

func (c *Client) Close() error {
	if c == nil || c.ps == nil {
		return nil
	}
	return c.ps.Close()
}

// resourceName expands an ID into projects/<project>/<kind>/<id>.
func resourceName(projectID, kind, name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return ""
	case strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/"):
		return name
	case strings.TrimSpace(projectID) == "":
		return ""
	}
	return "projects/" + strings.TrimSpace(projectID) + "/" + kind + "/" + name
}
