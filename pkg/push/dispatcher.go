// Package push delivers a resolved, device-grouped audience to the push
// provider endpoints (APNS/GCM bridges or compatible webhooks).
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/kunthar/zops-audience/pkg/logger"
)

// Notification is the payload fanned out to every provider.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

type providerRequest struct {
	Title   string   `json:"title"`
	Message string   `json:"message"`
	Tokens  []string `json:"tokens"`
}

// Dispatcher posts notifications to one endpoint per device type. Unknown
// device types are logged and skipped; a provider failure does not stop
// delivery to the others.
type Dispatcher struct {
	endpoints map[string]string
	client    *retryablehttp.Client
	logger    logger.Logger
}

func NewDispatcher(endpoints map[string]string, log logger.Logger) *Dispatcher {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil

	return &Dispatcher{
		endpoints: endpoints,
		client:    client,
		logger:    log,
	}
}

// Dispatch sends the notification to every device-type group that has a
// configured endpoint. Providers run concurrently; the returned error joins
// the per-provider failures, if any.
func (d *Dispatcher) Dispatch(ctx context.Context, notification Notification, groups map[string][]string) error {
	p := pool.New().WithErrors().WithContext(ctx)

	for deviceType, tokens := range groups {
		endpoint, ok := d.endpoints[deviceType]
		if !ok {
			d.logger.Warn("no push endpoint for device type, skipping group",
				zap.String("device_type", deviceType),
				zap.Int("tokens", len(tokens)))
			continue
		}
		if len(tokens) == 0 {
			continue
		}

		p.Go(func(ctx context.Context) error {
			if err := d.post(ctx, endpoint, notification, tokens); err != nil {
				return fmt.Errorf("provider %q: %w", deviceType, err)
			}
			d.logger.Info("dispatched push group",
				zap.String("device_type", deviceType),
				zap.Int("tokens", len(tokens)))
			return nil
		})
	}

	return p.Wait()
}

func (d *Dispatcher) post(ctx context.Context, endpoint string, notification Notification, tokens []string) error {
	body, err := json.Marshal(providerRequest{
		Title:   notification.Title,
		Message: notification.Message,
		Tokens:  tokens,
	})
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
