package client

import (
	"context"

	"github.com/xagent-cli/xagent/core/apierror"
	"github.com/xagent-cli/xagent/core/retry"
	"github.com/xagent-cli/xagent/internal/utils"
	"github.com/xagent-cli/xagent/providers/ai"
)

// Models returns the configured static model list, or asks the vendor when
// none is configured. Vendor queries are retried like buffered completions.
func (c *Client) Models(ctx context.Context) ([]ai.ModelInfo, error) {
	snap := c.current.Load()
	ctx, release, err := c.track(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if len(snap.config.Models) > 0 {
		models := make([]ai.ModelInfo, 0, len(snap.config.Models))
		for _, id := range snap.config.Models {
			models = append(models, ai.ModelInfo{ID: id, DisplayName: id})
		}
		return models, nil
	}

	result := retry.Run(ctx, snap.retry, func(ctx context.Context, _ int) ([]ai.ModelInfo, error) {
		raw, err := utils.DoGet(ctx, snap.http, snap.endpoint.ModelsURL(), snap.endpoint.Headers(snap.config.APIKey))
		if err != nil {
			return nil, err
		}
		models, err := snap.codec.ParseModels(raw)
		if err != nil {
			return nil, apierror.Decode(err, raw)
		}
		return models, nil
	})
	return result.Value, result.Err
}
